package processor

import (
	"fmt"
	"log"

	"golang.org/x/net/context"

	"github.com/nci/tvdi/raster"
)

const (
	wetFraction = 0.02
	dryFraction = 0.98
)

type EdgeClassifier struct {
	Context context.Context
	In      chan *IntervalGranule
	Out     chan *IntervalEdges
	ROI     *raster.Mask
	CLevel  int
	Verbose bool
	Error   chan error
}

func NewEdgeClassifier(ctx context.Context, roi *raster.Mask, cLevel int, verbose bool, errChan chan error) *EdgeClassifier {
	if cLevel < 1 {
		cLevel = 1
	}
	return &EdgeClassifier{
		Context: ctx,
		In:      make(chan *IntervalGranule, 100),
		Out:     make(chan *IntervalEdges, 100),
		ROI:     roi,
		CLevel:  cLevel,
		Verbose: verbose,
		Error:   errChan,
	}
}

func (ec *EdgeClassifier) Run() {
	defer close(ec.Out)
	cLimiter := NewConcLimiter(ec.CLevel)
	for gran := range ec.In {
		select {
		case <-ec.Context.Done():
			ec.sendError(fmt.Errorf("edge classifier context has been cancel: %v", ec.Context.Err()))
			return
		default:
			cLimiter.Increase()
			go func(g *IntervalGranule) {
				defer cLimiter.Decrease()
				edges, err := classifyInterval(g, ec.ROI)
				if err != nil {
					ec.sendError(err)
					return
				}
				if ec.Verbose {
					log.Printf("TVDI: interval %d [%.2f,%.2f) wet cutoff %v (%d px), dry cutoff %v (%d px)",
						g.Index, g.Lower, g.Upper, edges.WetCutoff, edges.Wet.Count(), edges.DryCutoff, edges.Dry.Count())
				}
				ec.Out <- edges
			}(gran)
		}
	}
	cLimiter.Wait()
}

func (ec *EdgeClassifier) sendError(err error) {
	select {
	case ec.Error <- err:
	default:
	}
}

// classifyInterval finds the 2% and 98% points of the cumulative LST
// frequency distribution over the region of interest. The wet mask is
// everything strictly below the 2% point and the dry mask everything
// at or above the 98% point. The comparisons are intentionally
// asymmetric.
func classifyInterval(g *IntervalGranule, roi *raster.Mask) (*IntervalEdges, error) {
	bins := raster.Histogram(g.LST, roi)
	total := 0
	for _, b := range bins {
		total += b.Count
	}
	if total == 0 {
		return nil, fmt.Errorf("interval %d has no pixels inside the region of interest", g.Index)
	}

	var wetCutoff, dryCutoff float64
	wetFound := false
	dryFound := false
	cum := 0
	for _, b := range bins {
		cum += b.Count
		frac := float64(cum) / float64(total)
		if !wetFound && frac >= wetFraction {
			wetCutoff = b.Value
			wetFound = true
		}
		if !dryFound && frac >= dryFraction {
			dryCutoff = b.Value
			dryFound = true
		}
	}

	return &IntervalEdges{
		Index:     g.Index,
		WetCutoff: wetCutoff,
		DryCutoff: dryCutoff,
		Wet:       g.LST.MaskLess(wetCutoff),
		Dry:       g.LST.MaskGreaterEqual(dryCutoff),
	}, nil
}
