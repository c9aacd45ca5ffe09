package processor

import (
	"fmt"
	"log"

	"golang.org/x/net/context"

	"github.com/nci/tvdi/raster"
)

// EdgeMerger mosaics the per interval wet and dry masks into one
// global mask of each kind. The intervals partition the NDVI domain,
// so no pixel can be contributed twice.
type EdgeMerger struct {
	Context       context.Context
	In            chan *IntervalEdges
	Out           chan *GlobalEdges
	Width, Height int
	Verbose       bool
	Error         chan error
}

func NewEdgeMerger(ctx context.Context, width, height int, verbose bool, errChan chan error) *EdgeMerger {
	return &EdgeMerger{
		Context: ctx,
		In:      make(chan *IntervalEdges, 100),
		Out:     make(chan *GlobalEdges, 100),
		Width:   width,
		Height:  height,
		Verbose: verbose,
		Error:   errChan,
	}
}

func (em *EdgeMerger) Run() {
	defer close(em.Out)

	var wets, drys []*raster.Mask
	for edges := range em.In {
		wets = append(wets, edges.Wet)
		drys = append(drys, edges.Dry)
	}

	wet, err := raster.MergeMasks(em.Width, em.Height, wets)
	if err != nil {
		em.sendError(err)
		return
	}
	dry, err := raster.MergeMasks(em.Width, em.Height, drys)
	if err != nil {
		em.sendError(err)
		return
	}

	if em.Verbose {
		log.Printf("TVDI: merged %d intervals, global wet mask %d px, global dry mask %d px",
			len(wets), wet.Count(), dry.Count())
	}

	if em.checkCancellation() {
		return
	}
	em.Out <- &GlobalEdges{Wet: wet, Dry: dry}
}

func (em *EdgeMerger) sendError(err error) {
	select {
	case em.Error <- err:
	default:
	}
}

func (em *EdgeMerger) checkCancellation() bool {
	select {
	case <-em.Context.Done():
		em.sendError(fmt.Errorf("edge merger context has been cancel: %v", em.Context.Err()))
		return true
	case err := <-em.Error:
		em.sendError(err)
		return true
	default:
		return false
	}
}
