package processor

import (
	"fmt"
	"log"
	"time"

	"golang.org/x/net/context"

	"github.com/nci/tvdi/raster"
)

const (
	nIntervals    = 100
	intervalWidth = 0.01
)

type IntervalSplitter struct {
	Context context.Context
	In      chan *TVDIRequest
	Out     chan *IntervalGranule
	Error   chan error
}

func NewIntervalSplitter(ctx context.Context, errChan chan error) *IntervalSplitter {
	return &IntervalSplitter{
		Context: ctx,
		In:      make(chan *TVDIRequest, 100),
		Out:     make(chan *IntervalGranule, 100),
		Error:   errChan,
	}
}

func (s *IntervalSplitter) Run() {
	defer close(s.Out)
	for req := range s.In {
		select {
		case <-s.Context.Done():
			s.Error <- fmt.Errorf("interval splitter context has been cancel: %v", s.Context.Err())
			return
		default:
			start := time.Now()
			granules, err := splitNDVIIntervals(req)
			if err != nil {
				s.Error <- err
				return
			}
			if req.Verbose {
				log.Printf("TVDI: %d of %d NDVI intervals retained, %v", len(granules), nIntervals, time.Since(start))
			}
			for _, g := range granules {
				s.Out <- g
			}
		}
	}
}

// splitNDVIIntervals cuts the NDVI domain into 100 fixed width
// intervals and keeps the LST samples of each one. Membership is
// strict on both bounds, so a sample sitting exactly on a boundary
// belongs to no interval. An interval is dropped when the region of
// interest sees at most one distinct LST value in it.
func splitNDVIIntervals(req *TVDIRequest) ([]*IntervalGranule, error) {
	out := []*IntervalGranule{}
	for i := 0; i < nIntervals; i++ {
		lower := float64(i) * intervalWidth
		upper := float64(i+1) * intervalWidth

		member, err := req.NDVI.MaskGreater(lower).And(req.NDVI.MaskLess(upper))
		if err != nil {
			return nil, err
		}
		lst, err := req.LST.ApplyMask(member)
		if err != nil {
			return nil, err
		}

		if raster.CountDistinct(lst, req.ROI) <= 1 {
			continue
		}
		out = append(out, &IntervalGranule{Index: i, Lower: lower, Upper: upper, LST: lst})
	}
	return out, nil
}
