package processor

import (
	"fmt"
	"log"

	"golang.org/x/net/context"

	"github.com/nci/tvdi/raster"
)

// TVDIEvaluator turns a fitted edge pair into the per pixel index
// (LST - LSTMin) / (Offset + Slope * NDVI - LSTMin), clipped to the
// region of interest and clamped to [0, 1].
type TVDIEvaluator struct {
	Context context.Context
	In      chan *EdgeFit
	Out     chan *TVDIProduct
	NDVI    *raster.Field
	LST     *raster.Field
	ROI     *raster.Mask
	Verbose bool
	Error   chan error
}

func NewTVDIEvaluator(ctx context.Context, ndvi, lst *raster.Field, roi *raster.Mask, verbose bool, errChan chan error) *TVDIEvaluator {
	return &TVDIEvaluator{
		Context: ctx,
		In:      make(chan *EdgeFit, 100),
		Out:     make(chan *TVDIProduct),
		NDVI:    ndvi,
		LST:     lst,
		ROI:     roi,
		Verbose: verbose,
		Error:   errChan,
	}
}

func (ev *TVDIEvaluator) Run() {
	defer close(ev.Out)
	for fit := range ev.In {
		tvdi, err := evaluateTVDI(ev.NDVI, ev.LST, ev.ROI, fit)
		if err != nil {
			ev.sendError(err)
			return
		}

		if ev.Verbose {
			valid := 0
			for i := range tvdi.Data {
				if tvdi.IsValid(i) {
					valid++
				}
			}
			log.Printf("TVDI: evaluated %d of %d pixels", valid, len(tvdi.Data))
		}

		if ev.checkCancellation() {
			return
		}
		ev.Out <- &TVDIProduct{TVDI: tvdi, Fit: fit}
	}
}

// evaluateTVDI composes the index out of point-wise field operations.
// A pixel with a degenerate denominator comes out as NoData rather
// than Inf, and everything outside the region of interest is NoData
// as well.
func evaluateTVDI(ndvi, lst *raster.Field, roi *raster.Mask, fit *EdgeFit) (*raster.Field, error) {
	num := lst.AddScalar(-fit.LSTMin)
	den := ndvi.MulScalar(fit.Slope).AddScalar(fit.Offset - fit.LSTMin)

	tvdi, err := raster.Div(num, den, TVDINameSpace)
	if err != nil {
		return nil, err
	}
	tvdi, err = tvdi.ApplyMask(roi)
	if err != nil {
		return nil, err
	}
	return tvdi.Clamp(0, 1), nil
}

func (ev *TVDIEvaluator) sendError(err error) {
	select {
	case ev.Error <- err:
	default:
	}
}

func (ev *TVDIEvaluator) checkCancellation() bool {
	select {
	case <-ev.Context.Done():
		ev.sendError(fmt.Errorf("evaluator context has been cancel: %v", ev.Context.Err()))
		return true
	case err := <-ev.Error:
		ev.sendError(err)
		return true
	default:
		return false
	}
}
