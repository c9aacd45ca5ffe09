package processor

import (
	"errors"
	"fmt"
	"log"
	"math"

	"golang.org/x/net/context"

	"github.com/nci/tvdi/raster"
)

// ErrInsufficientEdgeData reports that the dry and wet edges cannot
// be estimated for this scene, either because a global edge mask has
// too few pixels inside the region of interest or because the dry
// edge regression is degenerate. Callers can test for it with
// errors.Is.
var ErrInsufficientEdgeData = errors.New("insufficient data to estimate dry and wet edges")

// EdgeFitter estimates the dry edge by regressing LST on NDVI over
// the global dry mask and the wet edge as the mean LST over the
// global wet mask.
type EdgeFitter struct {
	Context context.Context
	In      chan *GlobalEdges
	Out     chan *EdgeFit
	NDVI    *raster.Field
	LST     *raster.Field
	ROI     *raster.Mask
	Verbose bool
	Error   chan error
}

func NewEdgeFitter(ctx context.Context, ndvi, lst *raster.Field, roi *raster.Mask, verbose bool, errChan chan error) *EdgeFitter {
	return &EdgeFitter{
		Context: ctx,
		In:      make(chan *GlobalEdges, 100),
		Out:     make(chan *EdgeFit, 100),
		NDVI:    ndvi,
		LST:     lst,
		ROI:     roi,
		Verbose: verbose,
		Error:   errChan,
	}
}

func (ef *EdgeFitter) Run() {
	defer close(ef.Out)
	for edges := range ef.In {
		dryROI, err := edges.Dry.And(ef.ROI)
		if err != nil {
			ef.sendError(err)
			return
		}
		wetROI, err := edges.Wet.And(ef.ROI)
		if err != nil {
			ef.sendError(err)
			return
		}

		offset, slope, nDry := raster.LinearFit(ef.NDVI, ef.LST, dryROI)
		if nDry < 2 {
			ef.sendError(fmt.Errorf("dry edge mask has fewer than two pixels inside the region of interest: %w", ErrInsufficientEdgeData))
			return
		}
		// a dry edge without NDVI variance fits with NaN coefficients
		if math.IsNaN(offset) || math.IsInf(offset, 0) || math.IsNaN(slope) || math.IsInf(slope, 0) {
			ef.sendError(fmt.Errorf("dry edge regression did not yield finite coefficients: %w", ErrInsufficientEdgeData))
			return
		}

		lstMin, nWet := raster.Mean(ef.LST, wetROI)
		if nWet == 0 {
			ef.sendError(fmt.Errorf("wet edge mask is empty inside the region of interest: %w", ErrInsufficientEdgeData))
			return
		}

		if ef.Verbose {
			log.Printf("TVDI: dry edge LST = %.4f + %.4f * NDVI over %d px", offset, slope, nDry)
			log.Printf("TVDI: wet edge LST min %.4f over %d px", lstMin, nWet)
		}

		if ef.checkCancellation() {
			return
		}
		ef.Out <- &EdgeFit{Offset: offset, Slope: slope, LSTMin: lstMin, DryPixels: nDry, WetPixels: nWet}
	}
}

func (ef *EdgeFitter) sendError(err error) {
	select {
	case ef.Error <- err:
	default:
	}
}

func (ef *EdgeFitter) checkCancellation() bool {
	select {
	case <-ef.Context.Done():
		ef.sendError(fmt.Errorf("edge fitter context has been cancel: %v", ef.Context.Err()))
		return true
	case err := <-ef.Error:
		ef.sendError(err)
		return true
	default:
		return false
	}
}
