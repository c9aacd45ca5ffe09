package processor

import (
	"fmt"
	"math"

	"golang.org/x/net/context"

	"github.com/nci/tvdi/raster"
)

const defaultClassifyConc = 16

// resolutionTol is the relative tolerance used to reconcile the
// requested working resolution with the pixel size of the inputs.
const resolutionTol = 1e-6

// CheckTVDIRequest validates a request before any computation is
// started. Both fields, the region of interest and a positive working
// resolution are mandatory, and everything has to live on the same
// grid.
func CheckTVDIRequest(req *TVDIRequest) error {
	if req.NDVI == nil {
		return fmt.Errorf("TVDI: NDVI field is nil")
	}
	if req.LST == nil {
		return fmt.Errorf("TVDI: LST field is nil")
	}
	if req.ROI == nil {
		return fmt.Errorf("TVDI: region of interest is nil")
	}
	if req.Resolution <= 0 {
		return fmt.Errorf("TVDI: resolution must be positive, got %v", req.Resolution)
	}
	if !req.NDVI.SameShape(req.LST) {
		return fmt.Errorf("TVDI: NDVI is %dx%d but LST is %dx%d",
			req.NDVI.Width, req.NDVI.Height, req.LST.Width, req.LST.Height)
	}
	if req.ROI.Width != req.NDVI.Width || req.ROI.Height != req.NDVI.Height {
		return fmt.Errorf("TVDI: region of interest is %dx%d but the fields are %dx%d",
			req.ROI.Width, req.ROI.Height, req.NDVI.Width, req.NDVI.Height)
	}
	for _, f := range []*raster.Field{req.NDVI, req.LST} {
		if len(f.GeoTransform) != 6 {
			continue
		}
		pixelSize := math.Abs(f.GeoTransform[1])
		if math.Abs(pixelSize-req.Resolution) > resolutionTol*req.Resolution {
			return fmt.Errorf("TVDI: resolution %v does not match the %v pixel size of %s",
				req.Resolution, pixelSize, f.NameSpace)
		}
	}
	return nil
}

// RunTVDI computes the TVDI product for a single NDVI/LST pair.
func RunTVDI(ctx context.Context, req *TVDIRequest) (*TVDIProduct, error) {
	if err := CheckTVDIRequest(req); err != nil {
		return nil, err
	}

	cLevel := req.CLevel
	if cLevel <= 0 {
		cLevel = defaultClassifyConc
	}

	errChan := make(chan error, 100)
	tp := InitTVDIPipeline(ctx, cLevel, errChan)
	proc := tp.Process(req)

	select {
	case res, ok := <-proc:
		if !ok {
			select {
			case err := <-errChan:
				return nil, err
			default:
				return nil, fmt.Errorf("TVDI: pipeline produced no result")
			}
		}
		return res, nil
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("TVDI: context cancelled with message: %v", ctx.Err())
	}
}

// RunTVDISequence computes TVDI for a sequence of co-registered
// NDVI/LST pairs sharing one region of interest. Pairs run in order
// and in isolation, so a pair that fails to fit its edges only marks
// its own slot and the rest of the sequence still completes. The
// per pair diagnostics are always off here. A non-positive conc
// falls back to the default classification pool size.
func RunTVDISequence(ctx context.Context, ndviSeq, lstSeq []*raster.Field, roi *raster.Mask, resolution float64, conc int) ([]*TVDIResult, error) {
	if len(ndviSeq) != len(lstSeq) {
		return nil, fmt.Errorf("TVDI: mismatched sequence lengths: %d NDVI fields vs %d LST fields",
			len(ndviSeq), len(lstSeq))
	}

	results := make([]*TVDIResult, len(ndviSeq))
	for i := range ndviSeq {
		req := &TVDIRequest{
			NDVI:       ndviSeq[i],
			LST:        lstSeq[i],
			ROI:        roi,
			Resolution: resolution,
			CLevel:     conc,
			Verbose:    false,
		}
		res := &TVDIResult{Index: i}
		product, err := RunTVDI(ctx, req)
		if err != nil {
			res.Err = err
		} else {
			res.TVDI = product.TVDI
			res.Fit = product.Fit
		}
		results[i] = res
	}
	return results, nil
}
