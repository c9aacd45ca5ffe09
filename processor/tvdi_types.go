package processor

import (
	"github.com/nci/tvdi/raster"
)

const TVDINameSpace = "TVDI"

type TVDIRequest struct {
	NDVI       *raster.Field
	LST        *raster.Field
	ROI        *raster.Mask
	Resolution float64
	CLevel     int
	Verbose    bool
}

// IntervalGranule is the LST field restricted to one NDVI interval.
// Only intervals with more than one distinct LST value inside the
// region of interest ever make it onto the pipeline.
type IntervalGranule struct {
	Index        int
	Lower, Upper float64
	LST          *raster.Field
}

type IntervalEdges struct {
	Index     int
	WetCutoff float64
	DryCutoff float64
	Wet       *raster.Mask
	Dry       *raster.Mask
}

type GlobalEdges struct {
	Wet *raster.Mask
	Dry *raster.Mask
}

// EdgeFit carries the dry edge regression LST = Offset + Slope * NDVI
// and the wet edge mean LSTMin.
type EdgeFit struct {
	Offset    float64
	Slope     float64
	LSTMin    float64
	DryPixels int
	WetPixels int
}

// TVDIProduct is the terminal output of the pipeline for one pair:
// the index field together with the edge fit it came from.
type TVDIProduct struct {
	TVDI *raster.Field
	Fit  *EdgeFit
}

type TVDIResult struct {
	Index int
	TVDI  *raster.Field
	Fit   *EdgeFit
	Err   error
}
