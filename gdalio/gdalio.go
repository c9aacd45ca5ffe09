// Package gdalio loads NDVI and LST inputs from GeoTIFF granules and
// writes derived fields back out. All georeferenced I/O goes through
// GDAL; everything else in the pipeline works on in-memory fields.
package gdalio

import (
	"fmt"

	"github.com/airbusgeo/godal"

	"github.com/nci/tvdi/raster"
)

const DefaultNoData = -9999

// Register makes the GDAL drivers available. Call once before any
// other function in this package.
func Register() {
	godal.RegisterAll()
}

// ReadField loads one band of a GeoTIFF granule into a field.
// Band numbering starts at 1 following the GDAL convention.
func ReadField(path string, bandIdx int, nameSpace string) (*raster.Field, error) {
	ds, err := godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("%s", msg)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %v", path, err)
	}
	defer ds.Close()

	bands := ds.Bands()
	if bandIdx < 1 || bandIdx > len(bands) {
		return nil, fmt.Errorf("%s has %d bands, requested band %d", path, len(bands), bandIdx)
	}
	band := bands[bandIdx-1]

	xSize := band.Structure().SizeX
	ySize := band.Structure().SizeY
	data := make([]float32, xSize*ySize)
	if err := band.Read(0, 0, data, xSize, ySize); err != nil {
		return nil, fmt.Errorf("failed to read band %d of %s: %v", bandIdx, path, err)
	}

	noData, hasNoData := band.NoData()
	if !hasNoData {
		noData = DefaultNoData
	}

	field := &raster.Field{
		NameSpace: nameSpace,
		Data:      data,
		Height:    ySize,
		Width:     xSize,
		NoData:    noData,
	}

	if gt, err := ds.GeoTransform(); err == nil {
		field.GeoTransform = gt[:]
	}

	return field, nil
}

// WriteField stores a field as a single band Float32 GeoTIFF in
// WGS84.
func WriteField(path string, f *raster.Field) error {
	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, f.Width, f.Height)
	if err != nil {
		return fmt.Errorf("failed to create %s: %v", path, err)
	}

	if len(f.GeoTransform) == 6 {
		var gt [6]float64
		copy(gt[:], f.GeoTransform)
		if err := ds.SetGeoTransform(gt); err != nil {
			ds.Close()
			return fmt.Errorf("failed to set geotransform on %s: %v", path, err)
		}
	}

	if sr, err := godal.NewSpatialRefFromEPSG(4326); err == nil {
		ds.SetSpatialRef(sr)
		sr.Close()
	}

	band := ds.Bands()[0]
	if err := band.SetNoData(f.NoData); err != nil {
		ds.Close()
		return fmt.Errorf("failed to set nodata on %s: %v", path, err)
	}
	if err := band.Write(0, 0, f.Data, f.Width, f.Height); err != nil {
		ds.Close()
		return fmt.Errorf("failed to write %s: %v", path, err)
	}

	return ds.Close()
}
