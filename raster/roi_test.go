package raster

import (
	"testing"
)

var testGeoTrans = []float64{0, 1, 0, 10, 0, -1}

func testRasterizePolygon(t *testing.T) {
	geomJSON := []byte(`{"type":"Polygon","coordinates":[[[2,2],[8,2],[8,8],[2,8],[2,2]]]}`)

	mask, err := RasterizeGeometry(geomJSON, testGeoTrans, 10, 10)
	if err != nil {
		t.Errorf("rasterise polygon failed, %v", err)
		return
	}
	if mask.Count() != 36 {
		t.Errorf("rasterise polygon failed, expecting 36 pixels, actual %d", mask.Count())
	}
	if !mask.Bits[2*10+2] || mask.Bits[0] || mask.Bits[1*10+2] {
		t.Errorf("rasterise polygon failed, unexpected coverage")
	}
}

func testRasterizePolygonWithHole(t *testing.T) {
	geomJSON := []byte(`{"type":"Polygon","coordinates":[
		[[2,2],[8,2],[8,8],[2,8],[2,2]],
		[[4,4],[6,4],[6,6],[4,6],[4,4]]]}`)

	mask, err := RasterizeGeometry(geomJSON, testGeoTrans, 10, 10)
	if err != nil {
		t.Errorf("rasterise polygon with hole failed, %v", err)
		return
	}
	if mask.Count() != 32 {
		t.Errorf("rasterise polygon with hole failed, expecting 32 pixels, actual %d", mask.Count())
	}
	if mask.Bits[5*10+5] {
		t.Errorf("rasterise polygon with hole failed, hole pixel still set")
	}
}

func testRasterizeMultiPolygon(t *testing.T) {
	geomJSON := []byte(`{"type":"MultiPolygon","coordinates":[
		[[[0,8],[2,8],[2,10],[0,10],[0,8]]],
		[[[8,0],[10,0],[10,2],[8,2],[8,0]]]]}`)

	mask, err := RasterizeGeometry(geomJSON, testGeoTrans, 10, 10)
	if err != nil {
		t.Errorf("rasterise multipolygon failed, %v", err)
		return
	}
	if mask.Count() != 8 {
		t.Errorf("rasterise multipolygon failed, expecting 8 pixels, actual %d", mask.Count())
	}
	if !mask.Bits[0] || !mask.Bits[9*10+8] {
		t.Errorf("rasterise multipolygon failed, unexpected coverage")
	}
}

func testRasterizeErrors(t *testing.T) {
	if _, err := RasterizeGeometry([]byte(`{"type":"Point","coordinates":[1,2]}`), testGeoTrans, 10, 10); err == nil {
		t.Errorf("expecting error for unsupported geometry type")
	}
	if _, err := RasterizeGeometry([]byte(`{"type":"Polygon"`), testGeoTrans, 10, 10); err == nil {
		t.Errorf("expecting error for malformed geometry")
	}
	rotated := []float64{0, 1, 0.1, 10, 0, -1}
	if _, err := RasterizeGeometry([]byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`), rotated, 10, 10); err == nil {
		t.Errorf("expecting error for rotated geo transform")
	}
	if _, err := RasterizeGeometry([]byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`), []float64{0, 1, 0}, 10, 10); err == nil {
		t.Errorf("expecting error for short geo transform")
	}
}

func TestRasterize(t *testing.T) {
	testRasterizePolygon(t)
	testRasterizePolygonWithHole(t)
	testRasterizeMultiPolygon(t)
	testRasterizeErrors(t)
}
