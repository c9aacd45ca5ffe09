package raster

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// RasterizeGeometry burns a GeoJSON Polygon or MultiPolygon onto a
// grid described by a north-up geo transform and returns the result
// as a mask. A pixel is inside the selection when its centre falls
// inside the geometry under the even-odd rule, so holes punch out of
// their enclosing rings without any orientation bookkeeping.
func RasterizeGeometry(geomJSON []byte, geoTrans []float64, width, height int) (*Mask, error) {
	if len(geoTrans) != 6 {
		return nil, fmt.Errorf("geo transform must have 6 coefficients, got %d", len(geoTrans))
	}
	if geoTrans[2] != 0 || geoTrans[4] != 0 {
		return nil, fmt.Errorf("rotated geo transforms are not supported")
	}
	if geoTrans[1] <= 0 || geoTrans[5] == 0 {
		return nil, fmt.Errorf("invalid pixel size in geo transform: %v", geoTrans)
	}

	var geom struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	err := json.Unmarshal(geomJSON, &geom)
	if err != nil {
		return nil, fmt.Errorf("problem unmarshalling geometry: %v", err)
	}

	var rings [][][]float64
	switch geom.Type {
	case "Polygon":
		var coords [][][]float64
		if err := json.Unmarshal(geom.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("problem unmarshalling Polygon coordinates: %v", err)
		}
		rings = coords
	case "MultiPolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(geom.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("problem unmarshalling MultiPolygon coordinates: %v", err)
		}
		for _, poly := range coords {
			rings = append(rings, poly...)
		}
	default:
		return nil, fmt.Errorf("geometry type %s cannot be rasterised", geom.Type)
	}

	mask := NewMask(width, height)
	for row := 0; row < height; row++ {
		yc := geoTrans[3] + (float64(row)+0.5)*geoTrans[5]

		var xsects []float64
		for _, ring := range rings {
			if len(ring) < 3 {
				continue
			}
			for i := 0; i < len(ring); i++ {
				j := (i + 1) % len(ring)
				y1 := ring[i][1]
				y2 := ring[j][1]
				if (y1 <= yc && y2 > yc) || (y2 <= yc && y1 > yc) {
					t := (yc - y1) / (y2 - y1)
					xsects = append(xsects, ring[i][0]+t*(ring[j][0]-ring[i][0]))
				}
			}
		}
		sort.Float64s(xsects)

		for i := 0; i+1 < len(xsects); i += 2 {
			colBgn := int(math.Ceil((xsects[i]-geoTrans[0])/geoTrans[1] - 0.5))
			colEnd := int(math.Floor((xsects[i+1]-geoTrans[0])/geoTrans[1] - 0.5))
			if colBgn < 0 {
				colBgn = 0
			}
			if colEnd > width-1 {
				colEnd = width - 1
			}
			for col := colBgn; col <= colEnd; col++ {
				mask.Bits[row*width+col] = true
			}
		}
	}
	return mask, nil
}

// FullMask selects every pixel of the grid.
func FullMask(width, height int) *Mask {
	m := NewMask(width, height)
	for i := range m.Bits {
		m.Bits[i] = true
	}
	return m
}
