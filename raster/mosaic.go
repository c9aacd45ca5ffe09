package raster

import (
	"fmt"
)

// MosaicFields composites partial fields onto a single canvas. The
// canvas starts out as NoData and each field only fills the holes the
// earlier ones left, so the first valid sample at a pixel wins.
func MosaicFields(fields []*Field) (*Field, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to mosaic")
	}

	canvas := fields[0].emptyLike(fields[0].NameSpace)
	for _, f := range fields {
		if err := checkShapes(canvas, f); err != nil {
			return nil, err
		}
		for i := range f.Data {
			if f.IsValid(i) && !canvas.IsValid(i) {
				canvas.Data[i] = f.Data[i]
			}
		}
	}
	return canvas, nil
}

// MergeMasks unions any number of masks onto a fresh canvas of the
// given shape. No input masks yields an empty selection.
func MergeMasks(width, height int, masks []*Mask) (*Mask, error) {
	canvas := NewMask(width, height)
	for _, m := range masks {
		if !canvas.SameShape(m) {
			return nil, fmt.Errorf("mask shape mismatch: %dx%d vs %dx%d",
				width, height, m.Width, m.Height)
		}
		for i, b := range m.Bits {
			if b {
				canvas.Bits[i] = true
			}
		}
	}
	return canvas, nil
}
