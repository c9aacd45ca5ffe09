package raster

import (
	"fmt"
	"math"
)

// Field is a single band of Float32 samples on a regular grid.
// NoData samples and NaNs are treated as invalid everywhere.
// GeoTransform follows the GDAL convention and may be nil for
// fields that only live in pixel space.
type Field struct {
	NameSpace     string
	Data          []float32
	Height, Width int
	NoData        float64
	GeoTransform  []float64
}

// NewField allocates a field with every sample set to noData.
func NewField(nameSpace string, width, height int, noData float64, geoTrans []float64) *Field {
	data := make([]float32, width*height)
	fill := float32(noData)
	for i := 0; i < len(data); i++ {
		data[i] = fill
	}
	return &Field{NameSpace: nameSpace, Data: data, Height: height, Width: width,
		NoData: noData, GeoTransform: geoTrans}
}

func (f *Field) GetNoData() float64 {
	return f.NoData
}

func (f *Field) IsValid(i int) bool {
	val := f.Data[i]
	return val != float32(f.NoData) && !math.IsNaN(float64(val))
}

func (f *Field) SameShape(other *Field) bool {
	return f.Width == other.Width && f.Height == other.Height
}

func (f *Field) emptyLike(nameSpace string) *Field {
	return NewField(nameSpace, f.Width, f.Height, f.NoData, f.GeoTransform)
}

// AddScalar returns a new field with the constant added to every
// valid sample.
func (f *Field) AddScalar(c float64) *Field {
	out := f.emptyLike(f.NameSpace)
	cf := float32(c)
	for i := range f.Data {
		if f.IsValid(i) {
			out.Data[i] = f.Data[i] + cf
		}
	}
	return out
}

func (f *Field) MulScalar(c float64) *Field {
	out := f.emptyLike(f.NameSpace)
	cf := float32(c)
	for i := range f.Data {
		if f.IsValid(i) {
			out.Data[i] = f.Data[i] * cf
		}
	}
	return out
}

// Clamp limits every valid sample to [lo, hi].
func (f *Field) Clamp(lo, hi float64) *Field {
	out := f.emptyLike(f.NameSpace)
	lof := float32(lo)
	hif := float32(hi)
	for i, val := range f.Data {
		if !f.IsValid(i) {
			continue
		}
		if val < lof {
			val = lof
		}
		if val > hif {
			val = hif
		}
		out.Data[i] = val
	}
	return out
}

func checkShapes(a, b *Field) error {
	if !a.SameShape(b) {
		return fmt.Errorf("shape mismatch: %s is %dx%d, %s is %dx%d",
			a.NameSpace, a.Width, a.Height, b.NameSpace, b.Width, b.Height)
	}
	return nil
}

// Add returns the point-wise sum of two fields. A sample is valid in
// the result only if it is valid in both inputs.
func Add(a, b *Field, nameSpace string) (*Field, error) {
	if err := checkShapes(a, b); err != nil {
		return nil, err
	}
	out := a.emptyLike(nameSpace)
	for i := range a.Data {
		if a.IsValid(i) && b.IsValid(i) {
			out.Data[i] = a.Data[i] + b.Data[i]
		}
	}
	return out, nil
}

func Sub(a, b *Field, nameSpace string) (*Field, error) {
	if err := checkShapes(a, b); err != nil {
		return nil, err
	}
	out := a.emptyLike(nameSpace)
	for i := range a.Data {
		if a.IsValid(i) && b.IsValid(i) {
			out.Data[i] = a.Data[i] - b.Data[i]
		}
	}
	return out, nil
}

func Mul(a, b *Field, nameSpace string) (*Field, error) {
	if err := checkShapes(a, b); err != nil {
		return nil, err
	}
	out := a.emptyLike(nameSpace)
	for i := range a.Data {
		if a.IsValid(i) && b.IsValid(i) {
			out.Data[i] = a.Data[i] * b.Data[i]
		}
	}
	return out, nil
}

// Div returns the point-wise quotient of two fields. Samples with a
// zero or near-zero divisor come out as NoData rather than Inf.
func Div(a, b *Field, nameSpace string) (*Field, error) {
	if err := checkShapes(a, b); err != nil {
		return nil, err
	}
	out := a.emptyLike(nameSpace)
	for i := range a.Data {
		if !a.IsValid(i) || !b.IsValid(i) {
			continue
		}
		den := b.Data[i]
		if math.Abs(float64(den)) < 1e-9 {
			continue
		}
		out.Data[i] = a.Data[i] / den
	}
	return out, nil
}

// MaskGreater flags every valid sample strictly greater than the
// threshold. Invalid samples are never flagged.
func (f *Field) MaskGreater(threshold float64) *Mask {
	m := NewMask(f.Width, f.Height)
	th := float32(threshold)
	for i, val := range f.Data {
		if f.IsValid(i) && val > th {
			m.Bits[i] = true
		}
	}
	return m
}

func (f *Field) MaskLess(threshold float64) *Mask {
	m := NewMask(f.Width, f.Height)
	th := float32(threshold)
	for i, val := range f.Data {
		if f.IsValid(i) && val < th {
			m.Bits[i] = true
		}
	}
	return m
}

func (f *Field) MaskGreaterEqual(threshold float64) *Mask {
	m := NewMask(f.Width, f.Height)
	th := float32(threshold)
	for i, val := range f.Data {
		if f.IsValid(i) && val >= th {
			m.Bits[i] = true
		}
	}
	return m
}

func (f *Field) MaskLessEqual(threshold float64) *Mask {
	m := NewMask(f.Width, f.Height)
	th := float32(threshold)
	for i, val := range f.Data {
		if f.IsValid(i) && val <= th {
			m.Bits[i] = true
		}
	}
	return m
}

// ApplyMask keeps the samples under the mask and turns everything
// else into NoData.
func (f *Field) ApplyMask(m *Mask) (*Field, error) {
	if f.Width != m.Width || f.Height != m.Height {
		return nil, fmt.Errorf("mask shape %dx%d does not match field %s %dx%d",
			m.Width, m.Height, f.NameSpace, f.Width, f.Height)
	}
	out := f.emptyLike(f.NameSpace)
	for i := range f.Data {
		if m.Bits[i] && f.IsValid(i) {
			out.Data[i] = f.Data[i]
		}
	}
	return out, nil
}
