package raster

import (
	"fmt"
)

// Mask selects a subset of the pixels of a field. A set bit means
// the pixel is inside the selection.
type Mask struct {
	Height, Width int
	Bits          []bool
}

func NewMask(width, height int) *Mask {
	return &Mask{Height: height, Width: width, Bits: make([]bool, width*height)}
}

func (m *Mask) SameShape(other *Mask) bool {
	return m.Width == other.Width && m.Height == other.Height
}

func (m *Mask) And(other *Mask) (*Mask, error) {
	if !m.SameShape(other) {
		return nil, fmt.Errorf("mask shape mismatch: %dx%d vs %dx%d",
			m.Width, m.Height, other.Width, other.Height)
	}
	out := NewMask(m.Width, m.Height)
	for i, b := range m.Bits {
		out.Bits[i] = b && other.Bits[i]
	}
	return out, nil
}

func (m *Mask) Union(other *Mask) (*Mask, error) {
	if !m.SameShape(other) {
		return nil, fmt.Errorf("mask shape mismatch: %dx%d vs %dx%d",
			m.Width, m.Height, other.Width, other.Height)
	}
	out := NewMask(m.Width, m.Height)
	for i, b := range m.Bits {
		out.Bits[i] = b || other.Bits[i]
	}
	return out, nil
}

func (m *Mask) Count() int {
	total := 0
	for _, b := range m.Bits {
		if b {
			total++
		}
	}
	return total
}
