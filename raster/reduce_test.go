package raster

import (
	"math"
	"testing"
)

func testCountDistinct(t *testing.T) {
	f := &Field{Data: []float32{300, 300, 301, testNoData, 301, 302}, Height: 2, Width: 3, NoData: testNoData}

	if n := CountDistinct(f, nil); n != 3 {
		t.Errorf("count distinct failed, expecting 3, actual %d", n)
	}

	roi := &Mask{Height: 2, Width: 3, Bits: []bool{true, true, false, true, false, false}}
	if n := CountDistinct(f, roi); n != 1 {
		t.Errorf("count distinct over roi failed, expecting 1, actual %d", n)
	}
}

func testHistogram(t *testing.T) {
	f := &Field{Data: []float32{10.5, 9.5, 2, 10.5, testNoData, 2}, Height: 2, Width: 3, NoData: testNoData}

	bins := Histogram(f, nil)
	expected := []HistogramBin{{Value: 2, Count: 2}, {Value: 9.5, Count: 1}, {Value: 10.5, Count: 2}}
	if len(bins) != len(expected) {
		t.Errorf("histogram failed, expecting %v, actual %v", expected, bins)
		return
	}
	for i := range bins {
		if bins[i] != expected[i] {
			t.Errorf("histogram failed, expecting %v, actual %v", expected, bins)
		}
	}
}

func testMean(t *testing.T) {
	f := &Field{Data: []float32{1, 2, 3, testNoData}, Height: 2, Width: 2, NoData: testNoData}

	val, n := Mean(f, nil)
	if n != 3 || val != 2 {
		t.Errorf("mean failed, expecting 2 over 3 pixels, actual %v over %d", val, n)
	}

	roi := &Mask{Height: 2, Width: 2, Bits: []bool{false, true, true, true}}
	val, n = Mean(f, roi)
	if n != 2 || val != 2.5 {
		t.Errorf("mean over roi failed, expecting 2.5 over 2 pixels, actual %v over %d", val, n)
	}

	empty := NewMask(2, 2)
	val, n = Mean(f, empty)
	if n != 0 || val != 0 {
		t.Errorf("mean over empty roi failed, expecting 0 over 0 pixels, actual %v over %d", val, n)
	}
}

func testLinearFit(t *testing.T) {
	x := &Field{Data: []float32{0.25, 0.5, 0.75, 1}, Height: 2, Width: 2, NoData: testNoData}
	y := &Field{Data: []float32{302.5, 305, 307.5, 310}, Height: 2, Width: 2, NoData: testNoData}

	alpha, beta, n := LinearFit(x, y, nil)
	if n != 4 {
		t.Errorf("linear fit failed, expecting 4 pixels, actual %d", n)
	}
	if math.Abs(alpha-300) > 1e-9 || math.Abs(beta-10) > 1e-9 {
		t.Errorf("linear fit failed, expecting alpha 300 beta 10, actual %v %v", alpha, beta)
	}

	masked := &Field{Data: []float32{testNoData, 0.5, 0.75, 1}, Height: 2, Width: 2, NoData: testNoData}
	_, _, n = LinearFit(masked, y, nil)
	if n != 3 {
		t.Errorf("linear fit failed, expecting 3 pixels after masking, actual %d", n)
	}

	empty := NewMask(2, 2)
	alpha, beta, n = LinearFit(x, y, empty)
	if n != 0 || alpha != 0 || beta != 0 {
		t.Errorf("linear fit over empty roi failed, actual %v %v %d", alpha, beta, n)
	}
}

func TestReductions(t *testing.T) {
	testCountDistinct(t)
	testHistogram(t)
	testMean(t)
	testLinearFit(t)
}
