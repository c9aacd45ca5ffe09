package raster

import (
	"testing"
)

const testNoData = -9999

func assertField(t *testing.T, out *Field, expected []float32, err error) {
	if err != nil {
		t.Errorf("field test failed, %v", err)
		return
	}
	for i := range out.Data {
		if out.Data[i] != expected[i] {
			t.Errorf("field test failed, expecting %v, actual %v", expected, out.Data)
			return
		}
	}
}

func testField(data []float32) *Field {
	return &Field{NameSpace: "test", Data: data, Height: 2, Width: 2, NoData: testNoData}
}

func testArithmetic(t *testing.T) {
	f1 := testField([]float32{1, 2, testNoData, 4})
	f2 := testField([]float32{2, testNoData, 3, 4})

	out, err := Add(f1, f2, "sum")
	assertField(t, out, []float32{3, testNoData, testNoData, 8}, err)

	out, err = Sub(f1, f2, "diff")
	assertField(t, out, []float32{-1, testNoData, testNoData, 0}, err)

	out, err = Mul(f1, f2, "prod")
	assertField(t, out, []float32{2, testNoData, testNoData, 16}, err)

	out, err = Div(f1, f2, "ratio")
	assertField(t, out, []float32{0.5, testNoData, testNoData, 1}, err)

	assertField(t, f1.AddScalar(10), []float32{11, 12, testNoData, 14}, nil)
	assertField(t, f1.MulScalar(2), []float32{2, 4, testNoData, 8}, nil)
}

func testDivByZero(t *testing.T) {
	num := testField([]float32{1, 2, 3, 4})
	den := testField([]float32{0, 2, 0, 4})

	out, err := Div(num, den, "ratio")
	assertField(t, out, []float32{testNoData, 1, testNoData, 1}, err)
}

func testClamp(t *testing.T) {
	f := testField([]float32{-0.5, 0.5, 2, testNoData})
	assertField(t, f.Clamp(0, 1), []float32{0, 0.5, 1, testNoData}, nil)
}

func testComparisonMasks(t *testing.T) {
	f := testField([]float32{1, 2, 3, testNoData})

	m := f.MaskGreater(2)
	expected := []bool{false, false, true, false}
	for i := range m.Bits {
		if m.Bits[i] != expected[i] {
			t.Errorf("MaskGreater failed, expecting %v, actual %v", expected, m.Bits)
		}
	}

	m = f.MaskGreaterEqual(2)
	expected = []bool{false, true, true, false}
	for i := range m.Bits {
		if m.Bits[i] != expected[i] {
			t.Errorf("MaskGreaterEqual failed, expecting %v, actual %v", expected, m.Bits)
		}
	}

	m = f.MaskLess(2)
	expected = []bool{true, false, false, false}
	for i := range m.Bits {
		if m.Bits[i] != expected[i] {
			t.Errorf("MaskLess failed, expecting %v, actual %v", expected, m.Bits)
		}
	}

	m = f.MaskLessEqual(2)
	expected = []bool{true, true, false, false}
	for i := range m.Bits {
		if m.Bits[i] != expected[i] {
			t.Errorf("MaskLessEqual failed, expecting %v, actual %v", expected, m.Bits)
		}
	}
}

func testApplyMask(t *testing.T) {
	f := testField([]float32{1, 2, 3, 4})
	m := &Mask{Height: 2, Width: 2, Bits: []bool{true, false, true, false}}

	out, err := f.ApplyMask(m)
	assertField(t, out, []float32{1, testNoData, 3, testNoData}, err)
}

func testMaskCompose(t *testing.T) {
	m1 := &Mask{Height: 2, Width: 2, Bits: []bool{true, true, false, false}}
	m2 := &Mask{Height: 2, Width: 2, Bits: []bool{true, false, true, false}}

	and, err := m1.And(m2)
	if err != nil {
		t.Errorf("mask and failed, %v", err)
	}
	if and.Count() != 1 || !and.Bits[0] {
		t.Errorf("mask and failed, actual %v", and.Bits)
	}

	union, err := m1.Union(m2)
	if err != nil {
		t.Errorf("mask union failed, %v", err)
	}
	if union.Count() != 3 || union.Bits[3] {
		t.Errorf("mask union failed, actual %v", union.Bits)
	}
}

func testShapeMismatch(t *testing.T) {
	f1 := testField([]float32{1, 2, 3, 4})
	f2 := &Field{Data: []float32{1, 2}, Height: 1, Width: 2, NoData: testNoData}

	if _, err := Add(f1, f2, "sum"); err == nil {
		t.Errorf("expecting shape mismatch error for Add")
	}

	m := NewMask(3, 3)
	if _, err := f1.ApplyMask(m); err == nil {
		t.Errorf("expecting shape mismatch error for ApplyMask")
	}
}

func TestFieldOps(t *testing.T) {
	testArithmetic(t)
	testDivByZero(t)
	testClamp(t)
	testComparisonMasks(t)
	testApplyMask(t)
	testMaskCompose(t)
	testShapeMismatch(t)
}
