package raster

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// HistogramBin is one distinct sample value and its pixel count.
type HistogramBin struct {
	Value float64
	Count int
}

// inROI treats a nil mask as selecting the whole field.
func inROI(roi *Mask, i int) bool {
	return roi == nil || roi.Bits[i]
}

// CountDistinct returns the number of distinct valid sample values
// inside the region of interest.
func CountDistinct(f *Field, roi *Mask) int {
	seen := map[float32]bool{}
	for i, val := range f.Data {
		if inROI(roi, i) && f.IsValid(i) {
			seen[val] = true
		}
	}
	return len(seen)
}

// Histogram returns the frequency of every distinct valid sample
// value inside the region of interest, with the bins sorted by value
// in ascending numeric order.
func Histogram(f *Field, roi *Mask) []HistogramBin {
	counts := map[float32]int{}
	for i, val := range f.Data {
		if inROI(roi, i) && f.IsValid(i) {
			counts[val]++
		}
	}

	keys := make([]float64, 0, len(counts))
	for val := range counts {
		keys = append(keys, float64(val))
	}
	sort.Float64s(keys)

	bins := make([]HistogramBin, len(keys))
	for i, val := range keys {
		bins[i] = HistogramBin{Value: val, Count: counts[float32(val)]}
	}
	return bins
}

// Mean returns the arithmetic mean of the valid samples inside the
// region of interest, along with the number of samples counted.
func Mean(f *Field, roi *Mask) (float64, int) {
	sum := float64(0)
	total := 0
	for i, val := range f.Data {
		if inROI(roi, i) && f.IsValid(i) {
			sum += float64(val)
			total++
		}
	}
	if total == 0 {
		return 0, 0
	}
	return sum / float64(total), total
}

// LinearFit regresses y on x by ordinary least squares over the
// pixels where both fields are valid inside the region of interest.
// It returns the intercept, the slope and the number of pixels that
// entered the fit. With fewer than two pixels the coefficients are
// not meaningful and the caller is expected to test n first.
func LinearFit(x, y *Field, roi *Mask) (float64, float64, int) {
	var xs, ys []float64
	for i := range x.Data {
		if inROI(roi, i) && x.IsValid(i) && y.IsValid(i) {
			xs = append(xs, float64(x.Data[i]))
			ys = append(ys, float64(y.Data[i]))
		}
	}
	if len(xs) == 0 {
		return 0, 0, 0
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return alpha, beta, len(xs)
}
