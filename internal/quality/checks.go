package quality

import "math"

// point is one non-null observation inside a series, remembering its
// position in the original record slice.
type point struct {
	recordIdx int
	value     float64
}

// meanStd returns mean and population standard deviation.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(values)))
}

// zscores computes each point's z-score against the rest of the series
// (the point itself excluded from mean/stddev). On short series the
// point being tested dominates the plain formula enough to mask itself;
// excluding it keeps the 3-sigma threshold meaningful, and on long
// series the two formulas agree.
func zscores(points []point) []float64 {
	zs := make([]float64, len(points))
	for i := range points {
		rest := make([]float64, 0, len(points)-1)
		for j, p := range points {
			if j != i {
				rest = append(rest, p.value)
			}
		}
		mean, std := meanStd(rest)
		if std == 0 {
			zs[i] = 0
			continue
		}
		zs[i] = math.Abs(points[i].value-mean) / std
	}
	return zs
}

// modeShare returns the most frequent value and the fraction of points
// equal to it.
func modeShare(points []point) (float64, float64) {
	if len(points) == 0 {
		return 0, 0
	}
	counts := map[float64]int{}
	for _, p := range points {
		counts[p.value]++
	}
	best, bestCount := 0.0, 0
	for v, c := range counts {
		if c > bestCount {
			best, bestCount = v, c
		}
	}
	return best, float64(bestCount) / float64(len(points))
}
