package similarity

import "math"

// DefaultRadius is the window expansion used at each resolution.
const DefaultRadius = 2

// FastDTW approximates DTW in linear time. Both series are halved
// recursively until they are shorter than radius+2, the coarse problem is
// solved exactly, and its path is projected back and widened by radius at
// every finer resolution to bound the search window.
func FastDTW(x, y Series, radius int, dist DistanceFunc) (float64, Path) {
	if len(x) == 0 || len(y) == 0 {
		return math.Inf(1), nil
	}
	if radius < 0 {
		radius = 0
	}

	minSize := radius + 2
	if len(x) < minSize || len(y) < minSize {
		return DTW(x, y, dist)
	}

	_, coarse := FastDTW(reduceByHalf(x), reduceByHalf(y), radius, dist)
	win := expandWindow(coarse, len(x), len(y), radius)
	return dtwWindow(x, y, win, dist)
}

// reduceByHalf averages consecutive pairs. An odd trailing element is kept as is.
func reduceByHalf(s Series) Series {
	out := make(Series, 0, (len(s)+1)/2)
	for i := 0; i+1 < len(s); i += 2 {
		out = append(out, average(s[i], s[i+1]))
	}
	if len(s)%2 == 1 {
		out = append(out, s[len(s)-1])
	}
	return out
}

func average(a, b []float64) []float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	v := make([]float64, n)
	for i := 0; i < n; i++ {
		v[i] = (a[i] + b[i]) / 2
	}
	return v
}

// expandWindow projects a coarse path onto an n x m grid, widening every
// coarse cell by radius before projection. Rows are then stitched so the
// window always contains a monotonic path from (0,0) to (n-1,m-1).
func expandWindow(coarse Path, n, m, radius int) []span {
	win := make([]span, n)
	for i := range win {
		win[i] = span{lo: m, hi: -1}
	}

	for _, c := range coarse {
		iLo := clamp(2*(c.I-radius), 0, n-1)
		iHi := clamp(2*(c.I+radius)+1, 0, n-1)
		jLo := clamp(2*(c.J-radius), 0, m-1)
		jHi := clamp(2*(c.J+radius)+1, 0, m-1)
		for i := iLo; i <= iHi; i++ {
			if jLo < win[i].lo {
				win[i].lo = jLo
			}
			if jHi > win[i].hi {
				win[i].hi = jHi
			}
		}
	}

	win[0].lo = 0
	if win[0].hi < 0 {
		win[0].hi = 0
	}
	for i := 1; i < n; i++ {
		if win[i].hi < win[i-1].hi {
			win[i].hi = win[i-1].hi
		}
		if win[i].lo > win[i-1].hi {
			win[i].lo = win[i-1].hi
		}
	}
	win[n-1].hi = m - 1

	return win
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
