// Package similarity provides DTW based distances between keypoint sequences.
package similarity

import (
	"math"

	"github.com/aadiyog/yogatracker/internal/pose"
)

// Series is a sequence of coordinate vectors.
type Series [][]float64

// DistanceFunc measures the distance between two coordinate vectors.
type DistanceFunc func(a, b []float64) float64

// Cell is one (i, j) step of an alignment path.
type Cell struct {
	I int `json:"i"`
	J int `json:"j"`
}

// Path is a monotonic alignment from (0,0) to (n-1,m-1).
type Path []Cell

// Euclidean is the Euclidean distance over however many dimensions both
// vectors share.
func Euclidean(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// PointSeries converts keypoints to a series of 3D coordinate vectors.
func PointSeries(points []pose.Point3D) Series {
	s := make(Series, len(points))
	for i, p := range points {
		s[i] = p.Coords()
	}
	return s
}

// span is the inclusive column range searched for one row of the cost matrix.
type span struct {
	lo, hi int
}

// DTW calculates the exact Dynamic Time Warping distance between two series.
// It returns the cumulative (not normalized) cost along the optimal path and
// the path itself. Returns infinity and a nil path if either series is empty.
func DTW(x, y Series, dist DistanceFunc) (float64, Path) {
	if len(x) == 0 || len(y) == 0 {
		return math.Inf(1), nil
	}
	return dtwWindow(x, y, fullWindow(len(x), len(y)), dist)
}

func fullWindow(n, m int) []span {
	win := make([]span, n)
	for i := range win {
		win[i] = span{lo: 0, hi: m - 1}
	}
	return win
}

// dtwWindow fills the cost matrix only inside win and backtracks the
// optimal path. The window must connect (0,0) to (n-1,m-1).
func dtwWindow(x, y Series, win []span, dist DistanceFunc) (float64, Path) {
	if dist == nil {
		dist = Euclidean
	}
	n := len(x)
	m := len(y)

	// Create (n+1) x (m+1) cost matrix initialized to infinity
	cost := make([][]float64, n+1)
	for i := range cost {
		cost[i] = make([]float64, m+1)
		for j := range cost[i] {
			cost[i][j] = math.Inf(1)
		}
	}
	cost[0][0] = 0

	for i := 1; i <= n; i++ {
		w := win[i-1]
		for j := w.lo + 1; j <= w.hi+1; j++ {
			best := min3(cost[i-1][j-1], cost[i-1][j], cost[i][j-1])
			if math.IsInf(best, 1) {
				continue
			}
			cost[i][j] = dist(x[i-1], y[j-1]) + best
		}
	}

	// Walk back from the corner, preferring the diagonal on ties
	path := make(Path, 0, n+m)
	i, j := n, m
	for i > 0 && j > 0 {
		path = append(path, Cell{I: i - 1, J: j - 1})
		if i == 1 && j == 1 {
			break
		}
		diag, up, left := cost[i-1][j-1], cost[i-1][j], cost[i][j-1]
		switch {
		case diag <= up && diag <= left:
			i--
			j--
		case up <= left:
			i--
		default:
			j--
		}
	}

	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}

	return cost[n][m], path
}

// min3 returns the minimum of three float64 values.
func min3(a, b, c float64) float64 {
	if a <= b && a <= c {
		return a
	}
	if b <= c {
		return b
	}
	return c
}
