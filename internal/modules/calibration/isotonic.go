package calibration

import (
	"math"
	"sort"
)

// Isotonic is a monotone non-decreasing piecewise-linear mapping fitted with
// pool-adjacent-violators. Between knots it interpolates linearly; outside the
// fitted range it is clipped to the end values.
type Isotonic struct {
	X []float64 `msgpack:"x" json:"x"`
	Y []float64 `msgpack:"y" json:"y"`
}

func (*Isotonic) Method() Method { return MethodIsotonic }

func (c *Isotonic) Calibrate(raw float64) float64 {
	n := len(c.X)
	switch {
	case n == 0 || math.IsNaN(raw):
		return clampProbability(raw)
	case raw <= c.X[0]:
		return clampProbability(c.Y[0])
	case raw >= c.X[n-1]:
		return clampProbability(c.Y[n-1])
	}

	// c.X[i-1] < raw <= c.X[i]
	i := sort.SearchFloat64s(c.X, raw)
	if c.X[i] == raw {
		return clampProbability(c.Y[i])
	}
	x0, x1 := c.X[i-1], c.X[i]
	y0, y1 := c.Y[i-1], c.Y[i]
	return clampProbability(y0 + (raw-x0)*(y1-y0)/(x1-x0))
}

type block struct {
	x      float64 // representative score
	sum    float64 // sum of labels
	weight float64
}

func (b block) mean() float64 { return b.sum / b.weight }

func fitIsotonic(scores []float64, labels []bool) *Isotonic {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	// Collapse tied scores into one point first so every knot has a distinct x.
	points := make([]block, 0, len(order))
	for _, idx := range order {
		y := 0.0
		if labels[idx] {
			y = 1
		}
		if k := len(points) - 1; k >= 0 && points[k].x == scores[idx] {
			points[k].sum += y
			points[k].weight++
			continue
		}
		points = append(points, block{x: scores[idx], sum: y, weight: 1})
	}

	// Pool adjacent violators; each pooled block remembers how many points it spans.
	pooled := make([]block, 0, len(points))
	spans := make([]int, 0, len(points))
	for _, p := range points {
		pooled = append(pooled, p)
		spans = append(spans, 1)
		for k := len(pooled) - 1; k > 0 && pooled[k-1].mean() > pooled[k].mean(); k-- {
			pooled[k-1].sum += pooled[k].sum
			pooled[k-1].weight += pooled[k].weight
			spans[k-1] += spans[k]
			pooled = pooled[:k]
			spans = spans[:k]
		}
	}

	fitted := &Isotonic{
		X: make([]float64, 0, len(points)),
		Y: make([]float64, 0, len(points)),
	}
	i := 0
	for b, blk := range pooled {
		v := blk.mean()
		for j := 0; j < spans[b]; j++ {
			fitted.X = append(fitted.X, points[i].x)
			fitted.Y = append(fitted.Y, v)
			i++
		}
	}
	return fitted.compact()
}

// compact drops knots in the interior of flat runs; interpolation is unchanged.
func (c *Isotonic) compact() *Isotonic {
	n := len(c.X)
	if n <= 2 {
		return c
	}
	out := &Isotonic{X: []float64{c.X[0]}, Y: []float64{c.Y[0]}}
	for i := 1; i < n-1; i++ {
		if c.Y[i] == c.Y[i-1] && c.Y[i] == c.Y[i+1] {
			continue
		}
		out.X = append(out.X, c.X[i])
		out.Y = append(out.Y, c.Y[i])
	}
	out.X = append(out.X, c.X[n-1])
	out.Y = append(out.Y, c.Y[n-1])
	return out
}
