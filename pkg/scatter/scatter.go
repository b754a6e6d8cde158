// Package scatter accumulates per-vertex surface data into a cubic voxel
// grid.
//
// Every vertex spreads its value over the 8 voxels around it. Along each
// axis the vertex is d away from the floor (or ceil) voxel and contributes
// with proximity 1-d; a corner's weight is the sum of its three
// proximities, so weights lie in [0, 3]. A vertex on a grid point puts all
// 8 contributions, 24 in total, into that single voxel.
package scatter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"nsdmap/internal/models"
	"nsdmap/pkg/interpolation"
	"nsdmap/pkg/logging"
)

// Mode selects how vertex values are combined in a voxel.
type Mode int

const (
	// WeightedAverage divides the weighted sum of values by the summed weight
	WeightedAverage Mode = iota
	// LabelVote gives a voxel the label with the largest summed weight
	LabelVote
)

// DivisorPolicy decides what happens when a voxel's summed weight is
// nonzero but below the caution threshold.
type DivisorPolicy int

const (
	// WarnAndSubstitute logs once and writes the fill value
	WarnAndSubstitute DivisorPolicy = iota
	// Abort fails the whole call with a data error
	Abort
)

// ParseDivisorPolicy maps "warn" and "abort" to a policy.
func ParseDivisorPolicy(s string) (DivisorPolicy, error) {
	switch s {
	case "", "warn":
		return WarnAndSubstitute, nil
	case "abort":
		return Abort, nil
	}
	return 0, fmt.Errorf("%w: unknown divisor policy %q", models.ErrConfiguration, s)
}

// DefaultCaution is the weight magnitude treated as zero.
const DefaultCaution = 1e-5

// Options configures a scatter. A nil *Options means fill 0, caution 1e-5,
// warn-and-substitute.
type Options struct {
	// Fill is written to voxels no vertex reaches
	Fill float64

	// Caution is the magnitude below which a summed weight counts as zero;
	// 0 means DefaultCaution
	Caution float64

	Policy DivisorPolicy

	Logger logging.Logger
}

func (o *Options) fill() float64 {
	if o == nil {
		return 0
	}
	return o.Fill
}

func (o *Options) caution() float64 {
	if o == nil || o.Caution == 0 {
		return DefaultCaution
	}
	return o.Caution
}

func (o *Options) policy() DivisorPolicy {
	if o == nil {
		return WarnAndSubstitute
	}
	return o.Policy
}

func (o *Options) logger() logging.Logger {
	if o == nil || o.Logger == nil {
		return logging.Default()
	}
	return o.Logger
}

// Result holds one R x R x R volume per dataset, in dataset order, plus
// counters for the conditions that were warned about.
type Result struct {
	Volumes models.Stack

	// NegligibleDivisors counts voxels whose weight was nonzero but below
	// the caution threshold
	NegligibleDivisors int

	// SkippedCorners counts kernel corners that fell outside the grid or
	// belonged to a vertex with a non-finite coordinate
	SkippedCorners int
}

// Map scatters data (V x D, one column per dataset) from the vertices
// (0-based voxel coordinates) into an res^3 grid.
func Map(data mat.Matrix, vertices models.Coords, res int, mode Mode, opts *Options) (*Result, error) {
	switch mode {
	case WeightedAverage:
		return Average(data, vertices, res, opts)
	case LabelVote:
		return Vote(data, vertices, res, opts)
	}
	return nil, fmt.Errorf("%w: unknown scatter mode %d", models.ErrConfiguration, mode)
}

// corner is one voxel of a vertex's kernel.
type corner struct {
	voxel int
	w     float64
}

// kernel returns the in-grid corners of a vertex and how many were skipped.
func kernel(x, y, z float64, res int) (out [8]corner, n, skipped int) {
	if !finite(x) || !finite(y) || !finite(z) {
		return out, 0, 8
	}
	for _, xs := range [2]bool{false, true} {
		xr, xw := axis(x, xs)
		for _, ys := range [2]bool{false, true} {
			yr, yw := axis(y, ys)
			for _, zs := range [2]bool{false, true} {
				zr, zw := axis(z, zs)
				if xr < 0 || yr < 0 || zr < 0 || xr >= res || yr >= res || zr >= res {
					skipped++
					continue
				}
				out[n] = corner{voxel: xr + res*(yr+res*zr), w: xw + yw + zw}
				n++
			}
		}
	}
	return out, n, skipped
}

// axis returns the floor (or ceil) voxel along one axis and the proximity
// 1-d, where d is the distance to that voxel.
func axis(v float64, ceil bool) (int, float64) {
	if ceil {
		r := math.Ceil(v)
		return int(r), 1 - (r - v)
	}
	r := math.Floor(v)
	return int(r), 1 - (v - r)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func checkShapes(data mat.Matrix, vertices models.Coords, res int) (nv, nd int, err error) {
	nv, nd = data.Dims()
	if nv != vertices.Len() {
		return 0, 0, fmt.Errorf("%w: %d data rows for %d vertices", models.ErrConfiguration, nv, vertices.Len())
	}
	if len(vertices.Y) != nv || len(vertices.Z) != nv {
		return 0, 0, fmt.Errorf("%w: vertex coordinate components have different lengths", models.ErrConfiguration)
	}
	if res <= 0 {
		return 0, 0, fmt.Errorf("%w: grid resolution must be positive, got %d", models.ErrConfiguration, res)
	}
	return nv, nd, nil
}

func newGrid(res int, fill float64) *models.Volume {
	vol := models.NewVolume([3]int{res, res, res})
	for i := range vol.Data {
		vol.Data[i] = fill
	}
	return vol
}

// Average computes, per voxel and dataset, the weighted sum of vertex
// values divided by the summed weight. Voxels with zero or negligible
// weight receive the fill value.
func Average(data mat.Matrix, vertices models.Coords, res int, opts *Options) (*Result, error) {
	nv, nd, err := checkShapes(data, vertices, res)
	if err != nil {
		return nil, err
	}

	weights := make(map[int]float64)
	sums := make(map[int][]float64)
	out := &Result{}
	for v := 0; v < nv; v++ {
		cs, n, skipped := kernel(vertices.X[v], vertices.Y[v], vertices.Z[v], res)
		out.SkippedCorners += skipped
		for _, c := range cs[:n] {
			weights[c.voxel] += c.w
			s, ok := sums[c.voxel]
			if !ok {
				s = make([]float64, nd)
				sums[c.voxel] = s
			}
			for d := 0; d < nd; d++ {
				s[d] += c.w * data.At(v, d)
			}
		}
	}
	warnSkipped(opts, out.SkippedCorners)

	caution := opts.caution()
	for _, w := range weights {
		if w != 0 && math.Abs(w) < caution {
			out.NegligibleDivisors++
		}
	}
	if out.NegligibleDivisors > 0 {
		if opts.policy() == Abort {
			return nil, fmt.Errorf("%w: %d voxels have summed weight below %g", models.ErrData, out.NegligibleDivisors, caution)
		}
		opts.logger().Warningf("abs value of %d divisors less than %g, treating them as 0", out.NegligibleDivisors, caution)
	}

	fill := opts.fill()
	out.Volumes = make(models.Stack, nd)
	for d := range out.Volumes {
		out.Volumes[d] = newGrid(res, fill)
	}
	for voxel, w := range weights {
		if math.Abs(w) < caution {
			continue
		}
		for d, s := range sums[voxel] {
			out.Volumes[d].Data[voxel] = s / w
		}
	}
	return out, nil
}

type labelWeight struct {
	rank int
	w    float64
}

// Vote treats every dataset as discrete labels. Each label is expanded into
// its own indicator channel, scattered with the same kernel, and the voxel
// takes the label with the largest summed weight; ties go to the smaller
// label. Voxels with no weight receive the fill value.
func Vote(data mat.Matrix, vertices models.Coords, res int, opts *Options) (*Result, error) {
	nv, nd, err := checkShapes(data, vertices, res)
	if err != nil {
		return nil, err
	}

	out := &Result{Volumes: make(models.Stack, nd)}
	for d := 0; d < nd; d++ {
		col := mat.Col(nil, d, data)
		labels, err := interpolation.Labels(col)
		if err != nil {
			return nil, fmt.Errorf("dataset %d: %w", d, err)
		}
		rank := make(map[float64]int, len(labels))
		for i, l := range labels {
			rank[l] = i
		}

		votes := make(map[int][]labelWeight)
		skippedTotal := 0
		for v := 0; v < nv; v++ {
			cs, n, skipped := kernel(vertices.X[v], vertices.Y[v], vertices.Z[v], res)
			skippedTotal += skipped
			r := rank[col[v]]
			for _, c := range cs[:n] {
				votes[c.voxel] = addVote(votes[c.voxel], r, c.w)
			}
		}
		if d == 0 {
			out.SkippedCorners = skippedTotal
			warnSkipped(opts, skippedTotal)
		}

		vol := newGrid(res, opts.fill())
		for voxel, lw := range votes {
			best := lw[0]
			var total float64
			for _, c := range lw {
				total += c.w
				if c.w > best.w || (c.w == best.w && c.rank < best.rank) {
					best = c
				}
			}
			if total == 0 {
				continue
			}
			vol.Data[voxel] = labels[best.rank]
		}
		out.Volumes[d] = vol
	}
	return out, nil
}

func addVote(lw []labelWeight, rank int, w float64) []labelWeight {
	for i := range lw {
		if lw[i].rank == rank {
			lw[i].w += w
			return lw
		}
	}
	return append(lw, labelWeight{rank: rank, w: w})
}

func warnSkipped(opts *Options, n int) {
	if n > 0 {
		opts.logger().Warningf("%d kernel corners fell outside the grid or had non-finite vertices", n)
	}
}
