// Package interpolation resamples 3D scalar or complex fields at arbitrary
// real-valued voxel coordinates, or assigns discrete labels by a
// winner-take-all vote.
//
// Coordinates are 0-based. A coordinate is undefined when any component is
// NaN, infinite, below 0 or above dim-1, and its result is always NaN. All
// kernels clamp their queries into the grid, so the NaN is written after
// sampling and never comes from edge extrapolation.
package interpolation

import (
	"fmt"
	"math"
	"strings"

	"nsdmap/internal/models"
	"nsdmap/pkg/logging"
)

// Mode selects the interpolation kernel.
type Mode int

const (
	Nearest Mode = iota
	Linear
	Cubic
	// WTA votes among discrete labels using linearly interpolated indicators
	WTA
)

// DefaultLabelWarnLimit is the label count above which WTA warns.
const DefaultLabelWarnLimit = 1000

func (m Mode) String() string {
	switch m {
	case Nearest:
		return "nearest"
	case Linear:
		return "linear"
	case Cubic:
		return "cubic"
	case WTA:
		return "wta"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Order returns the spline order used for sampling: 0, 1 or 3.
// WTA samples its indicators linearly.
func (m Mode) Order() int {
	switch m {
	case Nearest:
		return 0
	case Cubic:
		return 3
	}
	return 1
}

// ParseMode maps "nearest", "linear", "cubic" and "wta" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearest":
		return Nearest, nil
	case "linear":
		return Linear, nil
	case "cubic", "":
		return Cubic, nil
	case "wta":
		return WTA, nil
	}
	return 0, fmt.Errorf("%w: interpolation method %q not implemented", models.ErrConfiguration, s)
}

// Options tunes warnings. A nil *Options uses the defaults.
type Options struct {
	// LabelWarnLimit triggers a warning when WTA sees more distinct labels
	LabelWarnLimit int

	// Logger receives data warnings; nil means the package-level logger
	Logger logging.Logger
}

func (o *Options) logger() logging.Logger {
	if o == nil || o.Logger == nil {
		return logging.Default()
	}
	return o.Logger
}

func (o *Options) labelWarnLimit() int {
	if o == nil || o.LabelWarnLimit <= 0 {
		return DefaultLabelWarnLimit
	}
	return o.LabelWarnLimit
}

// Interpolate samples vol at every coordinate and returns one value per
// coordinate. Undefined coordinates yield NaN in every mode.
func Interpolate(vol *models.Volume, coords models.Coords, mode Mode, opts *Options) ([]float64, error) {
	if err := checkInputs(vol.Dims, len(vol.Data), coords); err != nil {
		return nil, err
	}
	q := prepare(vol.Dims, coords)

	var out []float64
	if mode == WTA {
		var err error
		if out, err = vote(vol, q, opts); err != nil {
			return nil, err
		}
	} else {
		out = sample(sanitize(vol), q, mode)
	}

	for i, bad := range q.undefined {
		if bad {
			out[i] = math.NaN()
		}
	}
	return out, nil
}

// InterpolateComplex interpolates the real and imaginary parts
// independently with the same kernel and recombines them.
func InterpolateComplex(vol *models.ComplexVolume, coords models.Coords, mode Mode, opts *Options) ([]complex128, error) {
	if mode == WTA {
		return nil, fmt.Errorf("%w: wta requires real-valued labels", models.ErrConfiguration)
	}
	re, im := vol.Split()
	r, err := Interpolate(re, coords, mode, opts)
	if err != nil {
		return nil, err
	}
	i, err := Interpolate(im, coords, mode, opts)
	if err != nil {
		return nil, err
	}
	out := make([]complex128, len(r))
	for k := range out {
		out[k] = complex(r[k], i[k])
	}
	return out, nil
}

func checkInputs(dims [3]int, n int, coords models.Coords) error {
	if dims[0] <= 0 || dims[1] <= 0 || dims[2] <= 0 || dims[0]*dims[1]*dims[2] != n {
		return fmt.Errorf("%w: field of %d values does not match dims %v", models.ErrConfiguration, n, dims)
	}
	if len(coords.Y) != len(coords.X) || len(coords.Z) != len(coords.X) {
		return fmt.Errorf("%w: coordinate components have different lengths", models.ErrConfiguration)
	}
	return nil
}

// queries holds coordinates clamped into the grid plus the undefined mask.
type queries struct {
	dims      [3]int
	x, y, z   []float64
	undefined []bool
}

func prepare(dims [3]int, c models.Coords) *queries {
	n := c.Len()
	q := &queries{
		dims:      dims,
		x:         make([]float64, n),
		y:         make([]float64, n),
		z:         make([]float64, n),
		undefined: make([]bool, n),
	}
	for i := 0; i < n; i++ {
		x, y, z := c.At(i)
		if !inRange(x, dims[0]) || !inRange(y, dims[1]) || !inRange(z, dims[2]) {
			q.undefined[i] = true
		}
		q.x[i] = clamp(x, dims[0])
		q.y[i] = clamp(y, dims[1])
		q.z[i] = clamp(z, dims[2])
	}
	return q
}

func inRange(v float64, dim int) bool {
	return !math.IsNaN(v) && v >= 0 && v <= float64(dim-1)
}

// clamp maps any query onto [0, dim-1]; NaN goes to 0.
func clamp(v float64, dim int) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if hi := float64(dim - 1); v > hi {
		return hi
	}
	return v
}

// sanitize replaces NaN with 0 and infinities with the largest finite
// values, so one bad voxel cannot poison its neighbourhood.
func sanitize(vol *models.Volume) *models.Volume {
	clean := true
	for _, v := range vol.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			clean = false
			break
		}
	}
	if clean {
		return vol
	}
	c := vol.Clone()
	for i, v := range c.Data {
		switch {
		case math.IsNaN(v):
			c.Data[i] = 0
		case math.IsInf(v, 1):
			c.Data[i] = math.MaxFloat64
		case math.IsInf(v, -1):
			c.Data[i] = -math.MaxFloat64
		}
	}
	return c
}
