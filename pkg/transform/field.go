// Package transform loads precomputed transform fields and maps data from
// one space to another with them.
package transform

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"nsdmap/internal/models"
	"nsdmap/pkg/imageio"
	"nsdmap/pkg/space"
)

// Undefined is the value stored in transform fields where no source
// location exists.
const Undefined = 9999

// Reader loads images by path. imageio.Files is the filesystem
// implementation.
type Reader interface {
	ReadImage(path string) (*imageio.Image, error)
}

// Writer persists mapped results. imageio.Files is the filesystem
// implementation.
type Writer interface {
	WriteVolume(path string, vols models.Stack, opts imageio.VolumeOptions) error
	WriteComplexVolume(path string, vol *models.ComplexVolume, opts imageio.VolumeOptions) error
	WriteSurface(path string, data mat.Matrix, fsdir string) error
}

// Field is a loaded transform in canonical layout. Values are kept as
// stored: 1-based and with the Undefined sentinel.
type Field struct {
	Case space.Case

	// Grid is the target volume grid (volume-to-volume only)
	Grid [3]int

	// Values has one row per target location: voxels in x-fastest order
	// or vertices. Coordinate fields have 3 columns, index maps have 1.
	Values *mat.Dense
}

// Rows returns the number of target locations.
func (f *Field) Rows() int {
	r, _ := f.Values.Dims()
	return r
}

// LoadField reads the transform file(s) of c. Surface-indexed arrays are
// squeezed to vertices x components, and the per-surface arrays of a
// scatter case are stacked in source order.
func LoadField(c space.Case, r Reader) (*Field, error) {
	f := &Field{Case: c}
	switch c := c.(type) {
	case *space.VolumeCase:
		im, err := r.ReadImage(c.File)
		if err != nil {
			return nil, fmt.Errorf("loading transform: %w", err)
		}
		if im.IsComplex() || im.Frames() != 3 {
			return nil, fmt.Errorf("%w: %s is not an X x Y x Z x 3 coordinate field", models.ErrResource, c.File)
		}
		f.Grid = im.Grid()
		n := f.Grid[0] * f.Grid[1] * f.Grid[2]
		f.Values = mat.NewDense(n, 3, nil)
		for k := 0; k < 3; k++ {
			for i := 0; i < n; i++ {
				f.Values.Set(i, k, im.Data[i+n*k])
			}
		}

	case *space.SurfaceCase:
		cols := 3
		if c.Group {
			cols = 1
		}
		m, err := loadSurfaceField(c.File, cols, r)
		if err != nil {
			return nil, err
		}
		f.Values = m

	case *space.ScatterCase:
		var acc *mat.Dense
		for _, p := range c.Paths {
			m, err := loadSurfaceField(p, 3, r)
			if err != nil {
				return nil, err
			}
			if acc == nil {
				acc = m
				continue
			}
			var s mat.Dense
			s.Stack(acc, m)
			acc = &s
		}
		if acc == nil {
			return nil, fmt.Errorf("%w: no transform files for %s", models.ErrConfiguration, c.Kind())
		}
		f.Values = acc

	default:
		return nil, fmt.Errorf("%w: unknown case %T", models.ErrConfiguration, c)
	}

	return f, nil
}

func loadSurfaceField(path string, cols int, r Reader) (*mat.Dense, error) {
	im, err := r.ReadImage(path)
	if err != nil {
		return nil, fmt.Errorf("loading transform: %w", err)
	}
	m, err := im.Matrix()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, c := m.Dims(); c != cols {
		return nil, fmt.Errorf("%w: %s has %d columns, want %d", models.ErrResource, path, c, cols)
	}
	return m, nil
}

// Coords converts a coordinate field to 0-based source coordinates. The
// sentinel becomes NaN so the engines treat the location as undefined.
func (f *Field) Coords() (models.Coords, error) {
	rows, cols := f.Values.Dims()
	if cols != 3 {
		return models.Coords{}, fmt.Errorf("%w: %s field has no coordinates", models.ErrConfiguration, f.Case.Kind())
	}
	c := models.NewCoords(rows)
	dst := [3][]float64{c.X, c.Y, c.Z}
	for i := 0; i < rows; i++ {
		for k := 0; k < 3; k++ {
			v := f.Values.At(i, k)
			if v == Undefined {
				v = math.NaN()
			}
			dst[k][i] = v - 1
		}
	}
	return c, nil
}

// Indices converts an index map to 0-based source vertex indices. Entries
// that are not positive integers map to -1.
func (f *Field) Indices() ([]int, error) {
	rows, cols := f.Values.Dims()
	if cols != 1 {
		return nil, fmt.Errorf("%w: %s field is not an index map", models.ErrConfiguration, f.Case.Kind())
	}
	out := make([]int, rows)
	for i := range out {
		v := f.Values.At(i, 0)
		if v == Undefined || math.IsNaN(v) || v < 1 || v != math.Trunc(v) {
			out[i] = -1
			continue
		}
		out[i] = int(v) - 1
	}
	return out, nil
}
