// Package visualization renders quick-look images of mapped volumes.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"nsdmap/internal/models"
)

// Viewer extracts slices and slice mosaics from a volume.
type Viewer struct {
	vol *models.Volume
}

// NewViewer creates a viewer for vol. The volume is not copied.
func NewViewer(vol *models.Volume) *Viewer {
	return &Viewer{vol: vol}
}

// axisIndex maps "x", "y" or "z" to 0, 1 or 2.
func axisIndex(axis string) (int, error) {
	switch strings.ToLower(axis) {
	case "x":
		return 0, nil
	case "y":
		return 1, nil
	case "z":
		return 2, nil
	}
	return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// planeAxes returns the two in-plane axes (row axis, column axis) for a
// slice normal to axis.
func planeAxes(axis int) (int, int) {
	switch axis {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	}
	return 0, 1
}

// ExtractSlice returns the slice at position along axis. Rows follow the
// lower remaining axis, so a z slice is x by y.
func (v *Viewer) ExtractSlice(axis string, position int) (*mat.Dense, error) {
	a, err := axisIndex(axis)
	if err != nil {
		return nil, err
	}
	if position < 0 || position >= v.vol.Dims[a] {
		return nil, fmt.Errorf("position %d outside [0, %d)", position, v.vol.Dims[a])
	}
	ra, ca := planeAxes(a)
	rows, cols := v.vol.Dims[ra], v.vol.Dims[ca]
	slice := mat.NewDense(rows, cols, nil)
	var p [3]int
	p[a] = position
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			p[ra], p[ca] = i, j
			slice.Set(i, j, v.vol.At(p[0], p[1], p[2]))
		}
	}
	return slice, nil
}

// nanMax returns the largest non-NaN value, or NaN when there is none.
func nanMax(data []float64) float64 {
	mx := math.NaN()
	for _, x := range data {
		if !math.IsNaN(x) && (math.IsNaN(mx) || x > mx) {
			mx = x
		}
	}
	return mx
}

// Mosaic tiles every slice along axis into one near-square image: slices
// fill a grid of floor(sqrt(n)) rows column by column. Each tile gets a one
// pixel border on its bottom and right set to the volume maximum; unused
// tiles stay 0.
func (v *Viewer) Mosaic(axis string) (*mat.Dense, error) {
	a, err := axisIndex(axis)
	if err != nil {
		return nil, err
	}
	n := v.vol.Dims[a]
	if n == 0 || v.vol.Len() == 0 {
		return nil, fmt.Errorf("empty volume")
	}
	ra, ca := planeAxes(a)
	tr, tc := v.vol.Dims[ra]+1, v.vol.Dims[ca]+1

	rows := int(math.Floor(math.Sqrt(float64(n))))
	cols := (n + rows - 1) / rows
	mx := nanMax(v.vol.Data)

	out := mat.NewDense(tr*rows, tc*cols, nil)
	for k := 0; k < n; k++ {
		slice, err := v.ExtractSlice(axis, k)
		if err != nil {
			return nil, err
		}
		tile := out.Slice((k%rows)*tr, (k%rows+1)*tr, (k/rows)*tc, (k/rows+1)*tc).(*mat.Dense)
		for i := 0; i < tr; i++ {
			tile.Set(i, tc-1, mx)
		}
		for j := 0; j < tc; j++ {
			tile.Set(tr-1, j, mx)
		}
		tile.Slice(0, tr-1, 0, tc-1).(*mat.Dense).Copy(slice)
	}
	return out, nil
}

// ToImage scales m linearly from its finite minimum (black) to its finite
// maximum (white). Non-finite entries are black.
func ToImage(m mat.Matrix) *image.Gray16 {
	rows, cols := m.Dims()
	var finite []float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if x := m.At(i, j); !math.IsNaN(x) && !math.IsInf(x, 0) {
				finite = append(finite, x)
			}
		}
	}
	lo, hi := 0.0, 1.0
	if len(finite) > 0 {
		lo, hi = floats.Min(finite), floats.Max(finite)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	// image x runs along matrix columns
	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			x := m.At(i, j)
			if math.IsNaN(x) || math.IsInf(x, 0) {
				continue
			}
			value := uint16(math.Max(0, math.Min(65535, (x-lo)/span*65535)))
			img.SetGray16(j, i, color.Gray16{Y: value})
		}
	}
	return img
}

// SaveImage writes img as PNG, or as JPEG for .jpg and .jpeg names.
func SaveImage(img image.Image, filename string) error {
	var encode func(*os.File) error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		encode = func(f *os.File) error { return jpeg.Encode(f, img, &jpeg.Options{Quality: 90}) }
	case ".png":
		encode = func(f *os.File) error { return png.Encode(f, img) }
	default:
		return fmt.Errorf("unsupported image format: %s", filename)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := encode(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SaveMosaic renders the mosaic along axis to filename.
func (v *Viewer) SaveMosaic(axis, filename string) error {
	m, err := v.Mosaic(axis)
	if err != nil {
		return err
	}
	return SaveImage(ToImage(m), filename)
}
