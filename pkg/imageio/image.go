// Package imageio reads and writes the image containers used for transform
// fields and mapped data: NIfTI-1 volumes (.nii, .nii.gz) and FreeSurfer
// MGH surfaces/volumes (.mgh, .mgz).
package imageio

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"nsdmap/internal/models"
)

// Image is a decoded container with up to 7 dimensions. Data is stored with
// the first dimension varying fastest. Complex images fill Complex instead
// of Data.
type Image struct {
	Data    []float64
	Complex []complex128

	// Dims lists the size of every dimension; trailing singleton
	// dimensions are kept as stored
	Dims []int

	// VoxelSize is the spacing along the first three dimensions in mm
	VoxelSize [3]float64

	// Type is the stored element class
	Type models.DataType
}

// Len returns the number of elements.
func (im *Image) Len() int {
	n := 1
	for _, d := range im.Dims {
		n *= d
	}
	return n
}

// IsComplex reports whether the image holds complex values.
func (im *Image) IsComplex() bool { return im.Complex != nil }

func (im *Image) dim(i int) int {
	if i < len(im.Dims) {
		return im.Dims[i]
	}
	return 1
}

// Grid returns the first three dimensions.
func (im *Image) Grid() [3]int {
	return [3]int{im.dim(0), im.dim(1), im.dim(2)}
}

// Frames returns the number of 3D volumes, i.e. the product of all
// dimensions after the third.
func (im *Image) Frames() int {
	n := 1
	for i := 3; i < len(im.Dims); i++ {
		n *= im.Dims[i]
	}
	return n
}

// Stack splits the image into its 3D volumes.
func (im *Image) Stack() (models.Stack, error) {
	if im.IsComplex() {
		return nil, fmt.Errorf("%w: complex image cannot be read as a real stack", models.ErrConfiguration)
	}
	grid := im.Grid()
	n := grid[0] * grid[1] * grid[2]
	stack := make(models.Stack, im.Frames())
	for f := range stack {
		data := make([]float64, n)
		copy(data, im.Data[f*n:(f+1)*n])
		stack[f] = &models.Volume{Data: data, Dims: grid, VoxelSize: im.VoxelSize[0]}
	}
	return stack, nil
}

// ComplexVolume returns the first 3D volume of a complex image.
func (im *Image) ComplexVolume() (*models.ComplexVolume, error) {
	if !im.IsComplex() {
		return nil, fmt.Errorf("%w: image is not complex", models.ErrConfiguration)
	}
	grid := im.Grid()
	n := grid[0] * grid[1] * grid[2]
	data := make([]complex128, n)
	copy(data, im.Complex[:n])
	return &models.ComplexVolume{Data: data, Dims: grid, VoxelSize: im.VoxelSize[0]}, nil
}

// Matrix reshapes the image to (first dimension) x (all remaining
// dimensions flattened), dropping singleton dimensions. A surface file
// stored as V x 1 x 1 x D becomes V x D.
func (im *Image) Matrix() (*mat.Dense, error) {
	if im.IsComplex() {
		return nil, fmt.Errorf("%w: complex image cannot be read as a matrix", models.ErrConfiguration)
	}
	rows := im.dim(0)
	if rows == 0 {
		return nil, fmt.Errorf("%w: empty image", models.ErrResource)
	}
	cols := im.Len() / rows
	m := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			m.Set(i, j, im.Data[i+rows*j])
		}
	}
	return m, nil
}

// VolumeOptions controls how a volume is placed in world space when written.
type VolumeOptions struct {
	// VoxelSize is the isotropic voxel edge in mm; 0 writes 1
	VoxelSize float64

	// Origin is the voxel (0-based) that sits at world (0,0,0); nil means
	// the grid centre ((1+dims)/2)-1
	Origin *[3]float64

	// FlipX reverses the first axis before writing
	FlipX bool

	// Type is the element class written to disk
	Type models.DataType
}
