package models

import "fmt"

// Volume is a 3D scalar grid stored as a 1D array with x varying fastest,
// matching the on-disk order of NIfTI and MGH images.
type Volume struct {
	// Data holds Dims[0]*Dims[1]*Dims[2] values
	Data []float64

	// Dims is the number of voxels along x, y and z
	Dims [3]int

	// VoxelSize is the physical edge length of a voxel in mm (0 when unknown)
	VoxelSize float64
}

// NewVolume allocates a zero-filled volume with the given dimensions.
func NewVolume(dims [3]int) *Volume {
	return &Volume{
		Data: make([]float64, dims[0]*dims[1]*dims[2]),
		Dims: dims,
	}
}

// VolumeFrom wraps existing data as a volume. The data length must match dims.
func VolumeFrom(data []float64, dims [3]int) (*Volume, error) {
	if n := dims[0] * dims[1] * dims[2]; n != len(data) {
		return nil, fmt.Errorf("%w: %d values do not fill a %dx%dx%d volume",
			ErrConfiguration, len(data), dims[0], dims[1], dims[2])
	}
	return &Volume{Data: data, Dims: dims}, nil
}

// Len returns the number of voxels.
func (v *Volume) Len() int { return len(v.Data) }

// Index converts 0-based voxel coordinates to the linear offset in Data.
func (v *Volume) Index(x, y, z int) int {
	return x + v.Dims[0]*(y+v.Dims[1]*z)
}

// At returns the value at voxel (x, y, z).
func (v *Volume) At(x, y, z int) float64 { return v.Data[v.Index(x, y, z)] }

// Set stores a value at voxel (x, y, z).
func (v *Volume) Set(x, y, z int, val float64) { v.Data[v.Index(x, y, z)] = val }

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	c := &Volume{Data: make([]float64, len(v.Data)), Dims: v.Dims, VoxelSize: v.VoxelSize}
	copy(c.Data, v.Data)
	return c
}

// ComplexVolume is the complex-valued counterpart of Volume.
type ComplexVolume struct {
	Data      []complex128
	Dims      [3]int
	VoxelSize float64
}

// Split returns the real and imaginary parts as two scalar volumes.
func (c *ComplexVolume) Split() (re, im *Volume) {
	re, im = NewVolume(c.Dims), NewVolume(c.Dims)
	for i, z := range c.Data {
		re.Data[i] = real(z)
		im.Data[i] = imag(z)
	}
	return re, im
}

// Stack is an ordered sequence of volumes sharing one grid, e.g. the
// fourth dimension of a 4D image. Order is preserved by every operation.
type Stack []*Volume

// Dims returns the grid of the first volume, or zero dims for an empty stack.
func (s Stack) Dims() [3]int {
	if len(s) == 0 {
		return [3]int{}
	}
	return s[0].Dims
}

// Coords is a 3 x N list of 0-based, real-valued voxel coordinates.
// A NaN component marks the coordinate as undefined.
type Coords struct {
	X, Y, Z []float64
}

// NewCoords allocates n coordinates.
func NewCoords(n int) Coords {
	return Coords{X: make([]float64, n), Y: make([]float64, n), Z: make([]float64, n)}
}

// Len returns the number of coordinates.
func (c Coords) Len() int { return len(c.X) }

// At returns the i-th coordinate.
func (c Coords) At(i int) (x, y, z float64) { return c.X[i], c.Y[i], c.Z[i] }

// Set stores the i-th coordinate.
func (c Coords) Set(i int, x, y, z float64) {
	c.X[i], c.Y[i], c.Z[i] = x, y, z
}
