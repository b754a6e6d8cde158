package interpolation

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"nsdmap/internal/models"
)

// bsplinePole is the single pole of the cubic B-spline prefilter.
var bsplinePole = math.Sqrt(3) - 2

// splinePad is how many edge samples are added on each side of an axis
// before prefiltering, so the spline sees a constant extension of the border
// rather than a reflection of the data.
const splinePad = 12

// edgePad returns vol grown by splinePad copies of its border voxels along
// every axis longer than one voxel, and the offset of the original grid.
func edgePad(vol *models.Volume) (*models.Volume, [3]int) {
	var off, dims [3]int
	for a, d := range vol.Dims {
		if d > 1 {
			off[a] = splinePad
		}
		dims[a] = d + 2*off[a]
	}
	out := models.NewVolume(dims)
	edge := func(k, a int) int { return min(max(k-off[a], 0), vol.Dims[a]-1) }
	for z := 0; z < dims[2]; z++ {
		sz := edge(z, 2)
		for y := 0; y < dims[1]; y++ {
			sy := edge(y, 1)
			for x := 0; x < dims[0]; x++ {
				out.Set(x, y, z, vol.At(edge(x, 0), sy, sz))
			}
		}
	}
	return out, off
}

// bsplineCoefficients converts samples to cubic B-spline coefficients by
// running the recursive prefilter along x, then y, then z. Evaluating the
// spline at a grid point then reproduces the sample exactly.
func bsplineCoefficients(vol *models.Volume) *models.Volume {
	coef := vol.Clone()
	nx, ny, nz := vol.Dims[0], vol.Dims[1], vol.Dims[2]

	line := make([]float64, max(nx, ny, nz))

	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			l := line[:nx]
			for x := range l {
				l[x] = coef.At(x, y, z)
			}
			prefilter(l)
			for x := range l {
				coef.Set(x, y, z, l[x])
			}
		}
	}
	for z := 0; z < nz; z++ {
		for x := 0; x < nx; x++ {
			l := line[:ny]
			for y := range l {
				l[y] = coef.At(x, y, z)
			}
			prefilter(l)
			for y := range l {
				coef.Set(x, y, z, l[y])
			}
		}
	}
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			l := line[:nz]
			for z := range l {
				l[z] = coef.At(x, y, z)
			}
			prefilter(l)
			for z := range l {
				coef.Set(x, y, z, l[z])
			}
		}
	}
	return coef
}

// prefilter runs the causal and anti-causal recursions in place, with
// mirror-symmetric boundaries.
func prefilter(c []float64) {
	n := len(c)
	if n < 2 {
		return
	}
	z := bsplinePole
	floats.Scale((1-z)*(1-1/z), c)

	c[0] = causalInit(c, z)
	for k := 1; k < n; k++ {
		c[k] += z * c[k-1]
	}
	c[n-1] = (z / (z*z - 1)) * (z*c[n-2] + c[n-1])
	for k := n - 2; k >= 0; k-- {
		c[k] = z * (c[k+1] - c[k])
	}
}

// causalInit is the exact initial value of the causal recursion for a
// mirror-extended signal.
func causalInit(c []float64, z float64) float64 {
	n := len(c)
	zn := z
	iz := 1 / z
	z2n := math.Pow(z, float64(n-1))
	sum := c[0] + z2n*c[n-1]
	z2n *= z2n * iz
	for k := 1; k < n-1; k++ {
		sum += (zn + z2n) * c[k]
		zn *= z
		z2n *= iz
	}
	return sum / (1 - zn*zn)
}
