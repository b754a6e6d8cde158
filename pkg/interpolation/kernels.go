package interpolation

import (
	"math"

	"nsdmap/internal/models"
)

// sample evaluates the kernel of mode at every (clamped) query.
func sample(vol *models.Volume, q *queries, mode Mode) []float64 {
	out := make([]float64, len(q.x))
	switch mode.Order() {
	case 0:
		for i := range out {
			out[i] = nearestAt(vol, q.x[i], q.y[i], q.z[i])
		}
	case 1:
		for i := range out {
			out[i] = linearAt(vol, q.x[i], q.y[i], q.z[i])
		}
	default:
		padded, off := edgePad(vol)
		coef := bsplineCoefficients(padded)
		for i := range out {
			out[i] = cubicAt(coef, q.x[i]+float64(off[0]), q.y[i]+float64(off[1]), q.z[i]+float64(off[2]))
		}
	}
	return out
}

// nearestIndex rounds half up and stays inside [0, dim-1].
func nearestIndex(v float64, dim int) int {
	i := int(math.Floor(v + 0.5))
	if i > dim-1 {
		i = dim - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func nearestAt(vol *models.Volume, x, y, z float64) float64 {
	return vol.At(nearestIndex(x, vol.Dims[0]), nearestIndex(y, vol.Dims[1]), nearestIndex(z, vol.Dims[2]))
}

// corners describes the 8-voxel trilinear neighbourhood of a point.
type corners struct {
	idx [8]int
	w   [8]float64
}

// lowHigh returns the two grid indices bracketing v and the fraction
// towards the upper one. v must already be in [0, dim-1].
func lowHigh(v float64, dim int) (lo, hi int, t float64) {
	lo = int(math.Floor(v))
	hi = lo + 1
	if hi > dim-1 {
		hi = dim - 1
	}
	return lo, hi, v - float64(lo)
}

func trilinearCorners(dims [3]int, x, y, z float64) corners {
	x0, x1, tx := lowHigh(x, dims[0])
	y0, y1, ty := lowHigh(y, dims[1])
	z0, z1, tz := lowHigh(z, dims[2])
	xi, xw := [2]int{x0, x1}, [2]float64{1 - tx, tx}
	yi, yw := [2]int{y0, y1}, [2]float64{1 - ty, ty}
	zi, zw := [2]int{z0, z1}, [2]float64{1 - tz, tz}

	var c corners
	k := 0
	for zc := 0; zc < 2; zc++ {
		for yc := 0; yc < 2; yc++ {
			for xc := 0; xc < 2; xc++ {
				c.idx[k] = xi[xc] + dims[0]*(yi[yc]+dims[1]*zi[zc])
				c.w[k] = xw[xc] * yw[yc] * zw[zc]
				k++
			}
		}
	}
	return c
}

func linearAt(vol *models.Volume, x, y, z float64) float64 {
	c := trilinearCorners(vol.Dims, x, y, z)
	var sum float64
	for k := 0; k < 8; k++ {
		sum += c.w[k] * vol.Data[c.idx[k]]
	}
	return sum
}

// cubicWeights returns the cubic B-spline weights for taps i-1..i+2 where
// t is the fractional offset from i.
func cubicWeights(t float64) [4]float64 {
	s := 1 - t
	return [4]float64{
		s * s * s / 6,
		2.0/3.0 - t*t + t*t*t/2,
		2.0/3.0 - s*s + s*s*s/2,
		t * t * t / 6,
	}
}

func cubicAt(coef *models.Volume, x, y, z float64) float64 {
	ix, iy, iz := int(math.Floor(x)), int(math.Floor(y)), int(math.Floor(z))
	wx := cubicWeights(x - float64(ix))
	wy := cubicWeights(y - float64(iy))
	wz := cubicWeights(z - float64(iz))

	var xs, ys, zs [4]int
	for k := 0; k < 4; k++ {
		xs[k] = mirror(ix-1+k, coef.Dims[0])
		ys[k] = mirror(iy-1+k, coef.Dims[1])
		zs[k] = mirror(iz-1+k, coef.Dims[2])
	}

	var sum float64
	for c := 0; c < 4; c++ {
		if wz[c] == 0 {
			continue
		}
		var plane float64
		for b := 0; b < 4; b++ {
			if wy[b] == 0 {
				continue
			}
			var row float64
			for a := 0; a < 4; a++ {
				row += wx[a] * coef.At(xs[a], ys[b], zs[c])
			}
			plane += wy[b] * row
		}
		sum += wz[c] * plane
	}
	return sum
}

// mirror reflects an index into [0, n-1] with whole-sample symmetry, the
// same extension the prefilter assumes. On edge-padded coefficients the taps
// of any in-grid query stay inside the padding.
func mirror(k, n int) int {
	if n == 1 {
		return 0
	}
	period := 2*n - 2
	if k < 0 {
		k = -k
	}
	k %= period
	if k >= n {
		k = period - k
	}
	return k
}
