package interpolation

import (
	"fmt"
	"math"
	"sort"

	"nsdmap/internal/models"
)

// Labels returns the distinct values of data in ascending order. Every
// value must be finite.
func Labels(data []float64) ([]float64, error) {
	seen := make(map[float64]struct{})
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: label values must be finite, found %v", models.ErrData, v)
		}
		seen[v] = struct{}{}
	}
	labels := make([]float64, 0, len(seen))
	for v := range seen {
		labels = append(labels, v)
	}
	sort.Float64s(labels)
	return labels, nil
}

type labelSupport struct {
	rank int
	w    float64
}

// vote implements winner-take-all. Each label's indicator volume (1 where
// the field equals the label) is sampled with the trilinear kernel; the
// label with the largest value wins and ties go to the smallest label.
//
// The indicator of a label at a point is the summed weight of the corners
// holding that label, so only labels present among the 8 corners are
// visited. A point where every indicator is exactly zero gets NaN.
func vote(vol *models.Volume, q *queries, opts *Options) ([]float64, error) {
	labels, err := Labels(vol.Data)
	if err != nil {
		return nil, err
	}
	if limit := opts.labelWarnLimit(); len(labels) > limit {
		opts.logger().Warningf("more than %d labels are present (%d)", limit, len(labels))
	}
	rank := make(map[float64]int, len(labels))
	for i, l := range labels {
		rank[l] = i
	}

	out := make([]float64, len(q.x))
	var support [8]labelSupport
	for i := range out {
		c := trilinearCorners(vol.Dims, q.x[i], q.y[i], q.z[i])

		m := 0
		var total float64
		for k := 0; k < 8; k++ {
			r := rank[vol.Data[c.idx[k]]]
			total += c.w[k]
			j := 0
			for ; j < m; j++ {
				if support[j].rank == r {
					support[j].w += c.w[k]
					break
				}
			}
			if j == m {
				support[m] = labelSupport{rank: r, w: c.w[k]}
				m++
			}
		}

		if total == 0 {
			out[i] = math.NaN()
			continue
		}
		best := support[0]
		for _, s := range support[1:m] {
			if s.w > best.w || (s.w == best.w && s.rank < best.rank) {
				best = s
			}
		}
		if best.w == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = labels[best.rank]
	}
	return out, nil
}
