package stats

import (
	"math"
	"sort"
)

// ScaleFunc selects the rule bounding a centroid's permissible weight as a
// function of its quantile position. All three keep centroids denser near
// the tails; they trade tail accuracy against total centroid count. The
// choice affects insertion and compression only, never the query algorithms.
type ScaleFunc int

const (
	// ScaleK1 is the classic arcsine-derived bound, proportional to q(1-q).
	ScaleK1 ScaleFunc = iota
	// ScaleK2 is the log-odds bound, tighter tails for large streams.
	ScaleK2
	// ScaleK3 bounds by min(q, 1-q), giving the most aggressive tails.
	ScaleK3
)

type centroid struct {
	mean   float64
	weight float64
}

// Digest is a fixed-capacity streaming summary of the observation
// distribution. It ingests weighted observations and answers approximate
// quantile and cumulative-distribution queries with memory bounded by the
// configured capacity, independent of stream length.
//
// Centroids are kept sorted by value. Inserting merges into the nearest
// centroid when the scale-function bound permits, otherwise adds a new
// centroid; exceeding capacity triggers compression, which consolidates
// adjacent centroids and always restores the bound.
type Digest struct {
	capacity  int
	scale     ScaleFunc
	centroids []centroid
	total     float64
	min, max  float64
}

// NewDigest builds an empty digest. Capacity is assumed validated (small
// fixed range) by configuration.
func NewDigest(capacity int, scale ScaleFunc) *Digest {
	return &Digest{
		capacity:  capacity,
		scale:     scale,
		centroids: make([]centroid, 0, capacity+1),
		min:       math.Inf(1),
		max:       math.Inf(-1),
	}
}

// Insert absorbs one weighted observation. Weight defaults to 1 per
// observation upstream unless a duration-weighted source is configured.
func (d *Digest) Insert(value, weight float64) {
	if math.IsNaN(value) || weight <= 0 {
		return
	}
	if value < d.min {
		d.min = value
	}
	if value > d.max {
		d.max = value
	}

	i := sort.Search(len(d.centroids), func(i int) bool {
		return d.centroids[i].mean >= value
	})

	// Nearest neighbor among the two bracketing centroids.
	nearest := -1
	if i > 0 {
		nearest = i - 1
	}
	if i < len(d.centroids) {
		if nearest < 0 || d.centroids[i].mean-value < value-d.centroids[nearest].mean {
			nearest = i
		}
	}

	newTotal := d.total + weight
	if nearest >= 0 {
		c := &d.centroids[nearest]
		q := (d.cumBefore(nearest) + c.weight/2) / newTotal
		if c.weight+weight <= d.maxWeight(q, newTotal) {
			c.mean += weight * (value - c.mean) / (c.weight + weight)
			c.weight += weight
			d.total = newTotal
			return
		}
	}

	d.centroids = append(d.centroids, centroid{})
	copy(d.centroids[i+1:], d.centroids[i:])
	d.centroids[i] = centroid{mean: value, weight: weight}
	d.total = newTotal

	if len(d.centroids) > d.capacity {
		d.compress()
	}
}

// compress consolidates centroids until the digest fits its capacity again.
// A left-to-right sweep re-applies the scale-function bound; if the sweep
// alone does not shrink far enough, the lightest adjacent pairs are merged
// until it does. Mass is consolidated, never discarded.
func (d *Digest) compress() {
	if len(d.centroids) < 2 {
		return
	}

	out := d.centroids[:1]
	cum := 0.0
	for _, c := range d.centroids[1:] {
		last := &out[len(out)-1]
		w := last.weight + c.weight
		q := (cum + w/2) / d.total
		if w <= d.maxWeight(q, d.total) {
			last.mean = (last.mean*last.weight + c.mean*c.weight) / w
			last.weight = w
		} else {
			cum += last.weight
			out = append(out, c)
		}
	}
	d.centroids = out

	for len(d.centroids) > d.capacity {
		best, bestW := 0, math.Inf(1)
		for i := 0; i+1 < len(d.centroids); i++ {
			if w := d.centroids[i].weight + d.centroids[i+1].weight; w < bestW {
				best, bestW = i, w
			}
		}
		a, b := d.centroids[best], d.centroids[best+1]
		d.centroids[best] = centroid{
			mean:   (a.mean*a.weight + b.mean*b.weight) / bestW,
			weight: bestW,
		}
		d.centroids = append(d.centroids[:best+1], d.centroids[best+2:]...)
	}
}

// Quantile returns an approximation of the value at quantile q in [0, 1],
// interpolating linearly between the centroids whose cumulative weight
// brackets q of the total. NaN when the digest is empty.
func (d *Digest) Quantile(q float64) float64 {
	if d.total == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return d.min
	}
	if q >= 1 {
		return d.max
	}
	if len(d.centroids) == 1 {
		return d.centroids[0].mean
	}

	target := q * d.total
	cum := 0.0
	prevMid, prevMean := 0.0, d.min
	for _, c := range d.centroids {
		mid := cum + c.weight/2
		if target < mid {
			if mid == prevMid {
				return c.mean
			}
			return prevMean + (target-prevMid)*(c.mean-prevMean)/(mid-prevMid)
		}
		cum += c.weight
		prevMid, prevMean = mid, c.mean
	}
	// Upper tail: interpolate toward the observed maximum.
	if d.total == prevMid {
		return d.max
	}
	return prevMean + (target-prevMid)*(d.max-prevMean)/(d.total-prevMid)
}

// CDF returns the approximate fraction of total weight at or below value,
// interpolated between bracketing centroids. NaN when the digest is empty.
func (d *Digest) CDF(value float64) float64 {
	if d.total == 0 {
		return math.NaN()
	}
	if value < d.min {
		return 0
	}
	if value > d.max {
		return 1
	}
	if d.max == d.min {
		return 0.5
	}

	cum := 0.0
	prevMid, prevMean := 0.0, d.min
	for _, c := range d.centroids {
		mid := cum + c.weight/2
		if value < c.mean {
			if c.mean == prevMean {
				return prevMid / d.total
			}
			return (prevMid + (value-prevMean)*(mid-prevMid)/(c.mean-prevMean)) / d.total
		}
		cum += c.weight
		prevMid, prevMean = mid, c.mean
	}
	if d.max == prevMean {
		return 1
	}
	return (prevMid + (value-prevMean)*(d.total-prevMid)/(d.max-prevMean)) / d.total
}

// TotalWeight returns the accumulated weight.
func (d *Digest) TotalWeight() float64 { return d.total }

// Centroids returns the current centroid count.
func (d *Digest) Centroids() int { return len(d.centroids) }

// Reset empties the digest.
func (d *Digest) Reset() {
	d.centroids = d.centroids[:0]
	d.total = 0
	d.min = math.Inf(1)
	d.max = math.Inf(-1)
}

func (d *Digest) cumBefore(i int) float64 {
	cum := 0.0
	for j := 0; j < i; j++ {
		cum += d.centroids[j].weight
	}
	return cum
}

// maxWeight is the scale-function bound on a centroid's weight at quantile
// position q, for the given total weight.
func (d *Digest) maxWeight(q, total float64) float64 {
	const eps = 1e-9
	if q < eps {
		q = eps
	}
	if q > 1-eps {
		q = 1 - eps
	}
	delta := float64(d.capacity)
	switch d.scale {
	case ScaleK2:
		z := 4*math.Log(math.Max(total/delta, math.E)) + 24
		return total * q * (1 - q) * z / delta
	case ScaleK3:
		z := 4*math.Log(math.Max(total/delta, math.E)) + 21
		return total * math.Min(q, 1-q) * z / delta
	default: // ScaleK1
		return 4 * total * q * (1 - q) / delta
	}
}
