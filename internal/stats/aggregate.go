package stats

import "math"

// GroupType selects the divisor used for variance-class statistics.
type GroupType int

const (
	// GroupSample applies Bessel's correction (n-1 divisor), or reliability
	// weights when averages are time weighted.
	GroupSample GroupType = iota
	// GroupPopulation divides by the raw count (or total duration).
	GroupPopulation
)

// Aggregate holds the sufficient statistics for a contiguous run of
// observations. It supports O(1) derived-statistic queries without storing
// raw samples, and two aggregates covering disjoint time ranges can be
// combined in closed form.
//
// Means are kept directly (not as raw sums) and second moments as Welford
// M2/C2 quantities, which avoids catastrophic cancellation over long runs.
// Timestamp moments are stored as offsets from a reference timestamp so the
// magnitudes stay small.
//
// The zero value is the identity element: it represents zero observations
// and combining with it returns the other operand unchanged.
type Aggregate struct {
	count      uint64
	duration   int64 // milliseconds covered by the observations
	durationSq int64

	min    float64
	max    float64
	argMin int64 // timestamp (ms) of the minimum
	argMax int64 // timestamp (ms) of the maximum

	mean float64
	m2   float64 // Welford M2 of values

	tMean float64 // mean of timestamps, offset from tRef
	tM2   float64 // Welford M2 of timestamps
	c2    float64 // value/timestamp co-moment

	tRef int64 // reference timestamp (ms) for the timestamp moments
}

// NewAggregate lifts a single observation into an Aggregate. A NaN value
// yields the identity aggregate, so missing readings are absorbed silently.
// duration is the time in milliseconds attributed to this observation
// (typically the gap since the previous one).
func NewAggregate(value float64, duration int64, timestamp int64) Aggregate {
	if math.IsNaN(value) {
		return Aggregate{}
	}
	return Aggregate{
		count:      1,
		duration:   duration,
		durationSq: duration * duration,
		min:        value,
		max:        value,
		argMin:     timestamp,
		argMax:     timestamp,
		mean:       value,
		tRef:       timestamp,
	}
}

// Combine merges two aggregates covering disjoint time ranges into one
// covering the union. The combination is associative: accumulating a stream
// directly or in arbitrary contiguous pieces yields the same sufficient
// statistics up to floating-point rounding.
//
// The second moments use the parallel Welford combination; a naive addition
// of raw sums of squares would lose the cross term between the two means.
func Combine(a, b Aggregate, timeWeighted bool) Aggregate {
	if b.count == 0 {
		return a
	}
	if a.count == 0 {
		return b
	}

	c := Aggregate{
		count:      a.count + b.count,
		duration:   a.duration + b.duration,
		durationSq: a.durationSq + b.durationSq,
	}

	c.min, c.argMin = a.min, a.argMin
	if b.min < a.min || (b.min == a.min && b.argMin < a.argMin) {
		c.min, c.argMin = b.min, b.argMin
	}
	c.max, c.argMax = a.max, a.argMax
	if b.max > a.max || (b.max == a.max && b.argMax < a.argMax) {
		c.max, c.argMax = b.max, b.argMax
	}

	// Re-express both timestamp means against the more recent reference so
	// the offsets never grow with stream age.
	aTMean, bTMean := a.tMean, b.tMean
	if a.tRef < b.tRef {
		aTMean -= float64(b.tRef - a.tRef)
		c.tRef = b.tRef
	} else {
		bTMean -= float64(a.tRef - b.tRef)
		c.tRef = a.tRef
	}

	var aW, bW, cW float64
	if timeWeighted {
		aW, bW = float64(a.duration), float64(b.duration)
	} else {
		aW, bW = float64(a.count), float64(b.count)
	}
	cW = aW + bW

	delta := b.mean - a.mean
	deltaPrime := delta * bW / cW

	tDelta := bTMean - aTMean
	tDeltaPrime := tDelta * bW / cW

	// For lopsided counts the Welford delta form is faster and accurate
	// enough; for comparable counts a weighted average is more stable.
	if b.count < c.count/4 || a.count < c.count/4 {
		c.mean = a.mean + deltaPrime
		c.tMean = aTMean + tDeltaPrime
	} else {
		c.mean = a.mean*(aW/cW) + b.mean*(bW/cW)
		c.tMean = aTMean*(aW/cW) + bTMean*(bW/cW)
	}

	c.m2 = a.m2 + b.m2 + aW*delta*deltaPrime
	c.tM2 = a.tM2 + b.tM2 + aW*tDelta*tDeltaPrime
	c.c2 = a.c2 + b.c2 + aW*delta*tDeltaPrime

	return c
}

// Remove is the inverse of absorbing a single observation. It is only valid
// when exactly that (value, timestamp, duration) was previously added with
// count weighting. Extrema cannot be un-evicted from sufficient statistics
// alone; when the removed observation was the current minimum or maximum the
// caller must rescan the remaining window (see the sliding window engine).
func (a Aggregate) Remove(value float64, duration int64, timestamp int64) Aggregate {
	if math.IsNaN(value) || a.count == 0 {
		return a
	}
	if a.count == 1 {
		return Aggregate{}
	}

	n := float64(a.count)
	r := a
	r.count--
	r.duration -= duration
	r.durationSq -= duration * duration

	meanAfter := (n*a.mean - value) / (n - 1)
	r.m2 = a.m2 - (value-meanAfter)*(value-a.mean)
	r.mean = meanAfter

	tOff := float64(timestamp - a.tRef)
	tMeanAfter := (n*a.tMean - tOff) / (n - 1)
	r.tM2 = a.tM2 - (tOff-tMeanAfter)*(tOff-a.tMean)
	r.c2 = a.c2 - (value-meanAfter)*(tOff-a.tMean)
	r.tMean = tMeanAfter

	return r
}

// Count returns the number of observations absorbed.
func (a Aggregate) Count() uint64 { return a.count }

// Duration returns the total time in milliseconds covered.
func (a Aggregate) Duration() int64 { return a.duration }

// Mean returns the (possibly time-weighted) average, or NaN when empty.
func (a Aggregate) Mean() float64 {
	if a.count == 0 {
		return math.NaN()
	}
	return a.mean
}

// Min returns the smallest observed value, or NaN when empty.
func (a Aggregate) Min() float64 {
	if a.count == 0 {
		return math.NaN()
	}
	return a.min
}

// Max returns the largest observed value, or NaN when empty.
func (a Aggregate) Max() float64 {
	if a.count == 0 {
		return math.NaN()
	}
	return a.max
}

// ArgMin returns the timestamp (ms) at which the minimum occurred, or NaN.
func (a Aggregate) ArgMin() float64 {
	if a.count == 0 {
		return math.NaN()
	}
	return float64(a.argMin)
}

// ArgMax returns the timestamp (ms) at which the maximum occurred, or NaN.
func (a Aggregate) ArgMax() float64 {
	if a.count == 0 {
		return math.NaN()
	}
	return float64(a.argMax)
}

// Variance returns the variance of the observed values, or NaN with fewer
// than two observations.
func (a Aggregate) Variance(timeWeighted bool, group GroupType) float64 {
	if a.count < 2 {
		return math.NaN()
	}
	return a.m2 / a.denominator(timeWeighted, group)
}

// StdDev returns the standard deviation, or NaN with fewer than two
// observations.
func (a Aggregate) StdDev(timeWeighted bool, group GroupType) float64 {
	return math.Sqrt(a.Variance(timeWeighted, group))
}

// Covariance returns the covariance of value against timestamp in
// (value unit)·ms, or NaN with fewer than two observations.
func (a Aggregate) Covariance(timeWeighted bool, group GroupType) float64 {
	if a.count < 2 {
		return math.NaN()
	}
	return a.c2 / a.denominator(timeWeighted, group)
}

// Trend returns the least-squares slope of value against time in
// (value unit)/ms, or NaN with fewer than two observations.
func (a Aggregate) Trend() float64 {
	if a.count < 2 {
		return math.NaN()
	}
	return a.c2 / a.tM2
}

// CoefficientOfDetermination returns r², the squared correlation of value
// against time, or NaN when undefined.
func (a Aggregate) CoefficientOfDetermination() float64 {
	if a.count < 2 || a.m2 <= 0 || a.tM2 <= 0 {
		return math.NaN()
	}
	return (a.c2 * a.c2) / (a.m2 * a.tM2)
}

func (a Aggregate) denominator(timeWeighted bool, group GroupType) float64 {
	if !timeWeighted {
		if group == GroupPopulation {
			return float64(a.count)
		}
		return float64(a.count) - 1
	}
	d := float64(a.duration)
	if group == GroupPopulation {
		return d
	}
	// Reliability weights for the weighted sample variance.
	return d - float64(a.durationSq)/d
}

// Snapshot is the serializable form of an Aggregate's sufficient statistics,
// used for optional restore-on-boot of running aggregates.
type Snapshot struct {
	Count      uint64  `json:"count"`
	Duration   int64   `json:"duration"`
	DurationSq int64   `json:"duration_sq"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	ArgMin     int64   `json:"arg_min"`
	ArgMax     int64   `json:"arg_max"`
	Mean       float64 `json:"mean"`
	M2         float64 `json:"m2"`
	TMean      float64 `json:"t_mean"`
	TM2        float64 `json:"t_m2"`
	C2         float64 `json:"c2"`
	TRef       int64   `json:"t_ref"`
}

// Snapshot exports the sufficient statistics.
func (a Aggregate) Snapshot() Snapshot {
	return Snapshot{
		Count: a.count, Duration: a.duration, DurationSq: a.durationSq,
		Min: a.min, Max: a.max, ArgMin: a.argMin, ArgMax: a.argMax,
		Mean: a.mean, M2: a.m2, TMean: a.tMean, TM2: a.tM2, C2: a.c2,
		TRef: a.tRef,
	}
}

// FromSnapshot rebuilds an Aggregate from exported sufficient statistics.
func FromSnapshot(s Snapshot) Aggregate {
	return Aggregate{
		count: s.Count, duration: s.Duration, durationSq: s.DurationSq,
		min: s.Min, max: s.Max, argMin: s.ArgMin, argMax: s.ArgMax,
		mean: s.Mean, m2: s.M2, tMean: s.TMean, tM2: s.TM2, c2: s.C2,
		tRef: s.TRef,
	}
}
