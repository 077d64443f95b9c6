package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkOf(values []float64, t0, spacing int64) Aggregate {
	return accumulate(values, t0, spacing)
}

func TestSlidingWindowEvictsOldest(t *testing.T) {
	w := NewWindow(WindowConfig{Policy: PolicySliding, MaxChunks: 3})

	for i, v := range []float64{1, 2, 3, 4, 5} {
		w.Push(NewAggregate(v, 1000, int64(i)*1000))
	}

	a := w.Aggregate()
	assert.Equal(t, uint64(3), a.Count())
	assert.InDelta(t, 4.0, a.Mean(), 1e-9)
	assert.Equal(t, 3.0, a.Min())
	assert.Equal(t, 5.0, a.Max())
	assert.Equal(t, float64(2000), a.ArgMin())
}

func TestSlidingWindowStateMonotonic(t *testing.T) {
	w := NewWindow(WindowConfig{Policy: PolicySliding, MaxChunks: 2})

	assert.Equal(t, StateAccumulating, w.State())
	w.Push(NewAggregate(1, 0, 0))
	assert.Equal(t, StateAccumulating, w.State())
	w.Push(NewAggregate(2, 1000, 1000))
	assert.Equal(t, StateSteady, w.State())
	w.Push(NewAggregate(3, 1000, 2000))
	assert.Equal(t, StateSteady, w.State())

	w.Clear()
	assert.Equal(t, StateAccumulating, w.State())
	assert.Equal(t, 0, w.Size())
	assert.True(t, math.IsNaN(w.Aggregate().Mean()))
}

func TestSlidingWindowVarianceMatchesRecompute(t *testing.T) {
	w := NewWindow(WindowConfig{
		Policy: PolicySliding, MaxChunks: 4, VarianceClass: true,
	})

	values := []float64{10, 12, 11, 15, 14, 13, 16}
	for i, v := range values {
		w.Push(NewAggregate(v, 1000, int64(i)*1000))
	}

	// The live window holds the last four observations.
	live := values[len(values)-4:]
	_, wantVar := naiveMeanVar(live)
	assert.InDelta(t, wantVar, w.Aggregate().Variance(false, GroupSample), 1e-9)
	assert.Equal(t, uint64(4), w.Aggregate().Count())
}

func TestSlidingWindowCheapPathExtremumRescan(t *testing.T) {
	w := NewWindow(WindowConfig{Policy: PolicySliding, MaxChunks: 3})

	w.Push(NewAggregate(100, 0, 0)) // max, evicted next
	w.Push(NewAggregate(2, 1000, 1000))
	w.Push(NewAggregate(8, 1000, 2000))
	w.Push(NewAggregate(5, 1000, 3000)) // evicts the 100

	a := w.Aggregate()
	assert.Equal(t, 8.0, a.Max(), "max rescan after evicting the holder")
	assert.Equal(t, 2.0, a.Min())
	assert.InDelta(t, 5.0, a.Mean(), 1e-9)
}

func TestChunkedSlidingWindowMergesChunks(t *testing.T) {
	w := NewWindow(WindowConfig{Policy: PolicyChunkedSliding, MaxChunks: 2})

	w.Push(chunkOf([]float64{1, 2}, 0, 1000))
	w.Push(chunkOf([]float64{3, 4}, 2000, 1000))
	w.Push(chunkOf([]float64{5, 6}, 4000, 1000))

	a := w.Aggregate()
	assert.Equal(t, uint64(4), a.Count())
	assert.InDelta(t, 4.5, a.Mean(), 1e-9)
	assert.Equal(t, 3.0, a.Min())
	assert.Equal(t, 6.0, a.Max())
}

func TestDurationBoundedSlidingWindow(t *testing.T) {
	w := NewWindow(WindowConfig{
		Policy: PolicySliding, MaxDuration: 2500, Capacity: 16,
	})

	for i, v := range []float64{1, 2, 3, 4, 5} {
		var dur int64
		if i > 0 {
			dur = 1000
		}
		w.Push(NewAggregate(v, dur, int64(i)*1000))
	}

	// Whole chunks are evicted until the covered span fits 2500 ms, leaving
	// the two most recent 1000 ms chunks.
	a := w.Aggregate()
	assert.LessOrEqual(t, a.Duration(), int64(2500))
	assert.Equal(t, uint64(2), a.Count())
	assert.Equal(t, 4.0, a.Min())
	assert.Equal(t, 5.0, a.Max())
}

func TestContinuousWindowNeverEvicts(t *testing.T) {
	w := NewWindow(WindowConfig{Policy: PolicyContinuous})

	for i := 0; i < 100; i++ {
		w.Push(NewAggregate(float64(i), 1000, int64(i)*1000))
	}

	a := w.Aggregate()
	assert.Equal(t, uint64(100), a.Count())
	assert.InDelta(t, 49.5, a.Mean(), 1e-9)
	assert.Equal(t, 0.0, a.Min())
	assert.Equal(t, 99.0, a.Max())
	assert.Equal(t, StateAccumulating, w.State(), "unbounded windows never reach steady")
}

func TestContinuousWindowResetBound(t *testing.T) {
	w := NewWindow(WindowConfig{Policy: PolicyContinuous, MaxChunks: 3})

	w.Push(NewAggregate(1, 0, 0))
	w.Push(NewAggregate(2, 1000, 1000))
	w.Push(NewAggregate(3, 1000, 2000))
	assert.Equal(t, StateSteady, w.State())
	assert.Equal(t, uint64(3), w.Aggregate().Count())

	// Reaching the bound restarts the session on the next insertion.
	w.Push(NewAggregate(9, 1000, 3000))
	assert.Equal(t, uint64(1), w.Aggregate().Count())
	assert.Equal(t, 9.0, w.Aggregate().Mean())
}

func TestChunkedContinuousMatchesDirect(t *testing.T) {
	w := NewWindow(WindowConfig{Policy: PolicyChunkedContinuous})

	direct := Aggregate{}
	for i := 0; i < 500; i++ {
		c := NewAggregate(float64(i%17), 1000, int64(i)*1000)
		w.Push(c)
		direct = Combine(direct, c, false)
	}

	a := w.Aggregate()
	require.Equal(t, direct.Count(), a.Count())
	assert.InDelta(t, direct.Mean(), a.Mean(), 1e-9)
	assert.InDelta(t, direct.Variance(false, GroupSample), a.Variance(false, GroupSample), 1e-6)
	assert.Equal(t, direct.Min(), a.Min())
	assert.Equal(t, direct.Max(), a.Max())
}

func TestRunningQueueConsolidation(t *testing.T) {
	q := newRunningQueue(0, false)

	for i := 0; i < 1000; i++ {
		q.insert(NewAggregate(1, 0, int64(i)))
	}

	// log2(1000) < 10, so the queue occupies few slots while covering all
	// observations.
	assert.Equal(t, uint64(1000), q.aggregate().Count())
	assert.LessOrEqual(t, q.index, 11)
}

func TestWindowSeed(t *testing.T) {
	w := NewWindow(WindowConfig{Policy: PolicyContinuous})
	w.Seed(FromSnapshot(Snapshot{Count: 10, Duration: 9000, Mean: 4, Min: 1, Max: 7}))
	w.Push(NewAggregate(6, 1000, 10000))

	a := w.Aggregate()
	assert.Equal(t, uint64(11), a.Count())
	assert.Equal(t, 7.0, a.Max())
}
