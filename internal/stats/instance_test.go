package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func slidingInstance(t *testing.T, mutate func(*InstanceConfig)) *Instance {
	t.Helper()
	cfg := InstanceConfig{
		Name:       "temp",
		Window:     WindowConfig{Policy: PolicySliding, MaxChunks: 5},
		Statistics: []Statistic{StatMean, StatMin, StatMax, StatCount},
		TimeFactor: 1000,
		SendEvery:  1,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewInstance(cfg, zap.NewNop())
}

func TestInstancePublishesEachObservation(t *testing.T) {
	inst := slidingInstance(t, nil)

	res, ok := inst.Observe(10, 0)
	require.True(t, ok)
	assert.Equal(t, "temp", res.Instance)
	assert.Equal(t, int64(0), res.Timestamp)
	assert.Equal(t, 10.0, res.Values[StatMean])
	assert.Equal(t, 1.0, res.Values[StatCount])

	res, ok = inst.Observe(20, 1000)
	require.True(t, ok)
	assert.Equal(t, 15.0, res.Values[StatMean])
	assert.Equal(t, 10.0, res.Values[StatMin])
	assert.Equal(t, 20.0, res.Values[StatMax])
}

func TestInstanceSlidingEviction(t *testing.T) {
	inst := slidingInstance(t, func(c *InstanceConfig) {
		c.Window.MaxChunks = 3
	})

	var last Result
	for i, v := range []float64{1, 2, 3, 4, 5} {
		res, ok := inst.Observe(v, int64(i)*1000)
		require.True(t, ok)
		last = res
	}
	assert.Equal(t, 3.0, last.Values[StatCount])
	assert.InDelta(t, 4.0, last.Values[StatMean], 1e-9)
	assert.Equal(t, 3.0, last.Values[StatMin])
}

func TestInstanceSendEveryCadence(t *testing.T) {
	inst := slidingInstance(t, func(c *InstanceConfig) {
		c.SendEvery = 3
		c.SendFirstAt = 2
	})

	var fired []int
	for i := 1; i <= 9; i++ {
		if _, ok := inst.Observe(float64(i), int64(i)*1000); ok {
			fired = append(fired, i)
		}
	}
	assert.Equal(t, []int{2, 5, 8}, fired)
}

func TestInstanceManualOnlyPublication(t *testing.T) {
	inst := slidingInstance(t, func(c *InstanceConfig) {
		c.SendEvery = 0
	})

	for i := 0; i < 10; i++ {
		_, ok := inst.Observe(float64(i), int64(i)*1000)
		assert.False(t, ok)
	}

	res := inst.ForcePublish(10000)
	assert.Equal(t, 5.0, res.Values[StatCount])
}

func TestInstanceUndefinedStatsOmitted(t *testing.T) {
	inst := slidingInstance(t, func(c *InstanceConfig) {
		c.Statistics = []Statistic{StatMean, StatVariance, StatTrend}
	})

	res, ok := inst.Observe(7, 0)
	require.True(t, ok)
	assert.Contains(t, res.Values, StatMean)
	assert.NotContains(t, res.Values, StatVariance, "variance undefined for one observation")
	assert.NotContains(t, res.Values, StatTrend)

	res, ok = inst.Observe(9, 1000)
	require.True(t, ok)
	assert.Contains(t, res.Values, StatVariance)
	assert.Contains(t, res.Values, StatTrend)
}

func TestInstanceTrendTimeUnit(t *testing.T) {
	inst := slidingInstance(t, func(c *InstanceConfig) {
		c.Statistics = []Statistic{StatTrend, StatCovariance}
		c.TimeFactor = 1000 // seconds
	})

	// value climbs 2 per second.
	var res Result
	var ok bool
	for i := 0; i < 5; i++ {
		res, ok = inst.Observe(float64(i)*2, int64(i)*1000)
	}
	require.True(t, ok)
	assert.InDelta(t, 2.0, res.Values[StatTrend], 1e-9)
}

func TestInstanceTimeWeightedMean(t *testing.T) {
	inst := slidingInstance(t, func(c *InstanceConfig) {
		c.Average = AverageTimeWeighted
		c.Statistics = []Statistic{StatMean}
	})

	// 10 held for 1000 ms, then 20 held for 1000 ms. The reading at 2000 ms
	// closes the second interval.
	inst.Observe(10, 0)
	inst.Observe(20, 1000)
	res, ok := inst.Observe(20, 2000)
	require.True(t, ok)
	assert.InDelta(t, 15.0, res.Values[StatMean], 1e-9)
}

func TestInstanceChunkedPublication(t *testing.T) {
	inst := slidingInstance(t, func(c *InstanceConfig) {
		c.Window = WindowConfig{Policy: PolicyChunkedSliding, MaxChunks: 2}
		c.ChunkSize = 2
	})

	_, ok := inst.Observe(1, 0)
	assert.False(t, ok, "open chunk does not publish")
	res, ok := inst.Observe(3, 1000)
	require.True(t, ok)
	assert.Equal(t, 2.0, res.Values[StatMean])

	inst.Observe(5, 2000)
	res, ok = inst.Observe(7, 3000)
	require.True(t, ok)
	assert.Equal(t, 4.0, res.Values[StatMean])
	assert.Equal(t, 4.0, res.Values[StatCount])
}

func TestInstanceResetDiscardsHistory(t *testing.T) {
	inst := slidingInstance(t, nil)
	inst.Observe(100, 0)
	inst.Observe(200, 1000)

	inst.Reset()

	res := inst.ForcePublish(2000)
	assert.Equal(t, 0.0, res.Values[StatCount])
	assert.NotContains(t, res.Values, StatMean, "value statistics undefined after reset")
	assert.NotContains(t, res.Values, StatMin)

	res, ok := inst.Observe(5, 3000)
	require.True(t, ok)
	assert.Equal(t, 5.0, res.Values[StatMean])
	assert.Equal(t, 1.0, res.Values[StatCount])
}

func TestInstancePrecisionSingle(t *testing.T) {
	inst := slidingInstance(t, func(c *InstanceConfig) {
		c.Precision = PrecisionSingle
	})

	res, ok := inst.Observe(0.1, 0)
	require.True(t, ok)
	assert.Equal(t, float64(float32(0.1)), res.Values[StatMean])
}

func TestInstanceDigestQuantiles(t *testing.T) {
	inst := slidingInstance(t, func(c *InstanceConfig) {
		c.Window = WindowConfig{Policy: PolicyContinuous}
		c.SendEvery = 0
		c.Digest = &DigestConfig{
			Capacity:  64,
			Scale:     ScaleK1,
			Quantiles: []float64{0.5, 0.9},
		}
	})

	for i := 1; i <= 100; i++ {
		inst.Observe(float64(i), int64(i)*1000)
	}

	res := inst.ForcePublish(200000)
	require.Contains(t, res.Values, Statistic("p50"))
	require.Contains(t, res.Values, Statistic("p90"))
	assert.InDelta(t, 50.0, res.Values["p50"], 3)
	assert.InDelta(t, 90.0, res.Values["p90"], 3)
}

func TestInstanceSnapshotRestore(t *testing.T) {
	cont := func(c *InstanceConfig) {
		c.Window = WindowConfig{Policy: PolicyContinuous}
		c.SendEvery = 0
	}
	a := slidingInstance(t, cont)
	for i := 0; i < 10; i++ {
		a.Observe(float64(i), int64(i)*1000)
	}

	b := slidingInstance(t, cont)
	b.RestoreState(a.SnapshotState())
	res := b.ForcePublish(10000)

	assert.Equal(t, 10.0, res.Values[StatCount])
	assert.InDelta(t, 4.5, res.Values[StatMean], 1e-9)
	assert.Equal(t, 0.0, res.Values[StatMin])
	assert.Equal(t, 9.0, res.Values[StatMax])
}
