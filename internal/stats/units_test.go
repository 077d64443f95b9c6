package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnitOf(t *testing.T) {
	assert.Equal(t, "°C", UnitOf(StatMean, "°C", "s"))
	assert.Equal(t, "°C", UnitOf(StatStdDev, "°C", "s"))
	assert.Equal(t, "°C²", UnitOf(StatVariance, "°C", "s"))
	assert.Equal(t, "°C⋅min", UnitOf(StatCovariance, "°C", "min"))
	assert.Equal(t, "°C/s", UnitOf(StatTrend, "°C", "s"))
	assert.Equal(t, "ms", UnitOf(StatDuration, "°C", "s"))
	assert.Equal(t, "ms", UnitOf(StatArgMax, "°C", "s"))
	assert.Equal(t, "", UnitOf(StatCount, "°C", "s"))
	assert.Equal(t, "", UnitOf(StatCoefficientOfDetermination, "°C", "s"))
}

func TestUnitOfUnitlessSource(t *testing.T) {
	assert.Equal(t, "", UnitOf(StatVariance, "", "s"))
	assert.Equal(t, "1/s", UnitOf(StatTrend, "", "s"))
	assert.Equal(t, "s", UnitOf(StatCovariance, "", "s"))
}

func TestAccuracyDecimalsOf(t *testing.T) {
	assert.Equal(t, 2, AccuracyDecimalsOf(StatMean, 2))
	assert.Equal(t, 4, AccuracyDecimalsOf(StatVariance, 2))
	assert.Equal(t, 0, AccuracyDecimalsOf(StatCount, 2))
	assert.Equal(t, 0, AccuracyDecimalsOf(StatArgMin, 2))
	assert.Equal(t, 3, AccuracyDecimalsOf(StatCoefficientOfDetermination, 2))
}

func TestQuantileKey(t *testing.T) {
	assert.Equal(t, Statistic("p50"), QuantileKey(0.5))
	assert.Equal(t, Statistic("p99.9"), QuantileKey(0.999))
	assert.Equal(t, Statistic("p1"), QuantileKey(0.01))
}

func TestVarianceClass(t *testing.T) {
	for _, s := range []Statistic{StatVariance, StatStdDev, StatCovariance, StatTrend, StatCoefficientOfDetermination} {
		assert.True(t, varianceClass(s), string(s))
	}
	for _, s := range []Statistic{StatMean, StatMin, StatMax, StatCount, StatDuration, StatArgMin, StatArgMax} {
		assert.False(t, varianceClass(s), string(s))
	}
}
