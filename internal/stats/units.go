package stats

import "fmt"

// Statistic identifies one derived value an instance can publish.
type Statistic string

const (
	StatMean                       Statistic = "mean"
	StatMin                        Statistic = "min"
	StatMax                        Statistic = "max"
	StatVariance                   Statistic = "variance"
	StatStdDev                     Statistic = "std_dev"
	StatCovariance                 Statistic = "covariance"
	StatTrend                      Statistic = "trend"
	StatCount                      Statistic = "count"
	StatDuration                   Statistic = "duration"
	StatArgMin                     Statistic = "argmin"
	StatArgMax                     Statistic = "argmax"
	StatCoefficientOfDetermination Statistic = "coefficient_of_determination"
)

// KnownStatistics lists every publishable statistic, for configuration
// validation.
var KnownStatistics = []Statistic{
	StatMean, StatMin, StatMax, StatVariance, StatStdDev, StatCovariance,
	StatTrend, StatCount, StatDuration, StatArgMin, StatArgMax,
	StatCoefficientOfDetermination,
}

// varianceClass reports whether a statistic needs the second-moment fields,
// which in turn forces full-recompute maintenance on sliding windows.
func varianceClass(s Statistic) bool {
	switch s {
	case StatVariance, StatStdDev, StatCovariance, StatTrend,
		StatCoefficientOfDetermination:
		return true
	}
	return false
}

// UnitOf maps a statistic to the unit string of its published values, given
// the source sensor's unit and the configured time unit. This is a static
// configuration-time mapping; derived units transform (variance is squared,
// trend is per time unit) while order statistics inherit the source unit.
func UnitOf(s Statistic, sourceUnit, timeUnit string) string {
	switch s {
	case StatMean, StatMin, StatMax, StatStdDev:
		return sourceUnit
	case StatVariance:
		if sourceUnit == "" {
			return ""
		}
		return sourceUnit + "²"
	case StatCovariance:
		if sourceUnit == "" {
			return timeUnit
		}
		return sourceUnit + "⋅" + timeUnit
	case StatTrend:
		if sourceUnit == "" {
			return "1/" + timeUnit
		}
		return sourceUnit + "/" + timeUnit
	case StatDuration:
		return "ms"
	case StatArgMin, StatArgMax:
		return "ms"
	default: // count, coefficient of determination: dimensionless
		return ""
	}
}

// AccuracyDecimalsOf propagates the source sensor's accuracy-decimal setting
// to a derived statistic.
func AccuracyDecimalsOf(s Statistic, sourceDecimals int) int {
	switch s {
	case StatVariance:
		return 2 * sourceDecimals
	case StatCount, StatDuration, StatArgMin, StatArgMax:
		return 0
	case StatCoefficientOfDetermination:
		return 3
	default:
		return sourceDecimals
	}
}

// QuantileKey names the published value for a quantile query, e.g. p50 for
// the median or p99.9 for the 99.9th percentile.
func QuantileKey(q float64) Statistic {
	return Statistic(fmt.Sprintf("p%g", q*100))
}
