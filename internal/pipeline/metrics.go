package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Definition
var (
	statisticValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sensorstats_statistic_value",
			Help: "Latest published value of a derived statistic for a sensor.",
		},
		[]string{"sensor", "statistic"},
	)
	readingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorstats_readings_total",
			Help: "Total number of raw readings ingested per sensor.",
		},
		[]string{"sensor"},
	)
	publicationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorstats_publications_total",
			Help: "Total number of statistic publications per sensor.",
		},
		[]string{"sensor"},
	)
	parseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorstats_parse_failures_total",
			Help: "Total number of payloads that could not be parsed as a reading.",
		},
		[]string{"sensor"},
	)
	resetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorstats_resets_total",
			Help: "Total number of externally triggered resets per sensor.",
		},
		[]string{"sensor"},
	)
)
