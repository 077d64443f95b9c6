package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sensorstats/sensorstats/internal/config"
	"github.com/sensorstats/sensorstats/internal/reading"
	"github.com/sensorstats/sensorstats/internal/stats"
)

func testSensors() []config.SensorConfig {
	s := []config.SensorConfig{{
		Name:       "temp",
		Topic:      "home/temp",
		WindowType: "sliding",
		WindowSize: 5,
		Statistics: []string{"mean", "min", "max", "count"},
		SendEvery:  1,
	}}
	cfg := &config.Config{
		Source:  config.SourceConfig{Type: "mqtt", MQTT: config.MQTTConfig{Broker: "mqtt://localhost:1883"}},
		Sensors: s,
	}
	if err := config.Validate(cfg); err != nil {
		panic(err)
	}
	return cfg.Sensors
}

type processorHarness struct {
	readings chan reading.Reading
	commands chan Command
	results  chan stats.Result
	done     chan error
	cancel   context.CancelFunc
	stopped  bool
}

// stop cancels the processor and waits for Run to return, including its
// shutdown state snapshot. Safe to call more than once.
func (h *processorHarness) stop(t *testing.T) {
	t.Helper()
	if h.stopped {
		return
	}
	h.stopped = true
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop")
	}
}

func startProcessor(t *testing.T, sensors []config.SensorConfig, stateFile string) *processorHarness {
	t.Helper()
	h := &processorHarness{
		readings: make(chan reading.Reading, 16),
		commands: make(chan Command, 16),
		results:  make(chan stats.Result, 16),
		done:     make(chan error, 1),
	}
	p := NewProcessor(sensors, stateFile, h.readings, h.commands, h.results, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- p.Run(ctx) }()
	t.Cleanup(func() { h.stop(t) })
	return h
}

func (h *processorHarness) awaitResult(t *testing.T) stats.Result {
	t.Helper()
	select {
	case r := <-h.results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a result")
		return stats.Result{}
	}
}

func TestProcessorPublishesResults(t *testing.T) {
	h := startProcessor(t, testSensors(), "")

	h.readings <- reading.Reading{Sensor: "temp", Value: 10, Timestamp: 0}
	res := h.awaitResult(t)
	assert.Equal(t, "temp", res.Instance)
	assert.Equal(t, 10.0, res.Values[stats.StatMean])

	h.readings <- reading.Reading{Sensor: "temp", Value: 20, Timestamp: 1000}
	res = h.awaitResult(t)
	assert.Equal(t, 15.0, res.Values[stats.StatMean])
	assert.Equal(t, 2.0, res.Values[stats.StatCount])
}

func TestProcessorIgnoresUnknownSensor(t *testing.T) {
	h := startProcessor(t, testSensors(), "")

	h.readings <- reading.Reading{Sensor: "nope", Value: 1, Timestamp: 0}
	h.readings <- reading.Reading{Sensor: "temp", Value: 5, Timestamp: 1000}

	res := h.awaitResult(t)
	assert.Equal(t, "temp", res.Instance)
	assert.Equal(t, 1.0, res.Values[stats.StatCount], "unknown sensor left no trace")
}

func TestProcessorResetCommand(t *testing.T) {
	h := startProcessor(t, testSensors(), "")

	h.readings <- reading.Reading{Sensor: "temp", Value: 100, Timestamp: 0}
	h.awaitResult(t)

	h.commands <- Command{Sensor: "temp", Action: ActionReset}
	// The reading must not be selected before the reset command.
	require.Eventually(t, func() bool { return len(h.commands) == 0 },
		time.Second, 5*time.Millisecond)
	h.readings <- reading.Reading{Sensor: "temp", Value: 1, Timestamp: 1000}

	res := h.awaitResult(t)
	assert.Equal(t, 1.0, res.Values[stats.StatCount])
	assert.Equal(t, 1.0, res.Values[stats.StatMean], "history discarded by reset")
}

func TestProcessorForcePublishCommand(t *testing.T) {
	sensors := testSensors()
	sensors[0].SendEvery = 0 // manual only
	h := startProcessor(t, sensors, "")

	h.readings <- reading.Reading{Sensor: "temp", Value: 4, Timestamp: 0}
	h.readings <- reading.Reading{Sensor: "temp", Value: 6, Timestamp: 1000}
	// Both readings must be absorbed before the publish command is selected.
	require.Eventually(t, func() bool { return len(h.readings) == 0 },
		time.Second, 5*time.Millisecond)

	h.commands <- Command{Sensor: "temp", Action: ActionPublish}
	res := h.awaitResult(t)
	assert.Equal(t, 5.0, res.Values[stats.StatMean])
	assert.Equal(t, 2.0, res.Values[stats.StatCount])
}

func TestProcessorInputClosedStops(t *testing.T) {
	h := startProcessor(t, testSensors(), "")

	close(h.readings)
	select {
	case err := <-h.done:
		h.stopped = true
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop on closed input")
	}
}

func TestProcessorStatePersistence(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state.json")
	sensors := testSensors()
	sensors[0].WindowType = "continuous"
	sensors[0].WindowSize = 0
	sensors[0].Restore = true

	h := startProcessor(t, sensors, stateFile)
	for i := 0; i < 10; i++ {
		h.readings <- reading.Reading{Sensor: "temp", Value: float64(i), Timestamp: int64(i) * 1000}
		h.awaitResult(t)
	}
	h.stop(t)

	// A fresh processor restores the persisted aggregate before the first
	// observation.
	h2 := startProcessor(t, sensors, stateFile)
	h2.readings <- reading.Reading{Sensor: "temp", Value: 9, Timestamp: 10000}

	res := h2.awaitResult(t)
	require.Equal(t, 11.0, res.Values[stats.StatCount])
	assert.Equal(t, 0.0, res.Values[stats.StatMin])
	assert.Equal(t, 9.0, res.Values[stats.StatMax])
}
