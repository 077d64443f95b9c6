package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sensorstats/sensorstats/internal/config"
	"github.com/sensorstats/sensorstats/internal/reading"
	"github.com/sensorstats/sensorstats/internal/stats"
)

// Processor hosts one statistics instance per configured sensor and drives
// them from the reading stream. Readings and external commands flow through
// a single goroutine, so each instance sees strictly serialized mutation:
// resets and force-publishes execute between observations, never during one.
type Processor struct {
	instances map[string]*stats.Instance
	restore   map[string]bool
	stateFile string

	input    <-chan reading.Reading
	commands <-chan Command
	output   chan<- stats.Result
	logger   *zap.Logger
}

// NewProcessor builds the instances from validated sensor configurations.
func NewProcessor(sensors []config.SensorConfig, stateFile string, input <-chan reading.Reading, commands <-chan Command, output chan<- stats.Result, logger *zap.Logger) *Processor {
	instances := make(map[string]*stats.Instance, len(sensors))
	restore := make(map[string]bool, len(sensors))
	for _, s := range sensors {
		instances[s.Name] = stats.NewInstance(s.InstanceConfig(), logger.Named(s.Name))
		restore[s.Name] = s.Restore
	}

	logger.Info("Processor initialized",
		zap.Int("instances", len(instances)),
		zap.Bool("state_file", stateFile != ""),
	)

	return &Processor{
		instances: instances,
		restore:   restore,
		stateFile: stateFile,
		input:     input,
		commands:  commands,
		output:    output,
		logger:    logger,
	}
}

// Run starts the processing loop. Restore-on-boot happens before the first
// observation; the snapshot is rewritten on shutdown.
func (p *Processor) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	sugar.Info("Starting processor loop...")
	defer sugar.Info("Processor loop stopped.")

	if p.stateFile != "" {
		p.restoreState()
	}
	defer func() {
		if p.stateFile != "" {
			p.saveState()
		}
	}()

	for {
		select {
		case r, ok := <-p.input:
			if !ok {
				sugar.Info("Processor input channel closed.")
				return nil
			}
			p.handleReading(r)

		case cmd, ok := <-p.commands:
			if !ok {
				continue
			}
			p.handleCommand(cmd)

		case <-ctx.Done():
			sugar.Info("Context cancelled, stopping processor.")
			return ctx.Err()
		}
	}
}

func (p *Processor) handleReading(r reading.Reading) {
	inst, ok := p.instances[r.Sensor]
	if !ok {
		p.logger.Sugar().Debugw("Reading for unconfigured sensor, skipping",
			"sensor", r.Sensor)
		return
	}

	readingsTotal.WithLabelValues(r.Sensor).Inc()

	result, publish := inst.Observe(r.Value, r.Timestamp)
	if publish {
		p.send(result)
	}
}

func (p *Processor) handleCommand(cmd Command) {
	inst, ok := p.instances[cmd.Sensor]
	if !ok {
		p.logger.Sugar().Warnw("Command for unconfigured sensor, skipping",
			"sensor", cmd.Sensor, "action", string(cmd.Action))
		return
	}

	switch cmd.Action {
	case ActionReset:
		inst.Reset()
		resetsTotal.WithLabelValues(cmd.Sensor).Inc()
	case ActionPublish:
		p.send(inst.ForcePublish(time.Now().UnixMilli()))
	}
}

func (p *Processor) send(result stats.Result) {
	select {
	case p.output <- result:

	default:
		p.logger.Sugar().Warnw("Processor output channel full, dropping result",
			"sensor", result.Instance)
	}
}
