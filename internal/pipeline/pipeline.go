package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sensorstats/sensorstats/internal/config"
	"github.com/sensorstats/sensorstats/internal/reading"
	"github.com/sensorstats/sensorstats/internal/stats"
)

// Source delivers raw readings (and, for transports that support it,
// external commands) until its context is cancelled.
type Source interface {
	Run(ctx context.Context) error
}

// Pipeline orchestrates source, processor, and publisher stages.
type Pipeline struct {
	cfg       *config.Config
	source    Source
	processor *Processor
	publisher *Publisher
	logger    *zap.Logger

	readings chan reading.Reading
	commands chan Command
	results  chan stats.Result
}

// New creates and wires up a new statistics pipeline.
func New(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	initLogger := logger.Named("pipeline.init")
	initLogger.Debug("Creating pipeline components...")

	const channelBufferSize = 100
	readings := make(chan reading.Reading, channelBufferSize)
	commands := make(chan Command, 16)
	results := make(chan stats.Result, channelBufferSize)

	var (
		source Source
		err    error
	)
	switch cfg.Source.Type {
	case "mqtt":
		source, err = NewMQTTSource(cfg.Source.MQTT, cfg.Publish.TopicPrefix,
			cfg.Sensors, readings, commands, logger.Named("mqtt-source"))
	case "kafka":
		source, err = NewKafkaSource(cfg.Source.Kafka,
			cfg.Sensors, readings, logger.Named("kafka-source"))
	default:
		err = fmt.Errorf("unhandled source type %q", cfg.Source.Type)
	}
	if err != nil {
		initLogger.Error("Failed to create source", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrSourceCreationFailed, err)
	}
	initLogger.Debug("Source created", zap.String("type", cfg.Source.Type))

	processor := NewProcessor(cfg.Sensors, cfg.Publish.StateFile,
		readings, commands, results, logger.Named("processor"))
	publisher := NewPublisher(cfg.Publish, cfg.Source.MQTT,
		results, logger.Named("publisher"))

	p := &Pipeline{
		cfg:       cfg,
		source:    source,
		processor: processor,
		publisher: publisher,
		logger:    logger.Named("pipeline"),
		readings:  readings,
		commands:  commands,
		results:   results,
	}

	initLogger.Info("Pipeline instance created successfully")
	return p, nil
}

// Run starts all pipeline components and waits for them to complete or for
// context cancellation.
func (p *Pipeline) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	var wg sync.WaitGroup
	pipelineErr := make(chan error, 4) // source, processor, publisher, metrics

	sugar.Info("Pipeline Run: Starting components...")

	wg.Add(3)
	go p.runSource(ctx, &wg, pipelineErr)
	go p.runProcessor(ctx, &wg, pipelineErr)
	go p.runPublisher(ctx, &wg, pipelineErr)

	var metricsSrv *http.Server
	if addr := p.cfg.Publish.MetricsAddr; addr != "" {
		metricsSrv = p.startMetricsServer(addr, pipelineErr)
	}

	var firstErr error
	select {
	case <-ctx.Done():
		sugar.Info("Pipeline Run: Context cancelled. Waiting for components to finish...")
		firstErr = ctx.Err()
	case err := <-pipelineErr:
		sugar.Errorw("Pipeline Run: Received error from a component, initiating shutdown...", zap.Error(err))
		firstErr = err
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}

	sugar.Debug("Pipeline Run: Waiting on WaitGroup...")
	wg.Wait()
	sugar.Info("Pipeline Run: All components finished.")

	if firstErr != nil && !errors.Is(firstErr, context.Canceled) {
		return firstErr
	}
	return nil
}

func (p *Pipeline) runSource(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	defer func() {
		close(p.readings)
		close(p.commands)
		p.logger.Debug("Reading and command channels closed")
	}()

	p.logger.Debug("Starting source goroutine...")
	if err := p.source.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Source component exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrSourceRunFailed, err)
	} else {
		p.logger.Debug("Source goroutine finished")
	}
}

func (p *Pipeline) runProcessor(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	defer func() {
		close(p.results)
		p.logger.Debug("Results channel closed")
	}()

	p.logger.Debug("Starting processor goroutine...")
	if err := p.processor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Processor component exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrProcessorRunFailed, err)
	} else {
		p.logger.Debug("Processor goroutine finished")
	}
}

func (p *Pipeline) runPublisher(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()

	p.logger.Debug("Starting publisher goroutine...")
	if err := p.publisher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Publisher component exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrPublisherRunFailed, err)
	} else {
		p.logger.Debug("Publisher goroutine finished")
	}
}

func (p *Pipeline) startMetricsServer(addr string, errCh chan<- error) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	p.logger.Info("Starting metrics server", zap.String("addr", addr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%w: %w", ErrMetricsServerFailed, err)
		}
	}()
	return srv
}
