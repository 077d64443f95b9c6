package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sensorstats/sensorstats/internal/config"
	"github.com/sensorstats/sensorstats/internal/reading"
)

type kafkaZapLogger struct {
	log *zap.Logger
}

func (l kafkaZapLogger) Printf(msg string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(msg, args...))
}

type kafkaZapErrorLogger struct {
	log *zap.Logger
}

func (l kafkaZapErrorLogger) Printf(msg string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(msg, args...))
}

// KafkaSource reads sensor readings from a Kafka topic. The message key
// selects the sensor (matched against each configured sensor's topic) and
// the value carries the payload.
type KafkaSource struct {
	reader   *kafka.Reader
	readings chan<- reading.Reading
	sensors  map[string]string // message key -> sensor name
	logger   *zap.Logger
}

// NewKafkaSource creates and configures a Kafka-backed reading source.
func NewKafkaSource(cfg config.KafkaConfig, sensors []config.SensorConfig, readings chan<- reading.Reading, logger *zap.Logger) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		logger.Error("Kafka configuration validation failed",
			zap.Strings("brokers", cfg.Brokers),
			zap.String("topic", cfg.Topic),
			zap.String("group_id", cfg.GroupID),
		)
		return nil, ErrInvalidKafkaConfig
	}

	byKey := make(map[string]string, len(sensors))
	for _, s := range sensors {
		byKey[s.Topic] = s.Name
	}

	readerCfg := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		Logger:      kafkaZapLogger{logger.Named("kafka-reader").WithOptions(zap.AddCallerSkip(1))},
		ErrorLogger: kafkaZapErrorLogger{logger.Named("kafka-reader-error").WithOptions(zap.AddCallerSkip(1))},
	}

	logger.Info("Kafka source created",
		zap.String("topic", cfg.Topic),
		zap.String("group_id", cfg.GroupID),
		zap.Strings("brokers", cfg.Brokers),
		zap.Int("sensors", len(byKey)),
	)

	return &KafkaSource{
		reader:   kafka.NewReader(readerCfg),
		readings: readings,
		sensors:  byKey,
		logger:   logger,
	}, nil
}

// Run fetches messages until the context is cancelled or an unrecoverable
// error occurs.
func (s *KafkaSource) Run(ctx context.Context) error {
	sugar := s.logger.Sugar()
	sugar.Info("Starting Kafka source loop...")

	defer func() {
		if err := s.reader.Close(); err != nil {
			sugar.Errorw("Failed to close Kafka reader cleanly", zap.Error(err))
		}
		sugar.Info("Kafka source loop stopped.")
	}()

	for {
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return context.Canceled
			}
			s.logger.Error("Error fetching message from Kafka", zap.Error(err))
			return fmt.Errorf("%w: %w", ErrKafkaFetchFailed, err)
		}

		sensor, ok := s.sensors[string(m.Key)]
		if !ok {
			sugar.Debugw("Message for unconfigured sensor, skipping", "key", string(m.Key))
			continue
		}

		value, err := reading.ParseValue(m.Value)
		if err != nil {
			parseFailures.WithLabelValues(sensor).Inc()
			sugar.Warnw("Failed to parse payload, skipping",
				"sensor", sensor, zap.Error(err))
			continue
		}

		r := reading.Reading{
			Sensor:    sensor,
			Value:     value,
			Timestamp: time.Now().UnixMilli(),
		}

		select {
		case s.readings <- r:

		case <-ctx.Done():
			return context.Canceled
		}
	}
}
