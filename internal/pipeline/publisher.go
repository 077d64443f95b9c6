package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"go.uber.org/zap"

	"github.com/sensorstats/sensorstats/internal/config"
	"github.com/sensorstats/sensorstats/internal/stats"
)

// Publisher emits computed statistics downstream: one retained-optional MQTT
// message per statistic on <prefix>/<sensor>/<statistic>, plus Prometheus
// gauges. When no MQTT broker is configured it degrades to metrics and logs.
type Publisher struct {
	cfg    config.PublishConfig
	mqtt   config.MQTTConfig
	input  <-chan stats.Result
	logger *zap.Logger
}

// NewPublisher creates the statistics publisher. The MQTT configuration is
// shared with the source; an empty broker disables transport publication.
func NewPublisher(cfg config.PublishConfig, mqtt config.MQTTConfig, input <-chan stats.Result, logger *zap.Logger) *Publisher {
	logger.Debug("Publisher initialized",
		zap.String("topic_prefix", cfg.TopicPrefix),
		zap.Bool("mqtt_enabled", mqtt.Broker != ""),
	)
	return &Publisher{cfg: cfg, mqtt: mqtt, input: input, logger: logger}
}

// Run consumes results until the input closes or the context is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	sugar.Info("Starting publisher loop...")
	defer sugar.Info("Publisher loop stopped.")

	var cm *autopaho.ConnectionManager
	if p.mqtt.Broker != "" {
		u, err := url.Parse(p.mqtt.Broker)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMQTTConfig, err)
		}
		cm, err = autopaho.NewConnection(ctx, autopaho.ClientConfig{
			ServerUrls:                    []*url.URL{u},
			KeepAlive:                     uint16(p.mqtt.KeepAlive.Seconds()),
			CleanStartOnInitialConnection: true,
			ConnectUsername:               p.mqtt.Username,
			ConnectPassword:               []byte(p.mqtt.Password),
			OnConnectError: func(err error) {
				sugar.Warnw("Publisher MQTT connect attempt failed", zap.Error(err))
			},
			ClientConfig: paho.ClientConfig{
				ClientID: p.mqtt.ClientID + "-pub",
				OnClientError: func(err error) {
					sugar.Warnw("Publisher MQTT client error", zap.Error(err))
				},
			},
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMQTTConnectFailed, err)
		}
		defer func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = cm.Disconnect(disconnectCtx)
		}()
	}

	for {
		select {
		case result, ok := <-p.input:
			if !ok {
				sugar.Info("Publisher input channel closed.")
				return nil
			}
			p.publish(ctx, cm, result)

		case <-ctx.Done():
			sugar.Info("Context cancelled, stopping publisher.")
			return ctx.Err()
		}
	}
}

func (p *Publisher) publish(ctx context.Context, cm *autopaho.ConnectionManager, result stats.Result) {
	sugar := p.logger.Sugar()

	publicationsTotal.WithLabelValues(result.Instance).Inc()

	// Deterministic emission order keeps downstream consumers and logs
	// stable across publications.
	keys := make([]string, 0, len(result.Values))
	for stat := range result.Values {
		keys = append(keys, string(stat))
	}
	sort.Strings(keys)

	fields := []interface{}{"sensor", result.Instance}
	for _, key := range keys {
		value := result.Values[stats.Statistic(key)]
		statisticValue.WithLabelValues(result.Instance, key).Set(value)
		fields = append(fields, key, value)

		if cm == nil {
			continue
		}
		topic := fmt.Sprintf("%s/%s/%s", p.cfg.TopicPrefix, result.Instance, key)
		payload := strconv.FormatFloat(value, 'g', -1, 64)
		if _, err := cm.Publish(ctx, &paho.Publish{
			Topic:   topic,
			Payload: []byte(payload),
			QoS:     1,
			Retain:  p.cfg.Retain,
		}); err != nil {
			sugar.Warnw("MQTT publish failed",
				"topic", topic, zap.Error(err))
		}
	}

	sugar.Infow("Published statistics", fields...)
}
