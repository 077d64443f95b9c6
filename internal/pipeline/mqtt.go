package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"go.uber.org/zap"

	"github.com/sensorstats/sensorstats/internal/config"
	"github.com/sensorstats/sensorstats/internal/reading"
)

// MQTTSource subscribes to the configured sensor topics and delivers raw
// readings downstream. It also listens on <prefix>/<sensor>/command for the
// externally triggered reset and force-publish actions.
type MQTTSource struct {
	cfg         config.MQTTConfig
	serverURL   *url.URL
	topicPrefix string
	sensors     map[string]string // source topic -> sensor name
	names       map[string]bool   // sensor names, for command validation
	readings    chan<- reading.Reading
	commands    chan<- Command
	logger      *zap.Logger
}

// NewMQTTSource creates an MQTT-backed reading source.
func NewMQTTSource(cfg config.MQTTConfig, topicPrefix string, sensors []config.SensorConfig, readings chan<- reading.Reading, commands chan<- Command, logger *zap.Logger) (*MQTTSource, error) {
	if cfg.Broker == "" {
		return nil, ErrInvalidMQTTConfig
	}
	u, err := url.Parse(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMQTTConfig, err)
	}

	byTopic := make(map[string]string, len(sensors))
	names := make(map[string]bool, len(sensors))
	for _, s := range sensors {
		byTopic[s.Topic] = s.Name
		names[s.Name] = true
	}

	logger.Info("MQTT source created",
		zap.String("broker", cfg.Broker),
		zap.String("client_id", cfg.ClientID),
		zap.Int("sensors", len(byTopic)),
	)

	return &MQTTSource{
		cfg:         cfg,
		serverURL:   u,
		topicPrefix: topicPrefix,
		sensors:     byTopic,
		names:       names,
		readings:    readings,
		commands:    commands,
		logger:      logger,
	}, nil
}

// Run connects, subscribes, and delivers readings until the context is
// cancelled. The autopaho connection manager handles reconnects and
// resubscription via OnConnectionUp.
func (s *MQTTSource) Run(ctx context.Context) error {
	sugar := s.logger.Sugar()

	clientCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{s.serverURL},
		KeepAlive:                     uint16(s.cfg.KeepAlive.Seconds()),
		CleanStartOnInitialConnection: true,
		ConnectUsername:               s.cfg.Username,
		ConnectPassword:               []byte(s.cfg.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			if err := s.subscribe(ctx, cm); err != nil {
				sugar.Errorw("Subscribe after connect failed", zap.Error(err))
			}
		},
		OnConnectError: func(err error) {
			sugar.Warnw("MQTT connect attempt failed", zap.Error(err))
		},
		ClientConfig: paho.ClientConfig{
			ClientID: s.cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					s.handleMessage(ctx, pr.Packet.Topic, pr.Packet.Payload)
					return true, nil
				},
			},
			OnClientError: func(err error) {
				sugar.Warnw("MQTT client error", zap.Error(err))
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, clientCfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMQTTConnectFailed, err)
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMQTTConnectFailed, err)
	}
	sugar.Info("MQTT source connected, waiting for readings...")

	<-ctx.Done()

	disconnectCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = cm.Disconnect(disconnectCtx)
	sugar.Info("MQTT source stopped.")
	return ctx.Err()
}

func (s *MQTTSource) subscribe(ctx context.Context, cm *autopaho.ConnectionManager) error {
	subs := make([]paho.SubscribeOptions, 0, len(s.sensors)+1)
	for topic := range s.sensors {
		subs = append(subs, paho.SubscribeOptions{Topic: topic, QoS: 1})
	}
	subs = append(subs, paho.SubscribeOptions{
		Topic: s.topicPrefix + "/+/command",
		QoS:   1,
	})

	if _, err := cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs}); err != nil {
		return fmt.Errorf("%w: %w", ErrMQTTSubscribeFailed, err)
	}
	s.logger.Debug("Subscribed to sensor and command topics",
		zap.Int("subscription_count", len(subs)))
	return nil
}

func (s *MQTTSource) handleMessage(ctx context.Context, topic string, payload []byte) {
	if ctx.Err() != nil {
		return
	}
	sugar := s.logger.Sugar()

	if sensor, action, ok := s.parseCommandTopic(topic, payload); ok {
		select {
		case s.commands <- Command{Sensor: sensor, Action: action}:
		case <-ctx.Done():
		}
		return
	}

	sensor, ok := s.sensors[topic]
	if !ok {
		sugar.Debugw("Message on unconfigured topic, skipping", "topic", topic)
		return
	}

	value, err := reading.ParseValue(payload)
	if err != nil {
		parseFailures.WithLabelValues(sensor).Inc()
		sugar.Warnw("Failed to parse payload, skipping",
			"sensor", sensor, "topic", topic, zap.Error(err))
		return
	}

	r := reading.Reading{
		Sensor:    sensor,
		Value:     value,
		Timestamp: time.Now().UnixMilli(),
	}

	select {
	case s.readings <- r:
	case <-ctx.Done():
	}
}

// parseCommandTopic matches <prefix>/<sensor>/command and validates both the
// sensor name and the action payload.
func (s *MQTTSource) parseCommandTopic(topic string, payload []byte) (string, CommandAction, bool) {
	rest, found := strings.CutPrefix(topic, s.topicPrefix+"/")
	if !found {
		return "", "", false
	}
	sensor, found := strings.CutSuffix(rest, "/command")
	if !found || !s.names[sensor] {
		return "", "", false
	}

	action := CommandAction(strings.TrimSpace(string(payload)))
	switch action {
	case ActionReset, ActionPublish:
		return sensor, action, true
	}
	s.logger.Warn("Ignoring command",
		zap.String("sensor", sensor),
		zap.Error(fmt.Errorf("%w: %q", ErrUnknownCommand, action)))
	return "", "", false
}
