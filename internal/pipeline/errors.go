package pipeline

import "errors"

var (
	ErrInvalidKafkaConfig     = errors.New("invalid Kafka configuration provided")
	ErrInvalidMQTTConfig      = errors.New("invalid MQTT configuration provided")
	ErrKafkaFetchFailed       = errors.New("failed to fetch message from Kafka")
	ErrMQTTConnectFailed      = errors.New("failed to connect to MQTT broker")
	ErrMQTTSubscribeFailed    = errors.New("failed to subscribe to sensor topics")
	ErrSourceCreationFailed   = errors.New("failed to create source")
	ErrSourceRunFailed        = errors.New("source component failed")
	ErrProcessorRunFailed     = errors.New("processor component failed")
	ErrPublisherRunFailed     = errors.New("publisher component failed")
	ErrMetricsServerFailed    = errors.New("metrics server failed")
	ErrUnknownCommand         = errors.New("unknown command action")
	ErrStateSnapshotCorrupted = errors.New("state snapshot could not be decoded")
)
