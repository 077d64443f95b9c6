package config

import "errors"

var (
	ErrReadingConfigFile     = errors.New("failed to read config file")
	ErrUnmarshallingConfig   = errors.New("failed to unmarshal config")
	ErrConfigFileMissing     = errors.New("config file not found")
	ErrUnknownSourceType     = errors.New("unknown source type")
	ErrEmptyMQTTBroker       = errors.New("mqtt broker cannot be empty")
	ErrEmptyKafkaBrokers     = errors.New("kafka brokers list cannot be empty")
	ErrEmptyKafkaTopic       = errors.New("kafka topic cannot be empty")
	ErrEmptyKafkaGroupID     = errors.New("kafka groupID cannot be empty")
	ErrNoSensors             = errors.New("at least one sensor must be configured")
	ErrEmptySensorName       = errors.New("sensor name cannot be empty")
	ErrEmptySensorTopic      = errors.New("sensor topic cannot be empty")
	ErrUnknownWindowType     = errors.New("unknown window type")
	ErrMissingWindowBound    = errors.New("sliding windows need windowSize or windowDuration")
	ErrMissingWindowCapacity = errors.New("duration-bounded windows need windowCapacity")
	ErrChunkSizeConflict     = errors.New("chunkSize and chunkDuration are mutually exclusive")
	ErrChunkOnPlainSliding   = errors.New("plain sliding windows do not chunk; use chunked_sliding")
	ErrUnknownAverageType    = errors.New("unknown average type")
	ErrUnknownGroupType      = errors.New("unknown group type")
	ErrUnknownPrecision      = errors.New("unknown precision")
	ErrUnknownTimeUnit       = errors.New("unknown time unit")
	ErrUnknownStatistic      = errors.New("unknown statistic")
	ErrUnknownScaleFunc      = errors.New("unknown scale function")
	ErrNoStatistics          = errors.New("sensor publishes no statistics and no quantiles")
	ErrInvalidSendEvery      = errors.New("sendEvery must be non-negative")
	ErrSendFirstAtTooLarge   = errors.New("sendFirstAt cannot exceed sendEvery")
	ErrDigestCapacityRange   = errors.New("digest capacity out of range")
	ErrQuantileRange         = errors.New("quantile must be within [0, 1]")
	ErrRestoreNotContinuous  = errors.New("restore is only supported for continuous windows")
)
