package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sensorstats/sensorstats/internal/stats"
)

const (
	defaultSourceType    = "mqtt"
	defaultMQTTClientID  = "sensorstats"
	defaultKafkaGroupID  = "sensorstats-default-group"
	defaultTopicPrefix   = "sensorstats"
	defaultTimeUnit      = "s"
	defaultLogLevel      = "info"
	defaultLogFormat     = "console"
	defaultLogDirectory  = "log"
	defaultLogFilename   = "app.log"
	defaultLogMaxSizeMB  = 100
	defaultLogMaxBackups = 3
	defaultLogMaxAgeDays = 7

	minDigestCapacity = 8
	maxDigestCapacity = 4096

	// Environment variable prefix
	envPrefix = "SENSORSTATS"
)

// timeFactors converts a configured time unit into milliseconds, the unit
// used internally for covariance and trend.
var timeFactors = map[string]float64{
	"ms":  1,
	"s":   1000,
	"min": 60 * 1000,
	"h":   60 * 60 * 1000,
	"d":   24 * 60 * 60 * 1000,
}

type Config struct {
	Source  SourceConfig   `mapstructure:"source"`
	Publish PublishConfig  `mapstructure:"publish"`
	Sensors []SensorConfig `mapstructure:"sensors"`
	Log     LogConfig      `mapstructure:"log"`
}

// SourceConfig selects and configures the transport delivering raw sensor
// readings.
type SourceConfig struct {
	Type  string      `mapstructure:"type"` // "mqtt" or "kafka"
	MQTT  MQTTConfig  `mapstructure:"mqtt"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type MQTTConfig struct {
	Broker    string        `mapstructure:"broker"` // e.g. mqtt://localhost:1883
	ClientID  string        `mapstructure:"clientID"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	KeepAlive time.Duration `mapstructure:"keepAlive"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"groupID"`
}

// PublishConfig configures where computed statistics go.
type PublishConfig struct {
	TopicPrefix string `mapstructure:"topicPrefix"`
	Retain      bool   `mapstructure:"retain"`
	MetricsAddr string `mapstructure:"metricsAddr"` // Prometheus /metrics listen address; empty disables
	StateFile   string `mapstructure:"stateFile"`   // restore-on-boot snapshot path; empty disables
}

// SensorConfig describes one statistics instance over one source sensor.
type SensorConfig struct {
	Name  string `mapstructure:"name"`
	Topic string `mapstructure:"topic"` // source topic (MQTT) or message key (Kafka)

	WindowType     string        `mapstructure:"windowType"` // sliding | chunked_sliding | continuous | chunked_continuous
	WindowSize     int           `mapstructure:"windowSize"`
	WindowDuration time.Duration `mapstructure:"windowDuration"`
	WindowCapacity int           `mapstructure:"windowCapacity"`
	ChunkSize      int           `mapstructure:"chunkSize"`
	ChunkDuration  time.Duration `mapstructure:"chunkDuration"`

	AverageType string `mapstructure:"averageType"` // simple | time_weighted
	GroupType   string `mapstructure:"groupType"`   // sample | population
	Precision   string `mapstructure:"precision"`   // single | double
	TimeUnit    string `mapstructure:"timeUnit"`    // ms | s | min | h | d

	Statistics []string `mapstructure:"statistics"`

	SendEvery   int `mapstructure:"sendEvery"`
	SendFirstAt int `mapstructure:"sendFirstAt"`

	Unit             string `mapstructure:"unit"`
	AccuracyDecimals int    `mapstructure:"accuracyDecimals"`
	Restore          bool   `mapstructure:"restore"`

	Digest *DigestConfig `mapstructure:"digest"`
}

type DigestConfig struct {
	Capacity         int       `mapstructure:"capacity"`
	Scale            string    `mapstructure:"scale"` // k1 | k2 | k3
	DurationWeighted bool      `mapstructure:"durationWeighted"`
	Quantiles        []float64 `mapstructure:"quantiles"`
}

type LogConfig struct {
	Level              string `mapstructure:"level"`
	Format             string `mapstructure:"format"`
	FileLoggingEnabled bool   `mapstructure:"fileLoggingEnabled"`
	Directory          string `mapstructure:"directory"`
	Filename           string `mapstructure:"filename"`
	MaxSize            int    `mapstructure:"maxSize"`    // Max size in MB
	MaxBackups         int    `mapstructure:"maxBackups"` // Max backup files
	MaxAge             int    `mapstructure:"maxAge"`     // Max days to retain
	Compress           bool   `mapstructure:"compress"`
}

// Load initializes viper, reads config, applies defaults, unmarshals, and
// validates. The runtime engine assumes it only ever receives parameters
// that passed validation here and never re-checks them.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	configureViper(v, configPath)
	setDefaults(v)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshallingConfig, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func configureViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.type", defaultSourceType)
	v.SetDefault("source.mqtt.clientID", defaultMQTTClientID)
	v.SetDefault("source.mqtt.keepAlive", 30*time.Second)
	v.SetDefault("source.kafka.groupID", defaultKafkaGroupID)
	v.SetDefault("publish.topicPrefix", defaultTopicPrefix)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("log.fileLoggingEnabled", false)
	v.SetDefault("log.directory", defaultLogDirectory)
	v.SetDefault("log.filename", defaultLogFilename)
	v.SetDefault("log.maxSize", defaultLogMaxSizeMB)
	v.SetDefault("log.maxBackups", defaultLogMaxBackups)
	v.SetDefault("log.maxAge", defaultLogMaxAgeDays)
	v.SetDefault("log.compress", false)
}

func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return ErrConfigFileMissing
		}
		return fmt.Errorf("%w: %w", ErrReadingConfigFile, err)
	}
	return nil
}

// Validate checks the full configuration once. All configuration errors are
// caught here; the statistics engine assumes validated parameters.
func Validate(cfg *Config) error {
	switch cfg.Source.Type {
	case "mqtt":
		if cfg.Source.MQTT.Broker == "" {
			return ErrEmptyMQTTBroker
		}
	case "kafka":
		if len(cfg.Source.Kafka.Brokers) == 0 {
			return ErrEmptyKafkaBrokers
		}
		if cfg.Source.Kafka.Topic == "" {
			return ErrEmptyKafkaTopic
		}
		if cfg.Source.Kafka.GroupID == "" {
			return ErrEmptyKafkaGroupID
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSourceType, cfg.Source.Type)
	}

	if len(cfg.Sensors) == 0 {
		return ErrNoSensors
	}

	for i := range cfg.Sensors {
		if err := validateSensor(&cfg.Sensors[i]); err != nil {
			return fmt.Errorf("sensor %q: %w", cfg.Sensors[i].Name, err)
		}
	}
	return nil
}

func validateSensor(s *SensorConfig) error {
	if s.Name == "" {
		return ErrEmptySensorName
	}
	if s.Topic == "" {
		return ErrEmptySensorTopic
	}

	switch s.WindowType {
	case "sliding", "chunked_sliding":
		if s.WindowSize <= 0 && s.WindowDuration <= 0 {
			return ErrMissingWindowBound
		}
		// Memory is pre-sized at configuration time, so duration-only
		// windows still need an explicit chunk capacity.
		if s.WindowSize <= 0 && s.WindowCapacity <= 0 {
			return ErrMissingWindowCapacity
		}
	case "continuous", "chunked_continuous":
		// WindowSize 0 means never reset; any value is acceptable.
	default:
		return fmt.Errorf("%w: %q", ErrUnknownWindowType, s.WindowType)
	}

	if s.ChunkSize > 0 && s.ChunkDuration > 0 {
		return ErrChunkSizeConflict
	}
	if s.WindowType == "sliding" && (s.ChunkSize > 1 || s.ChunkDuration > 0) {
		return ErrChunkOnPlainSliding
	}

	if s.AverageType == "" {
		s.AverageType = "simple"
	}
	if _, err := ParseAverageType(s.AverageType); err != nil {
		return err
	}
	if s.GroupType == "" {
		s.GroupType = "sample"
	}
	if _, err := ParseGroupType(s.GroupType); err != nil {
		return err
	}
	if s.Precision == "" {
		s.Precision = "double"
	}
	if _, err := ParsePrecision(s.Precision); err != nil {
		return err
	}
	if s.TimeUnit == "" {
		s.TimeUnit = defaultTimeUnit
	}
	if _, ok := timeFactors[s.TimeUnit]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTimeUnit, s.TimeUnit)
	}

	if len(s.Statistics) == 0 && s.Digest == nil {
		return ErrNoStatistics
	}
	for _, name := range s.Statistics {
		if !knownStatistic(name) {
			return fmt.Errorf("%w: %q", ErrUnknownStatistic, name)
		}
	}

	if s.SendEvery < 0 {
		return ErrInvalidSendEvery
	}
	if s.SendEvery > 0 {
		if s.SendFirstAt == 0 {
			s.SendFirstAt = s.SendEvery
		}
		if s.SendFirstAt > s.SendEvery {
			return ErrSendFirstAtTooLarge
		}
	}

	if s.Digest != nil {
		if s.Digest.Capacity < minDigestCapacity || s.Digest.Capacity > maxDigestCapacity {
			return fmt.Errorf("%w: %d not in [%d, %d]",
				ErrDigestCapacityRange, s.Digest.Capacity, minDigestCapacity, maxDigestCapacity)
		}
		if s.Digest.Scale == "" {
			s.Digest.Scale = "k1"
		}
		if _, err := ParseScaleFunc(s.Digest.Scale); err != nil {
			return err
		}
		for _, q := range s.Digest.Quantiles {
			if q < 0 || q > 1 {
				return fmt.Errorf("%w: %v", ErrQuantileRange, q)
			}
		}
	}

	if s.Restore && s.WindowType != "continuous" && s.WindowType != "chunked_continuous" {
		return ErrRestoreNotContinuous
	}

	return nil
}

func knownStatistic(name string) bool {
	for _, s := range stats.KnownStatistics {
		if string(s) == name {
			return true
		}
	}
	return false
}

// ParseAverageType maps the configured string to the engine enum.
func ParseAverageType(s string) (stats.AverageType, error) {
	switch s {
	case "simple":
		return stats.AverageSimple, nil
	case "time_weighted":
		return stats.AverageTimeWeighted, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAverageType, s)
}

// ParseGroupType maps the configured string to the engine enum.
func ParseGroupType(s string) (stats.GroupType, error) {
	switch s {
	case "sample":
		return stats.GroupSample, nil
	case "population":
		return stats.GroupPopulation, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownGroupType, s)
}

// ParsePrecision maps the configured string to the engine enum.
func ParsePrecision(s string) (stats.Precision, error) {
	switch s {
	case "double":
		return stats.PrecisionDouble, nil
	case "single":
		return stats.PrecisionSingle, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPrecision, s)
}

// ParseScaleFunc maps the configured string to the engine enum.
func ParseScaleFunc(s string) (stats.ScaleFunc, error) {
	switch s {
	case "k1":
		return stats.ScaleK1, nil
	case "k2":
		return stats.ScaleK2, nil
	case "k3":
		return stats.ScaleK3, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownScaleFunc, s)
}

// ParseWindowPolicy maps the configured string to the engine enum.
func ParseWindowPolicy(s string) (stats.WindowPolicy, error) {
	switch s {
	case "sliding":
		return stats.PolicySliding, nil
	case "chunked_sliding":
		return stats.PolicyChunkedSliding, nil
	case "continuous":
		return stats.PolicyContinuous, nil
	case "chunked_continuous":
		return stats.PolicyChunkedContinuous, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownWindowType, s)
}

// InstanceConfig converts a validated sensor configuration into the engine's
// construction parameters.
func (s *SensorConfig) InstanceConfig() stats.InstanceConfig {
	policy, _ := ParseWindowPolicy(s.WindowType)
	average, _ := ParseAverageType(s.AverageType)
	group, _ := ParseGroupType(s.GroupType)
	precision, _ := ParsePrecision(s.Precision)

	cfg := stats.InstanceConfig{
		Name: s.Name,
		Window: stats.WindowConfig{
			Policy:      policy,
			MaxChunks:   s.WindowSize,
			MaxDuration: s.WindowDuration.Milliseconds(),
			Capacity:    s.WindowCapacity,
		},
		ChunkSize:     s.ChunkSize,
		ChunkDuration: s.ChunkDuration.Milliseconds(),
		Average:       average,
		Group:         group,
		Precision:     precision,
		TimeFactor:    timeFactors[s.TimeUnit],
		SendEvery:     s.SendEvery,
		SendFirstAt:   s.SendFirstAt,
	}
	for _, name := range s.Statistics {
		cfg.Statistics = append(cfg.Statistics, stats.Statistic(name))
	}
	if s.Digest != nil {
		scale, _ := ParseScaleFunc(s.Digest.Scale)
		cfg.Digest = &stats.DigestConfig{
			Capacity:         s.Digest.Capacity,
			Scale:            scale,
			DurationWeighted: s.Digest.DurationWeighted,
			Quantiles:        s.Digest.Quantiles,
		}
	}
	return cfg
}
