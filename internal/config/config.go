package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// HTTPConfig holds API listener settings.
type HTTPConfig struct {
	Port      string `yaml:"port" env:"FUEL_HTTP_PORT"`
	JWTSecret string `yaml:"jwtSecret" env:"FUEL_JWT_SECRET"`
}

// DatabaseConfig holds postgres settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"FUEL_POSTGRES_DSN"`
}

// RedisConfig holds the live-state mirror settings. Empty Addr disables the mirror.
type RedisConfig struct {
	Addr       string `yaml:"addr" env:"FUEL_REDIS_ADDR"`
	Password   string `yaml:"password" env:"FUEL_REDIS_PASSWORD"`
	DB         int    `yaml:"db" env:"FUEL_REDIS_DB"`
	TTLSeconds int    `yaml:"ttlSeconds" env:"FUEL_REDIS_TTL"`
}

// AMQPConfig holds the RabbitMQ telemetry source settings.
type AMQPConfig struct {
	Enabled bool   `yaml:"enabled" env:"FUEL_AMQP_ENABLED"`
	URL     string `yaml:"url" env:"FUEL_AMQP_URL"`
	Queue   string `yaml:"queue" env:"FUEL_AMQP_QUEUE"`
}

// KafkaConfig holds the Kafka telemetry source settings.
type KafkaConfig struct {
	Enabled bool   `yaml:"enabled" env:"FUEL_KAFKA_ENABLED"`
	Brokers string `yaml:"brokers" env:"FUEL_KAFKA_BROKERS"`
	GroupID string `yaml:"groupId" env:"FUEL_KAFKA_GROUP_ID"`
	Topic   string `yaml:"topic" env:"FUEL_KAFKA_TOPIC"`
}

// PipelineConfig tunes the per-plate dispatcher.
type PipelineConfig struct {
	QueueSize int `yaml:"queueSize" env:"FUEL_PIPELINE_QUEUE_SIZE"`
}

// SessionConfig tunes the session state machine.
type SessionConfig struct {
	DebounceMinutes       int     `yaml:"debounceMinutes" env:"FUEL_SESSION_DEBOUNCE_MINUTES"`
	MinDurationMinutes    int     `yaml:"minDurationMinutes" env:"FUEL_SESSION_MIN_DURATION_MINUTES"`
	BoundaryWindowMinutes int     `yaml:"boundaryWindowMinutes" env:"FUEL_SESSION_BOUNDARY_WINDOW_MINUTES"`
	BufferSize            int     `yaml:"bufferSize" env:"FUEL_SESSION_BUFFER_SIZE"`
	FuelUnitCost          float64 `yaml:"fuelUnitCost" env:"FUEL_UNIT_COST"`
}

// FillConfig tunes the fuel-fill detector.
type FillConfig struct {
	MinLiters     float64 `yaml:"minLiters" env:"FUEL_FILL_MIN_LITERS"`
	MinRatio      float64 `yaml:"minRatio" env:"FUEL_FILL_MIN_RATIO"`
	MaxGapMinutes int     `yaml:"maxGapMinutes" env:"FUEL_FILL_MAX_GAP_MINUTES"`
}

// AnomalyConfig holds the anomaly rule thresholds, all in litres unless noted.
type AnomalyConfig struct {
	FilledWhileOnMin    float64 `yaml:"filledWhileOnMin" env:"FUEL_ANOMALY_FILLED_WHILE_ON_MIN"`
	FilledWhileOnMax    float64 `yaml:"filledWhileOnMax" env:"FUEL_ANOMALY_FILLED_WHILE_ON_MAX"`
	TheftDrop           float64 `yaml:"theftDrop" env:"FUEL_ANOMALY_THEFT_DROP"`
	SpillageDrop        float64 `yaml:"spillageDrop" env:"FUEL_ANOMALY_SPILLAGE_DROP"`
	UnusualDrop         float64 `yaml:"unusualDrop" env:"FUEL_ANOMALY_UNUSUAL_DROP"`
	RapidDrop           float64 `yaml:"rapidDrop" env:"FUEL_ANOMALY_RAPID_DROP"`
	RapidDropRatio      float64 `yaml:"rapidDropRatio" env:"FUEL_ANOMALY_RAPID_DROP_RATIO"`
	RapidDropRatePerMin float64 `yaml:"rapidDropRatePerMin" env:"FUEL_ANOMALY_RAPID_DROP_RATE"`
	RapidDropWindowMin  int     `yaml:"rapidDropWindowMinutes" env:"FUEL_ANOMALY_RAPID_DROP_WINDOW_MINUTES"`
}

// ReaperConfig tunes the orphaned-session sweep.
type ReaperConfig struct {
	HorizonHours        int     `yaml:"horizonHours" env:"FUEL_REAPER_HORIZON_HOURS"`
	IntervalMinutes     int     `yaml:"intervalMinutes" env:"FUEL_REAPER_INTERVAL_MINUTES"`
	InitialDelayMinutes int     `yaml:"initialDelayMinutes" env:"FUEL_REAPER_INITIAL_DELAY_MINUTES"`
	EstimatedHours      float64 `yaml:"estimatedHours" env:"FUEL_REAPER_ESTIMATED_HOURS"`
	UsageRatePerHour    float64 `yaml:"usageRatePerHour" env:"FUEL_REAPER_USAGE_RATE"`
}

// Config defines fuel-server configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AMQP     AMQPConfig     `yaml:"amqp"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Session  SessionConfig  `yaml:"session"`
	Fill     FillConfig     `yaml:"fill"`
	Anomaly  AnomalyConfig  `yaml:"anomaly"`
	Reaper   ReaperConfig   `yaml:"reaper"`
}

// Load reads configuration from YAML file and environment.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{Port: "8080"},
		Redis: RedisConfig{
			TTLSeconds: 120,
		},
		AMQP: AMQPConfig{
			Queue: "telemetry.positions",
		},
		Kafka: KafkaConfig{
			GroupID: "fuel-server",
			Topic:   "telemetry-positions",
		},
		Pipeline: PipelineConfig{QueueSize: 256},
		Session: SessionConfig{
			DebounceMinutes:       5,
			MinDurationMinutes:    15,
			BoundaryWindowMinutes: 10,
			BufferSize:            64,
			FuelUnitCost:          22.0,
		},
		Fill: FillConfig{
			MinLiters:     20,
			MinRatio:      0.15,
			MaxGapMinutes: 60,
		},
		Anomaly: AnomalyConfig{
			FilledWhileOnMin:    10,
			FilledWhileOnMax:    15,
			TheftDrop:           50,
			SpillageDrop:        30,
			UnusualDrop:         100,
			RapidDrop:           50,
			RapidDropRatio:      0.20,
			RapidDropRatePerMin: 5,
			RapidDropWindowMin:  30,
		},
		Reaper: ReaperConfig{
			HorizonHours:        24,
			IntervalMinutes:     60,
			InitialDelayMinutes: 5,
			EstimatedHours:      8,
			UsageRatePerHour:    10,
		},
	}

	if err := loadInto(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if cfg.AMQP.Enabled && strings.TrimSpace(cfg.AMQP.URL) == "" {
		return nil, errors.New("config: amqp url required when amqp enabled")
	}
	if cfg.Kafka.Enabled && strings.TrimSpace(cfg.Kafka.Brokers) == "" {
		return nil, errors.New("config: kafka brokers required when kafka enabled")
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// KafkaBrokerList splits the comma-separated broker string.
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.Kafka.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// LiveStateTTL returns the redis mirror TTL as duration.
func (c *Config) LiveStateTTL() time.Duration {
	if c.Redis.TTLSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}
