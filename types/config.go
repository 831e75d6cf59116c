package types

import (
	"time"
)

type ConfigManager interface {
	Load() error
	GetConfig() *ServiceConfig
	GetValue(path string, defaultValue interface{}) interface{}
	GetAs(path string, target interface{}) error
}

type ServiceConfig struct {
	Name    string         `yaml:"name" json:"name" validate:"required"`
	Version string         `yaml:"version" json:"version" validate:"required"`
	Cache   *CacheConfig   `yaml:"cache" json:"cache"`
	Logger  *LoggerConfig  `yaml:"logger" json:"logger"`
	Metrics *MetricsConfig `yaml:"metrics" json:"metrics"`
	History *HistoryConfig `yaml:"history" json:"history"`
	Events  *EventsConfig  `yaml:"events" json:"events"`
	Cron    *CronConfig    `yaml:"cron" json:"cron"`
	Health  *HealthConfig  `yaml:"health" json:"health"`
	Server  *ServerConfig  `yaml:"server" json:"server"`
}

type CacheConfig struct {
	Enabled bool        `yaml:"enabled" json:"enabled"`
	Type    string      `yaml:"type" json:"type" validate:"required_if=Enabled true"`
	Config  interface{} `yaml:"config" json:"config"`

	// DefaultTTL is applied when a write omits an explicit TTL.
	// Zero falls back to 60 seconds.
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl" validate:"min=0"`

	// SweepSchedule is an optional cron expression. When set and the cron
	// manager is enabled, the service invokes the expiry sweep on that
	// schedule; the engine itself stays pull-based.
	SweepSchedule string `yaml:"sweep_schedule" json:"sweep_schedule"`
}

type LoggerConfig struct {
	Type   string      `yaml:"type" json:"type"`
	Level  string      `yaml:"level" json:"level"`
	Config interface{} `yaml:"config" json:"config"`
}

type MetricsConfig struct {
	Enabled bool              `yaml:"enabled" json:"enabled"`
	Type    string            `yaml:"type" json:"type" validate:"required_if=Enabled true"`
	Config  interface{}       `yaml:"config" json:"config"`
	Labels  map[string]string `yaml:"labels" json:"labels"`
}

type HistoryConfig struct {
	Type   string      `yaml:"type" json:"type"`
	Config interface{} `yaml:"config" json:"config"`
}

type EventsConfig struct {
	Enabled bool        `yaml:"enabled" json:"enabled"`
	Type    string      `yaml:"type" json:"type"`
	Config  interface{} `yaml:"config" json:"config"`
}

type CronConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Timezone string `yaml:"timezone" json:"timezone" validate:"required_if=Enabled true"`
}

type HealthConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

type ServerConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Host            string `yaml:"host" json:"host"`
	Port            int    `yaml:"port" json:"port" validate:"omitempty,min=1,max=65535"`
	ReadTimeout     int    `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    int    `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     int    `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout int    `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}
