package config

import (
	"time"

	"github.com/kbukum/mediaflow/errors"
	"github.com/kbukum/mediaflow/validation"
)

// DefaultServiceName is the service name used for file discovery and logs.
const DefaultServiceName = "mediaflow"

// Store backends understood by descriptor.Open.
var StoreBackends = []string{"memory", "blackhole", "jsonl", "badger"}

// Config is the complete engine configuration.
type Config struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Scheduler     SchedulerConfig     `yaml:"scheduler" mapstructure:"scheduler"`
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Resolver      ResolverConfig      `yaml:"resolver" mapstructure:"resolver"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Pipelines     PipelinesConfig     `yaml:"pipelines" mapstructure:"pipelines"`
	HTTP          HTTPConfig          `yaml:"http" mapstructure:"http"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// SchedulerConfig sizes the job scheduler.
type SchedulerConfig struct {
	HistorySize int `yaml:"history_size" mapstructure:"history_size"`
	// PoolSize bounds concurrent async jobs. Default 16; -1 removes the bound.
	PoolSize int `yaml:"pool_size" mapstructure:"pool_size"`
	// JobTimeout bounds a job's run time. Zero disables it.
	JobTimeout time.Duration `yaml:"job_timeout" mapstructure:"job_timeout"`
}

// StoreConfig selects the descriptor store backend.
type StoreConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// ResolverConfig roots the disk resolver.
type ResolverConfig struct {
	BasePath string `yaml:"base_path" mapstructure:"base_path"`
}

// CacheConfig sets where cached content is spilled.
type CacheConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// PipelinesConfig lists directories searched for pipeline definitions.
type PipelinesConfig struct {
	Dirs []string `yaml:"dirs" mapstructure:"dirs"`
}

// HTTPConfig configures the job API listener.
type HTTPConfig struct {
	Address         string        `yaml:"address" mapstructure:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// ObservabilityConfig enables OTLP export of traces and metrics.
type ObservabilityConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure bool   `yaml:"insecure" mapstructure:"insecure"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()

	if c.Scheduler.HistorySize == 0 {
		c.Scheduler.HistorySize = 100
	}
	if c.Scheduler.PoolSize == 0 {
		c.Scheduler.PoolSize = 16
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Store.Path == "" && (c.Store.Backend == "jsonl" || c.Store.Backend == "badger") {
		c.Store.Path = "./data/descriptors"
	}
	if c.Resolver.BasePath == "" {
		c.Resolver.BasePath = "./data/artifacts"
	}
	if len(c.Pipelines.Dirs) == 0 {
		c.Pipelines.Dirs = []string{"./pipelines"}
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Observability.Endpoint == "" {
		c.Observability.Endpoint = "localhost:4318"
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return errors.Configuration(err.Error()).WithCause(err)
	}

	v := validation.New().
		Min("scheduler.history_size", c.Scheduler.HistorySize, 1).
		Min("scheduler.pool_size", c.Scheduler.PoolSize, -1).
		NonNegativeDuration("scheduler.job_timeout", c.Scheduler.JobTimeout).
		Required("store.backend", c.Store.Backend).
		OneOf("store.backend", c.Store.Backend, StoreBackends).
		Required("resolver.base_path", c.Resolver.BasePath).
		Required("http.address", c.HTTP.Address)
	if c.Scheduler.PoolSize == 0 {
		v.AddError("scheduler.pool_size", "must be positive or -1")
	}
	if c.Store.Backend == "jsonl" || c.Store.Backend == "badger" {
		v.Required("store.path", c.Store.Path)
	}
	if appErr := v.Validate(); appErr != nil {
		return errors.Configuration(appErr.Message).WithDetails(appErr.Details)
	}
	return nil
}

// Load resolves files for the default service name, then applies defaults and
// validates.
func Load(opts ...LoaderOption) (*Config, error) {
	var cfg Config
	if err := LoadConfig(DefaultServiceName, &cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
