package ops

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"main/internal/event"
	"main/internal/gateway"
	"main/internal/model/enum"
)

// Config is the resolved runtime configuration.
type Config struct {
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Recorder RecorderConfig `mapstructure:"recorder"`
	Database DatabaseConfig `mapstructure:"database"`
	Profiler ProfilerConfig `mapstructure:"profiler"`
	// Subscriptions are requested right after connecting.
	Subscriptions []SubscriptionConfig `mapstructure:"subscriptions"`
}

// SubscriptionConfig names one push stream to request on startup.
type SubscriptionConfig struct {
	Exchange string `mapstructure:"exchange"`
	Market   string `mapstructure:"market"`
	Channel  string `mapstructure:"channel"`
}

// GatewayConfig describes the remote trading engine endpoint.
type GatewayConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Path           string        `mapstructure:"path"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// EngineConfig controls the event engine queue.
type EngineConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

// RecorderConfig controls event journaling.
type RecorderConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Dir         string   `mapstructure:"dir"`
	FilePrefix  string   `mapstructure:"file_prefix"`
	Kinds       []string `mapstructure:"kinds"`
	UseDatabase bool     `mapstructure:"use_database"`
}

// DatabaseConfig describes the optional Postgres sink.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// ProfilerConfig enables continuous profiling when ServerAddress is set.
type ProfilerConfig struct {
	ServerAddress   string `mapstructure:"server_address"`
	ApplicationName string `mapstructure:"application_name"`
}

// Load reads the config file, applies environment overrides, and
// validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("gateway.path", "/ws")
	v.SetDefault("gateway.request_timeout", "5s")
	v.SetDefault("engine.queue_size", 1024)
	v.SetDefault("recorder.file_prefix", "events")
	v.SetDefault("profiler.application_name", "trader")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration before anything is wired.
func (c Config) Validate() error {
	if err := c.GatewayConfig().Validate(); err != nil {
		return err
	}
	if c.Engine.QueueSize < 0 {
		return fmt.Errorf("invalid config: engine.queue_size must be >= 0")
	}
	if c.Recorder.Enabled && c.Recorder.Dir == "" {
		return fmt.Errorf("invalid config: recorder.dir is empty")
	}
	if _, err := c.Recorder.EventKinds(); err != nil {
		return err
	}
	if c.Recorder.UseDatabase && c.Database.Database == "" {
		return fmt.Errorf("invalid config: database.database is empty")
	}
	for i, sub := range c.Subscriptions {
		if sub.Exchange == "" || sub.Market == "" {
			return fmt.Errorf("invalid config: subscriptions[%d] needs exchange and market", i)
		}
		if sub.Channel != "" && !enum.Channel(sub.Channel).IsAvailable() {
			return fmt.Errorf("invalid config: subscriptions[%d] channel %q unknown", i, sub.Channel)
		}
	}
	return nil
}

// GatewayConfig converts the file section into the gateway package config.
func (c Config) GatewayConfig() gateway.Config {
	return gateway.Config{
		Host:           c.Gateway.Host,
		Port:           c.Gateway.Port,
		Path:           c.Gateway.Path,
		APIKey:         c.Gateway.APIKey,
		RequestTimeout: c.Gateway.RequestTimeout,
	}
}

// EventKinds resolves the configured kind tokens.
func (c RecorderConfig) EventKinds() ([]event.Kind, error) {
	kinds := make([]event.Kind, 0, len(c.Kinds))
	for _, token := range c.Kinds {
		k, ok := event.ParseKind(token)
		if !ok {
			return nil, fmt.Errorf("invalid config: recorder kind %q unknown", token)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
