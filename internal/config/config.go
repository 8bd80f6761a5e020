// Package config loads process settings from ~/.apool/config.toml and
// APOOL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "APOOL"
	configDir      = ".apool"
	configName     = "config"
	configType     = "toml"
	DriverTOML     = "toml"
	DriverPostgres = "postgres"
)

type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Process   ProcessConfig   `mapstructure:"process"`
	Alert     AlertConfig     `mapstructure:"alert"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Requests  RequestsConfig  `mapstructure:"requests"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	// Path is read by the toml repository through the same viper instance.
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	DSN     string `mapstructure:"dsn"`
	Migrate bool   `mapstructure:"migrate"`
}

// RedisConfig with an empty Addr runs every shared structure in process
// memory, which only suits a single worker.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ProcessConfig struct {
	Role string `mapstructure:"role"`
	ID   string `mapstructure:"id"`
}

type AlertConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type HTTPConfig struct {
	Listen string `mapstructure:"listen"`
}

type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type JobsConfig struct {
	MaxPerUser int `mapstructure:"max_per_user"`
}

type SecretsConfig struct {
	Dir        string `mapstructure:"dir"`
	PassPrefix string `mapstructure:"pass_prefix"`
}

type RequestsConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", DriverTOML)
	v.SetDefault("store.path", "")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.migrate", true)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("process.role", "coordinator")
	v.SetDefault("process.id", "")
	v.SetDefault("alert.telegram.token", "")
	v.SetDefault("alert.telegram.chat_id", 0)
	v.SetDefault("http.listen", "127.0.0.1:8089")
	v.SetDefault("scheduler.interval", time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("jobs.max_per_user", 3)
	v.SetDefault("secrets.dir", "")
	v.SetDefault("secrets.pass_prefix", "apool")
	v.SetDefault("requests.ttl", 10*time.Minute)
}

// Load reads path when given, otherwise ~/.apool/config.toml if it exists.
// The returned viper instance is shared with adapters that read their own
// keys.
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType(configType)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, configDir))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Secrets.Dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.Secrets.Dir = filepath.Join(homeDir, configDir, "secrets")
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return &cfg, v, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverTOML:
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required when store.driver is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported store.driver %q", c.Store.Driver))
	}

	if c.Scheduler.Interval <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.interval must be positive, got %s", c.Scheduler.Interval))
	}
	if c.Jobs.MaxPerUser <= 0 {
		errs = append(errs, fmt.Errorf("jobs.max_per_user must be positive, got %d", c.Jobs.MaxPerUser))
	}
	if c.Requests.TTL <= 0 {
		errs = append(errs, fmt.Errorf("requests.ttl must be positive, got %s", c.Requests.TTL))
	}
	if c.Alert.Telegram.Token != "" && c.Alert.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("alert.telegram.chat_id is required with a telegram token"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Logger builds the process logger on stderr from the log section.
func (c *Config) Logger() *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log.level %q", raw)
	}
	return level, nil
}
