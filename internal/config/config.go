package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	Port   int    `mapstructure:"port"`
	Secret string `mapstructure:"secret"`

	// Storage selects the queue/room table backend: "memory" or "postgres".
	Storage  string         `mapstructure:"storage"`
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Notifier selects the change-feed substrate: "memory" or "redis".
	Notifier  string `mapstructure:"notifier"`
	RedisAddr string `mapstructure:"redis_addr"`

	// SilenceWindow is the max gap between level samples before a
	// receiver treats the speaker as silent. SampleInterval drives the
	// emitting side's tick loop.
	SilenceWindow  time.Duration `mapstructure:"silence_window"`
	SampleInterval time.Duration `mapstructure:"sample_interval"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("storage", "memory")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "micqueue")
	v.SetDefault("postgres.name", "micqueue")
	v.SetDefault("notifier", "memory")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("silence_window", "500ms")
	v.SetDefault("sample_interval", "100ms")
	v.SetDefault("read_limit", 4096)
	v.SetDefault("ping_period", "54s")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// DSN builds the postgres connection string the gorm driver expects.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		p.Host, p.User, p.Password, p.Name, p.Port)
}
