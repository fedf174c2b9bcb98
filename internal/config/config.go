package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode              string        `mapstructure:"mode"`
	Port              int           `mapstructure:"port"`
	ServerName        string        `mapstructure:"server_name"`
	RoomsFile         string        `mapstructure:"rooms_file"`
	AvatarDir         string        `mapstructure:"avatar_dir"`
	ReadLimit         int64         `mapstructure:"read_limit"`
	PingPeriod        time.Duration `mapstructure:"ping_period"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	Console           bool          `mapstructure:"console"`
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
	v.SetDefault("server_name", "couchsync")
	v.SetDefault("rooms_file", "")
	v.SetDefault("avatar_dir", "")
	v.SetDefault("read_limit", 10<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("heartbeat_interval", "5s")
	v.SetDefault("console", false)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
