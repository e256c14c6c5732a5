package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	APIBase   string `mapstructure:"api_base"`
	WSBase    string `mapstructure:"ws_base"`
	SFUURL    string `mapstructure:"sfu_url"`
	RoomID    string `mapstructure:"room_id"`
	AuthToken string `mapstructure:"auth_token"`
	Username  string `mapstructure:"username"`
	SessionID string `mapstructure:"session_id"`

	SettleDelay   time.Duration `mapstructure:"settle_delay"`
	ReactionTTL   time.Duration `mapstructure:"reaction_ttl"`
	RaisedHandTTL time.Duration `mapstructure:"raised_hand_ttl"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	SendBuffer    int           `mapstructure:"send_buffer"`
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

	v.SetEnvPrefix("call")
	v.AutomaticEnv()

	v.SetDefault("api_base", "http://localhost:8080/api")
	v.SetDefault("ws_base", "ws://localhost:8080/api/ws")
	v.SetDefault("sfu_url", "http://localhost:8081/session")
	v.SetDefault("room_id", "main")
	v.SetDefault("username", "guest")
	v.SetDefault("settle_delay", "1s")
	v.SetDefault("reaction_ttl", "5s")
	v.SetDefault("raised_hand_ttl", "10s")
	v.SetDefault("dial_timeout", "5s")
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("http_timeout", "10s")
	v.SetDefault("send_buffer", 32)

	if err := v.ReadInConfig(); err == nil {
		fmt.Printf("loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
