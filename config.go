package main

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Game tuning constants shared by the engine and bot layers.
const (
	// Food
	FoodReward       = 10  // score per food eaten
	FoodSpawnRetries = 100 // random placement attempts before giving up

	// Snake start layout
	StartMargin = 3 // cells kept between a start position and the wall

	// Broadcast
	BroadcastRate = 60 // state samples per second while a game runs

	// Bot decision throttling (minimum interval between fresh decisions)
	BotDelayEasy   = 150 * time.Millisecond
	BotDelayMedium = 100 * time.Millisecond
	BotDelayHard   = 50 * time.Millisecond

	// Bot heuristics
	FloodFillDepth2D  = 15
	FloodFillDepth3D  = 20
	PathMaxIterations = 200

	// Lobby rules
	MinPlayersToStart = 2
	RoomCodeLength    = 6

	// RoomCodeAlphabet omits characters easy to misread (I, O, 0, 1).
	RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// Chat
	ChatMaxLength = 200
)

// PlayerColors is the fixed palette. Allocation picks the first entry unused
// in the room and falls back to the first entry when all are taken.
var PlayerColors = []string{
	"#4ecdc4",
	"#ff6b6b",
	"#ffd93d",
	"#6bcf7f",
}

// Config holds process-level settings loaded from environment and an
// optional config file.
type Config struct {
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
	LogFormat string `mapstructure:"log_format"`

	RoomIdleTimeout    time.Duration `mapstructure:"room_idle_timeout"`
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
}

// LoadConfig reads configuration with viper: built-in defaults, then an
// optional snake-server.yaml in the working directory, then SNAKE_* env vars.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetDefault("addr", ":3001")
	v.SetDefault("static_dir", "dist/client")
	v.SetDefault("log_format", "console")
	v.SetDefault("room_idle_timeout", 30*time.Minute)
	v.SetDefault("session_idle_timeout", 10*time.Minute)
	v.SetDefault("sweep_interval", 5*time.Minute)

	v.SetConfigName("snake-server")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SNAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
