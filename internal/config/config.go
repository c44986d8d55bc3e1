package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config represents runtime configuration for the service.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Audio         AudioConfig         `mapstructure:"audio"`
	Interview     InterviewConfig     `mapstructure:"interview"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api-key"`
	BaseURL  string `mapstructure:"base-url"`
}

type TranscriptionConfig struct {
	Model  string `mapstructure:"model"`
	APIKey string `mapstructure:"api-key"`
}

type AudioConfig struct {
	MaxSizeBytes  int64 `mapstructure:"max-size-bytes"`
	MinSampleRate int   `mapstructure:"min-sample-rate"`
	MaxSampleRate int   `mapstructure:"max-sample-rate"`
}

type InterviewConfig struct {
	DefaultNumQuestions int `mapstructure:"default-num-questions"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "./data/interviewer.db")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("transcription.model", "gemini-2.5-flash")
	v.SetDefault("audio.max-size-bytes", 25*1024*1024)
	v.SetDefault("audio.min-sample-rate", 8000)
	v.SetDefault("audio.max-sample-rate", 48000)
	v.SetDefault("interview.default-num-questions", 5)
}

// Unmarshal builds a Config from the already-initialized viper instance.
func Unmarshal(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("llm.api-key must be configured")
	}
	if cfg.Transcription.APIKey == "" {
		cfg.Transcription.APIKey = cfg.LLM.APIKey
	}
	return &cfg, nil
}
