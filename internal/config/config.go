package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string       `yaml:"discord_token"`
	DatabasePath  string       `yaml:"database_path"`
	LogLevel      string       `yaml:"log_level"`
	RetentionDays int          `yaml:"retention_days"`
	Health        HealthConfig `yaml:"health"`
	Panels        PanelConfig  `yaml:"panels"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type PanelConfig struct {
	// ResumeOnStart re-syncs every persisted panel when the gateway session
	// becomes ready.
	ResumeOnStart bool `yaml:"resume_on_start"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:  "/data/aegisguard.db",
		LogLevel:      "info",
		RetentionDays: 90,
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Panels:        PanelConfig{ResumeOnStart: true},
	}
}

// Load builds the runtime config: defaults, then the yaml file if present,
// then environment overrides. A .env file is folded into the environment
// first so local runs do not need exported variables.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Panels.ResumeOnStart = envBool("PANEL_RESUME_ON_START", cfg.Panels.ResumeOnStart)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
