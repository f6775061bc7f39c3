package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"guardbot/internal/protection"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingToken       = errors.New("DISCORD_TOKEN is required")
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
)

type Config struct {
	DiscordToken  string           `yaml:"discord_token"`
	DatabaseURL   string           `yaml:"database_url"`
	LogLevel      string           `yaml:"log_level"`
	RetentionDays int              `yaml:"retention_days"`
	RulePreset    string           `yaml:"rule_preset"`
	OwnerIDs      []string         `yaml:"owner_ids"`
	Health        HealthConfig     `yaml:"health"`
	Redis         RedisConfig      `yaml:"redis"`
	AntiNuke      AntiNukeConfig   `yaml:"antinuke"`
	Protection    ProtectionConfig `yaml:"protection"`
	Raid          RaidConfig       `yaml:"raid"`
	Backup        BackupConfig     `yaml:"backup"`
	Actions       ActionConfig     `yaml:"actions"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type RedisConfig struct {
	Addr            string `yaml:"addr"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type AntiNukeConfig struct {
	WindowSeconds            int `yaml:"window_seconds"`
	SweepSeconds             int `yaml:"sweep_seconds"`
	AttributionMaxAgeSeconds int `yaml:"attribution_max_age_seconds"`
}

type ProtectionConfig struct {
	WindowSeconds   int `yaml:"window_seconds"`
	SweepSeconds    int `yaml:"sweep_seconds"`
	SpamMessages    int `yaml:"spam_messages"`
	RaidInviteLimit int `yaml:"raid_invite_limit"`
}

type RaidConfig struct {
	JoinThreshold     int `yaml:"join_threshold"`
	JoinWindowSeconds int `yaml:"join_window_seconds"`
}

type BackupConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes"`
	MaxPerGuild     int  `yaml:"max_per_guild"`
}

type ActionConfig struct {
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
	TimeoutMinutes     int     `yaml:"timeout_minutes"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:      "info",
		RetentionDays: 30,
		RulePreset:    "medium",
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Redis:         RedisConfig{CacheTTLSeconds: 300},
		AntiNuke: AntiNukeConfig{
			WindowSeconds:            10,
			SweepSeconds:             30,
			AttributionMaxAgeSeconds: 5,
		},
		Protection: ProtectionConfig{
			WindowSeconds:   60,
			SweepSeconds:    60,
			SpamMessages:    8,
			RaidInviteLimit: 3,
		},
		Raid:    RaidConfig{JoinThreshold: 10, JoinWindowSeconds: 10},
		Backup:  BackupConfig{Enabled: false, IntervalMinutes: 1440, MaxPerGuild: 5},
		Actions: ActionConfig{RateLimitPerSecond: 5, RateLimitBurst: 10, TimeoutMinutes: 10},
	}
}

// Load reads an optional .env file, then the YAML file at CONFIG_PATH, then environment
// overrides.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, ErrMissingToken
	}
	if cfg.DatabaseURL == "" {
		return Config{}, ErrMissingDatabaseURL
	}

	cfg.RulePreset = normalizePreset(cfg.RulePreset)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.RulePreset = envString("RULE_PRESET", cfg.RulePreset)
	cfg.OwnerIDs = envList("OWNER_IDS", cfg.OwnerIDs)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Redis.Addr = envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Username = envString("REDIS_USERNAME", cfg.Redis.Username)
	cfg.Redis.Password = envString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)
	cfg.Protection.SpamMessages = envInt("SPAM_MESSAGES", cfg.Protection.SpamMessages)
	cfg.Protection.RaidInviteLimit = envInt("RAID_INVITE_LIMIT", cfg.Protection.RaidInviteLimit)
	cfg.Raid.JoinThreshold = envInt("RAID_JOIN_THRESHOLD", cfg.Raid.JoinThreshold)
	cfg.Raid.JoinWindowSeconds = envInt("RAID_JOIN_WINDOW_SECONDS", cfg.Raid.JoinWindowSeconds)
	cfg.Backup.Enabled = envBool("BACKUP_ENABLED", cfg.Backup.Enabled)
	cfg.Backup.IntervalMinutes = envInt("BACKUP_INTERVAL_MINUTES", cfg.Backup.IntervalMinutes)
	cfg.Backup.MaxPerGuild = envInt("BACKUP_MAX_PER_GUILD", cfg.Backup.MaxPerGuild)
	cfg.Actions.TimeoutMinutes = envInt("ACTIONS_TIMEOUT_MINUTES", cfg.Actions.TimeoutMinutes)
}

// Defaults returns the protection config used for guilds that have not stored one,
// tuned by the rule preset.
func (c Config) Defaults() protection.Config {
	defaults := protection.DefaultConfig()
	applyPreset(c.RulePreset, &defaults)
	return defaults
}

func (c Config) AntiNukeWindow() time.Duration {
	return seconds(c.AntiNuke.WindowSeconds, 10)
}

func (c Config) AntiNukeSweep() time.Duration {
	return seconds(c.AntiNuke.SweepSeconds, 30)
}

func (c Config) AttributionMaxAge() time.Duration {
	return seconds(c.AntiNuke.AttributionMaxAgeSeconds, 5)
}

func (c Config) ProtectionWindow() time.Duration {
	return seconds(c.Protection.WindowSeconds, 60)
}

func (c Config) ProtectionSweep() time.Duration {
	return seconds(c.Protection.SweepSeconds, 60)
}

func (c Config) RaidJoinWindow() time.Duration {
	return seconds(c.Raid.JoinWindowSeconds, 10)
}

func (c Config) BackupInterval() time.Duration {
	if c.Backup.IntervalMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalMinutes) * time.Minute
}

func (c Config) CacheTTL() time.Duration {
	return seconds(c.Redis.CacheTTLSeconds, 300)
}

func (c Config) IsOwner(userID string) bool {
	for _, id := range c.OwnerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func seconds(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))

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

func envList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalizePreset(value string) string {
	switch strings.ToLower(value) {
	case "low", "medium", "high":
		return strings.ToLower(value)
	default:
		return "medium"
	}
}

func applyPreset(preset string, cfg *protection.Config) {
	switch preset {
	case "low":
		cfg.AntiNuke.Thresholds.RoleCreateDelete = 5
		cfg.AntiNuke.Thresholds.ChannelCreateDelete = 5
		cfg.AntiNuke.Thresholds.Bans = 5
		cfg.AntiNuke.Thresholds.Kicks = 5
		cfg.AntiAlts.MinAccountAgeDays = 3
	case "high":
		cfg.AntiNuke.Thresholds.RoleCreateDelete = 2
		cfg.AntiNuke.Thresholds.ChannelCreateDelete = 2
		cfg.AntiNuke.Thresholds.Bans = 2
		cfg.AntiNuke.Thresholds.Kicks = 2
		cfg.AntiAlts.MinAccountAgeDays = 14
	}
}
