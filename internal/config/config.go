// Package config loads the bot configuration from defaults, an optional TOML
// file and STANDUP_ prefixed environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"standup-bot/internal/scheduler"
	"standup-bot/internal/usecase"
)

const (
	// PathEnv names the variable holding the optional TOML file path.
	PathEnv   = "STANDUP_CONFIG"
	envPrefix = "STANDUP_"

	BotTokenEnv = "SLACK_BOT_TOKEN"
	AppTokenEnv = "SLACK_APP_TOKEN"
)

type Config struct {
	Slack struct {
		ChannelID     string  `koanf:"channel_id"`
		ParamPrefix   string  `koanf:"param_prefix"`
		RatePerSecond float64 `koanf:"rate_per_second"`
		RateBurst     int     `koanf:"rate_burst"`
	} `koanf:"slack"`

	Schedule struct {
		Occurrences []string      `koanf:"occurrences"`
		Timezone    string        `koanf:"timezone"`
		Interval    time.Duration `koanf:"interval"`
	} `koanf:"schedule"`

	Conversation struct {
		RestartPolicy string   `koanf:"restart_policy"`
		Greeting      string   `koanf:"greeting"`
		Questions     []string `koanf:"questions"`
		FanOut        int      `koanf:"fan_out"`
	} `koanf:"conversation"`

	Archive struct {
		Table string        `koanf:"table"`
		TTL   time.Duration `koanf:"ttl"`
	} `koanf:"archive"`

	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"slack.rate_per_second": 5.0,
		"slack.rate_burst":      10,
		"schedule.occurrences": []string{
			"mon 08:15", "tue 08:15", "wed 08:15", "thu 08:15", "fri 08:15",
		},
		"schedule.timezone":           "UTC",
		"schedule.interval":           scheduler.DefaultInterval.String(),
		"conversation.restart_policy": string(usecase.RestartReset),
		"conversation.greeting":       usecase.DefaultGreeting,
		"conversation.questions":      usecase.DefaultQuestions,
		"conversation.fan_out":        16,
		"archive.ttl":                 (90 * 24 * time.Hour).String(),
		"log.level":                   "info",
		"log.format":                  "json",
	}
}

// Load reads the configuration. A non-empty path must point to a readable
// TOML file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// envKey maps STANDUP_SLACK_CHANNEL_ID to slack.channel_id. Only the first
// underscore after the prefix separates the section from the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if s == "config" {
		return ""
	}
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + key
}

// Validate checks the values main needs to wire the bot.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Slack.ChannelID) == "" {
		return errors.New("config: slack.channel_id is required")
	}
	if c.Slack.RatePerSecond < 0 {
		return errors.New("config: slack.rate_per_second must not be negative")
	}
	if len(c.Schedule.Occurrences) == 0 {
		return errors.New("config: schedule.occurrences must not be empty")
	}
	if _, err := scheduler.ParseOccurrences(c.Schedule.Occurrences); err != nil {
		return fmt.Errorf("config: schedule.occurrences: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Schedule.Interval <= 0 || c.Schedule.Interval > time.Minute {
		return errors.New("config: schedule.interval must be within (0, 1m]")
	}
	switch usecase.RestartPolicy(c.Conversation.RestartPolicy) {
	case usecase.RestartReset, usecase.RestartReject:
	default:
		return fmt.Errorf("config: unknown conversation.restart_policy %q", c.Conversation.RestartPolicy)
	}
	if len(c.Conversation.Questions) == 0 {
		return errors.New("config: conversation.questions must not be empty")
	}
	if c.Conversation.FanOut <= 0 {
		return errors.New("config: conversation.fan_out must be positive")
	}
	if c.Archive.Table != "" && c.Archive.TTL <= 0 {
		return errors.New("config: archive.ttl must be positive")
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: schedule.timezone: %w", err)
	}
	return loc, nil
}

// NeedsAWS reports whether SSM or DynamoDB is in use.
func (c *Config) NeedsAWS() bool {
	return c.Slack.ParamPrefix != "" || c.Archive.Table != ""
}

// TokensFromEnv returns the Slack tokens from the environment. Values are
// opaque and must not be logged.
func TokensFromEnv() (bot, app string, err error) {
	bot = strings.TrimSpace(os.Getenv(BotTokenEnv))
	app = strings.TrimSpace(os.Getenv(AppTokenEnv))
	if bot == "" {
		return "", "", fmt.Errorf("config: %s is not set", BotTokenEnv)
	}
	if app == "" {
		return "", "", fmt.Errorf("config: %s is not set", AppTokenEnv)
	}
	return bot, app, nil
}
