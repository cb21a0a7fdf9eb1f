// Package config loads the application configuration: the core bot settings
// plus database, tool adapter, advisor, digest and ops sections. YAML first,
// environment variables override.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/agrobot/core/config"
	coredatabase "github.com/m3rciful/agrobot/core/database"
	"github.com/m3rciful/agrobot/internal/advisor"
	"github.com/m3rciful/agrobot/internal/digest"
	"github.com/m3rciful/agrobot/internal/ops"
	"github.com/m3rciful/agrobot/internal/tools"
)

// AccessConfig restricts the bot to specific Telegram accounts. Empty means
// open to everyone.
type AccessConfig struct {
	AllowedUserIDs []int64 `yaml:"allowed_user_ids" envconfig:"TELEGRAM_ALLOWED_USER_IDS"`
}

// AllowedSet returns the allow list as a lookup set.
func (a AccessConfig) AllowedSet() map[int64]struct{} {
	if len(a.AllowedUserIDs) == 0 {
		return nil
	}
	set := make(map[int64]struct{}, len(a.AllowedUserIDs))
	for _, id := range a.AllowedUserIDs {
		set[id] = struct{}{}
	}
	return set
}

// Config is the full application configuration.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
	Access   AccessConfig        `yaml:"access"`
	Weather  tools.WeatherConfig `yaml:"weather"`
	Search   tools.SearchConfig  `yaml:"search"`
	LLM      tools.LLMConfig     `yaml:"llm"`
	Advisor  advisor.Config      `yaml:"advisor"`
	Digest   digest.Config       `yaml:"digest"`
	Ops      ops.Config          `yaml:"ops"`
}

// CoreConfig exposes the embedded core configuration for the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Core
}

// Load reads YAML, applies environment overrides, and validates.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	cfg.Weather.Normalize()
	cfg.Search.Normalize()
	cfg.LLM.Normalize()
	cfg.Advisor.Normalize()
	cfg.Digest.Normalize()
	return &cfg, nil
}
