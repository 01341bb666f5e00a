// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package tokenserver

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is yaml configuration of the token service. API credentials may be
// overridden with LIVEKIT_API_KEY and LIVEKIT_API_SECRET environment
// variables so they can stay out of config files.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	LiveKit LiveKitConfig `yaml:"livekit"`
	Token   TokenConfig   `yaml:"token"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

type LiveKitConfig struct {
	// URL is advertised to clients in token responses, wss://...
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

type TokenConfig struct {
	// TTL of issued tokens in seconds. Default 6 hours.
	TTL int `yaml:"ttl"`
}

// Load reads and validates yaml config from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	conf.applyEnv()
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &conf, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LIVEKIT_URL"); v != "" {
		c.LiveKit.URL = v
	}
	if v := os.Getenv("LIVEKIT_API_KEY"); v != "" {
		c.LiveKit.APIKey = v
	}
	if v := os.Getenv("LIVEKIT_API_SECRET"); v != "" {
		c.LiveKit.APISecret = v
	}
}

func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.LiveKit.APIKey == "" {
		return fmt.Errorf("livekit api_key cannot be empty")
	}
	if c.LiveKit.APISecret == "" {
		return fmt.Errorf("livekit api_secret cannot be empty")
	}
	if c.Token.TTL < 0 {
		return fmt.Errorf("token ttl cannot be negative, got %d", c.Token.TTL)
	}
	return nil
}

func (c *Config) TokenTTL() time.Duration {
	if c.Token.TTL == 0 {
		return 6 * time.Hour
	}
	return time.Duration(c.Token.TTL) * time.Second
}
