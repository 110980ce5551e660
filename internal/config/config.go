// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration. Every field has a sane default;
// a YAML file and then environment variables may override it.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Lobby   LobbyConfig   `yaml:"lobby"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// SessionConfig controls session bookkeeping.
type SessionConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// LobbyConfig controls lobby lifecycle timing.
type LobbyConfig struct {
	AutoStartDelay time.Duration `yaml:"auto_start_delay"`
	ResetDelay     time.Duration `yaml:"reset_delay"`
}

// The yaml package does not decode "10s"-style strings into time.Duration,
// so each section unmarshals through a string-typed shadow struct. Absent
// fields keep the values already present (the defaults).

func (s *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Host         string `yaml:"host"`
		Port         string `yaml:"port"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Host != "" {
		s.Host = raw.Host
	}
	if raw.Port != "" {
		s.Port = raw.Port
	}
	if err := parseDuration(raw.ReadTimeout, &s.ReadTimeout); err != nil {
		return err
	}
	return parseDuration(raw.WriteTimeout, &s.WriteTimeout)
}

func (s *SessionConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		IdleTimeout   string `yaml:"idle_timeout"`
		SweepInterval string `yaml:"sweep_interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if err := parseDuration(raw.IdleTimeout, &s.IdleTimeout); err != nil {
		return err
	}
	return parseDuration(raw.SweepInterval, &s.SweepInterval)
}

func (l *LobbyConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		AutoStartDelay string `yaml:"auto_start_delay"`
		ResetDelay     string `yaml:"reset_delay"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if err := parseDuration(raw.AutoStartDelay, &l.AutoStartDelay); err != nil {
		return err
	}
	return parseDuration(raw.ResetDelay, &l.ResetDelay)
}

func parseDuration(s string, dst *time.Duration) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*dst = d
	return nil
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "3001",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			IdleTimeout:   5 * time.Minute,
			SweepInterval: 30 * time.Second,
		},
		Lobby: LobbyConfig{
			AutoStartDelay: 2 * time.Second,
			ResetDelay:     10 * time.Second,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty and the file exists), then env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if host := os.Getenv("HOST"); host != "" {
		cfg.Server.Host = host
	}

	return cfg, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
