// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/federation/lib/ref"
)

// Config is the federation node's configuration.
type Config struct {
	// ServerName is this node's federation identity (the domain other
	// servers address it by and the name its signatures carry).
	ServerName string `yaml:"server_name"`

	// DataDir holds the per-room logs.
	DataDir string `yaml:"data_dir"`

	// KeyFile is the path to the node's Ed25519 signing keys. The file
	// is created on first start if absent.
	KeyFile string `yaml:"key_file"`

	// RoomsFile is the path to the JSONC room list.
	RoomsFile string `yaml:"rooms_file"`

	// LogLevel is one of debug, info, warn, error. Default: info.
	LogLevel string `yaml:"log_level"`
}

// Default returns the default configuration. The defaults exist to
// give every field a sensible zero value; server_name has no default
// and must come from the file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	root := filepath.Join(homeDir, ".cache", "federation-node")

	return &Config{
		DataDir:   filepath.Join(root, "rooms"),
		KeyFile:   filepath.Join(root, "identity.json"),
		RoomsFile: filepath.Join(root, "rooms.jsonc"),
		LogLevel:  "info",
	}
}

// LoadFile loads configuration from a specific file path. The file is
// the single source of truth; the only transformation applied is
// ${HOME}-style variable expansion in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// path fields.
func (c *Config) expandVariables() {
	c.DataDir = expandVars(c.DataDir)
	c.KeyFile = expandVars(c.KeyFile)
	c.RoomsFile = expandVars(c.RoomsFile)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerName == "" {
		errs = append(errs, fmt.Errorf("server_name is required"))
	} else if _, err := ref.ParseServerName(c.ServerName); err != nil {
		errs = append(errs, fmt.Errorf("server_name: %w", err))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("data_dir is required"))
	}
	if c.KeyFile == "" {
		errs = append(errs, fmt.Errorf("key_file is required"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Level maps the configured log level to a slog level. Validate
// rejects anything Level does not know.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// roomList is the on-disk shape of the rooms file.
type roomList struct {
	Rooms []string `json:"rooms"`
}

// LoadRooms reads the JSONC room list and returns the validated room
// IDs. A missing file is not an error: the node simply starts with no
// rooms registered.
func LoadRooms(path string) ([]ref.RoomID, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var list roomList
	if err := json.Unmarshal(jsonc.ToJSON(data), &list); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	rooms := make([]ref.RoomID, 0, len(list.Rooms))
	for _, raw := range list.Rooms {
		roomID, err := ref.ParseRoomID(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		rooms = append(rooms, roomID)
	}
	return rooms, nil
}
