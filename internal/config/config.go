// Package config loads service settings from settings.yaml with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"

	DistanceFixed   = "fixed"
	DistanceDynamic = "dynamic"
)

type Settings struct {
	Store StoreSettings `yaml:"store"`
	Trade TradeSettings `yaml:"trade"`
	Log   LogSettings   `yaml:"log"`
}

type StoreSettings struct {
	Backend string `yaml:"backend" validate:"oneof=sqlite json"`
	DataDir string `yaml:"data_dir" validate:"required"`
	// LegacyFile is relative to DataDir unless absolute. Empty disables import.
	LegacyFile string `yaml:"legacy_file"`
}

type TradeSettings struct {
	DistanceMode  string `yaml:"distance_mode" validate:"oneof=fixed dynamic"`
	FixedDistance int    `yaml:"fixed_distance" validate:"gte=1"`
	MaxContainers int    `yaml:"max_containers" validate:"gte=0"`
	// TuningFile holds the gameplay radii used in dynamic mode.
	TuningFile string `yaml:"tuning_file"`
}

type LogSettings struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

func Defaults() Settings {
	return Settings{
		Store: StoreSettings{
			Backend:    BackendSQLite,
			DataDir:    "./data",
			LegacyFile: "shops.yml",
		},
		Trade: TradeSettings{
			DistanceMode:  DistanceFixed,
			FixedDistance: 2,
			MaxContainers: 64,
			TuningFile:    "./configs/tuning.yaml",
		},
		Log: LogSettings{Level: "info"},
	}
}

var validate = validator.New()

// Load reads path over the defaults. An empty path or a missing file yields
// the defaults; env overrides apply in both cases.
func Load(path string) (Settings, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("settings.yaml: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return cfg, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("settings.yaml: %w", err)
	}
	return cfg, nil
}

func (c *Settings) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("TRADEPOST_STORE_BACKEND")); v != "" {
		c.Store.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("TRADEPOST_DATA_DIR")); v != "" {
		c.Store.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("TRADEPOST_DISTANCE_MODE")); v != "" {
		c.Trade.DistanceMode = v
	}
	n, err := envInt("TRADEPOST_FIXED_DISTANCE", c.Trade.FixedDistance)
	if err != nil {
		return err
	}
	c.Trade.FixedDistance = n
	return nil
}

func (c *Settings) Normalize() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.Trade.DistanceMode = strings.ToLower(strings.TrimSpace(c.Trade.DistanceMode))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c Settings) Validate() error {
	return validate.Struct(c)
}

func (c Settings) SQLitePath() string { return filepath.Join(c.Store.DataDir, "shops.sqlite") }

func (c Settings) JSONPath() string { return filepath.Join(c.Store.DataDir, "shops.json") }

func (c Settings) LegacyPath() string {
	p := strings.TrimSpace(c.Store.LegacyFile)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Store.DataDir, p)
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
