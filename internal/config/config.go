// Package config loads the server and client settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/adrg/xdg"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/jaminalder/cube-tic-tac-toe/internal/domain"
	"github.com/jaminalder/cube-tic-tac-toe/internal/selector"
)

// RelativePath is where the config file is searched for below the XDG
// config directories.
const RelativePath = "tictactoe/config.yaml"

// Defaults are the settings of a freshly created game.
type Defaults struct {
	Size       int    `yaml:"size"`
	Shape      string `yaml:"shape"`
	Difficulty string `yaml:"difficulty"`
}

type Config struct {
	Addr          string        `yaml:"addr"`
	Sizes         []int         `yaml:"sizes"`
	Defaults      Defaults      `yaml:"defaults"`
	ComputerDelay time.Duration `yaml:"computer_delay"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	LogLevel      string        `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:  ":8080",
		Sizes: []int{3, 4, 5},
		Defaults: Defaults{
			Size:       3,
			Shape:      domain.Square.String(),
			Difficulty: selector.Random.String(),
		},
		ComputerDelay: time.Second,
		SessionTTL:    30 * time.Minute,
		LogLevel:      logrus.InfoLevel.String(),
	}
}

// Load reads path, or the first config file found in the XDG config
// directories when path is empty. No file at all yields Default.
func Load(path string) (Config, error) {
	if path == "" {
		found, err := xdg.SearchConfigFile(RelativePath)
		if err != nil {
			logrus.Debugf("no config file found, using defaults: %v", err)
			return Default(), nil
		}
		path = found
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config file %s does not exist", path)
		}
		return Config{}, err
	}
	logrus.WithField("path", path).Debug("loading config")
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.Sizes) == 0 {
		return fmt.Errorf("%w: no board sizes configured", domain.ErrConfiguration)
	}
	for _, s := range c.Sizes {
		if s < domain.MinSize {
			return fmt.Errorf("%w: board size %d is below %d", domain.ErrConfiguration, s, domain.MinSize)
		}
	}
	if !c.Allowed(c.Defaults.Size) {
		return fmt.Errorf("%w: default size %d is not one of %v", domain.ErrConfiguration, c.Defaults.Size, c.Sizes)
	}
	if _, err := domain.ParseShape(c.Defaults.Shape); err != nil {
		return err
	}
	if _, err := selector.ParseKind(c.Defaults.Difficulty); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	if c.ComputerDelay < 0 {
		return fmt.Errorf("%w: negative computer delay", domain.ErrConfiguration)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return nil
}

// Allowed reports whether size is one of the configured board sizes.
func (c Config) Allowed(size int) bool {
	for _, s := range c.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// Level is the parsed log level; Validate guarantees it parses.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
