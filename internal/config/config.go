// Package config loads the executable paths and timeouts used to drive the
// translator and solver binaries. Missing files fall back to defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

const FileName = "config.json"

type Program struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

type Config struct {
	Translator   Program       `mapstructure:"translator"`
	Solver       Program       `mapstructure:"solver"`
	WorkDir      string        `mapstructure:"workDir"`
	RoundTimeout time.Duration `mapstructure:"roundTimeout"`
	GracePeriod  time.Duration `mapstructure:"gracePeriod"`
	LogLevel     string        `mapstructure:"logLevel"`
	MetricsAddr  string        `mapstructure:"metricsAddr"`
}

func Default() Config {
	return Config{
		Translator:   Program{Command: "touistc"},
		Solver:       Program{Command: "refsolver"},
		WorkDir:      os.TempDir(),
		RoundTimeout: 30 * time.Second,
		GracePeriod:  2 * time.Second,
		LogLevel:     "info",
	}
}

// Load reads a YAML or JSON file (chosen by extension) on top of Default().
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	config := Default()
	bytes, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return config, fmt.Errorf("cannot read config file: %w", err)
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(bytes, &raw)
	default:
		err = yaml.Unmarshal(bytes, &raw)
	}
	if err != nil {
		return config, fmt.Errorf("cannot parse config file %v: %w", path, err)
	}

	if err := decode(raw, &config); err != nil {
		return config, fmt.Errorf("invalid config file %v: %w", path, err)
	}
	return config, config.Validate()
}

func decode(raw map[string]any, config *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           config,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// secondsToDurationHookFunc reads bare numbers as seconds, so that
// "roundTimeout": 30 is not taken as 30ns.
func secondsToDurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch value := data.(type) {
		case int:
			return time.Duration(value) * time.Second, nil
		case int64:
			return time.Duration(value) * time.Second, nil
		case uint64:
			return time.Duration(value) * time.Second, nil
		case float64:
			return time.Duration(value * float64(time.Second)), nil
		}
		return data, nil
	}
}

func (config Config) Validate() error {
	if config.Translator.Command == "" {
		return errors.New("translator command must not be empty")
	} else if config.Solver.Command == "" {
		return errors.New("solver command must not be empty")
	} else if config.RoundTimeout <= 0 {
		return fmt.Errorf("roundTimeout must be positive: %v", config.RoundTimeout)
	} else if config.GracePeriod <= 0 {
		return fmt.Errorf("gracePeriod must be positive: %v", config.GracePeriod)
	}
	return nil
}

// DefaultPath returns config.json next to the running executable.
func DefaultPath() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("cannot determine executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(execPath), FileName), nil
}
