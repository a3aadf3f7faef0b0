// Package config holds the engine configuration, read from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/lumen/engine/core"
)

// MaxSpotLights mirrors the size of the spot light array in the lighting
// uniform block.
const MaxSpotLights = 8

type PresentMode string

const (
	PresentModeFIFO      PresentMode = "fifo"
	PresentModeMailbox   PresentMode = "mailbox"
	PresentModeImmediate PresentMode = "immediate"
)

type Application struct {
	Name      string `toml:"name"`
	X         int32  `toml:"x"`
	Y         int32  `toml:"y"`
	Width     uint32 `toml:"width"`
	Height    uint32 `toml:"height"`
	LogLevel  string `toml:"log_level"`
	TargetFPS uint32 `toml:"target_fps"`
}

type Renderer struct {
	ClearColor    [4]float32  `toml:"clear_color"`
	MaxSpotLights int         `toml:"max_spot_lights"`
	AutoAspect    bool        `toml:"auto_aspect"`
	PresentMode   PresentMode `toml:"present_mode"`
	Validation    bool        `toml:"validation"`
}

type Assets struct {
	Root    string `toml:"root"`
	Shaders string `toml:"shaders"`
	Watch   bool   `toml:"watch"`
}

type Config struct {
	Application Application `toml:"application"`
	Renderer    Renderer    `toml:"renderer"`
	Assets      Assets      `toml:"assets"`
}

func Default() *Config {
	return &Config{
		Application: Application{
			Name:     "Lumen",
			X:        100,
			Y:        100,
			Width:    1280,
			Height:   720,
			LogLevel: "info",
		},
		Renderer: Renderer{
			ClearColor:    [4]float32{0, 0, 0.2, 1},
			MaxSpotLights: MaxSpotLights,
			AutoAspect:    true,
			PresentMode:   PresentModeFIFO,
		},
		Assets: Assets{
			Root:    "assets",
			Shaders: "shaders",
		},
	}
}

// Load reads the file at path. Keys missing from the file keep their default
// values; unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a TOML document over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown keys:\n%s", strict.String())
		}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("line %d column %d: %w", row, col, err)
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default
// otherwise. A file that exists but does not parse is still an error.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		core.LogInfo("no configuration at %s, using defaults", path)
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Application.Width == 0 || c.Application.Height == 0 {
		errs = append(errs, fmt.Errorf("application size %dx%d must be positive", c.Application.Width, c.Application.Height))
	}
	if c.Renderer.MaxSpotLights < 0 || c.Renderer.MaxSpotLights > MaxSpotLights {
		errs = append(errs, fmt.Errorf("renderer.max_spot_lights %d outside [0, %d]", c.Renderer.MaxSpotLights, MaxSpotLights))
	}
	switch c.Renderer.PresentMode {
	case PresentModeFIFO, PresentModeMailbox, PresentModeImmediate:
	default:
		errs = append(errs, fmt.Errorf("renderer.present_mode '%s' is not one of fifo, mailbox, immediate", c.Renderer.PresentMode))
	}
	for i, v := range c.Renderer.ClearColor {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("renderer.clear_color[%d] = %g outside [0, 1]", i, v))
		}
	}
	if c.Assets.Root == "" {
		errs = append(errs, errors.New("assets.root is empty"))
	}
	return errors.Join(errs...)
}

// Save writes the configuration as TOML.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
