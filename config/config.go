package config

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"

	"github.com/shift/systemd-status-leds/led"
)

// ServiceConfig names one systemd unit to monitor plus optional
// per-state colour overrides for its LED.
type ServiceConfig struct {
	Name      string            `yaml:"name"`
	StatesMap map[string]string `yaml:"states_map"`
}

// StripConfig describes the physical strip and the strip wide colour
// table shared by all services.
type StripConfig struct {
	SPIDev        string            `yaml:"spidev"`
	Channels      int               `yaml:"channels"`
	Length        int               `yaml:"length"`
	Hertz         int               `yaml:"hertz"`
	LoadingColour string            `yaml:"loading_colour"`
	Colours       map[string]string `yaml:"colours"`
}

// NightDimConfig enables dimming of the whole strip between sunset and
// sunrise at the configured location.
type NightDimConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Factor    float64 `yaml:"factor"`
}

// HardwareConfig selects the SPI backend.
type HardwareConfig struct {
	GPIOLibrary string `yaml:"gpiolibrary"`
}

// LoggingConfig controls log level, output format and an optional log
// file.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type Config struct {
	Services []ServiceConfig `yaml:"services"`
	Strip    StripConfig     `yaml:"strip"`
	NightDim NightDimConfig  `yaml:"nightdim"`
	Hardware HardwareConfig  `yaml:"hardware"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// Default returns the configuration used when the file omits values.
// The colour table matches the long-standing defaults of the strip.
func Default() Config {
	return Config{
		Strip: StripConfig{
			SPIDev:        "0.0",
			Channels:      led.Channels,
			Length:        5,
			Hertz:         10,
			LoadingColour: "3c3c3c3c",
			Colours: map[string]string{
				"active":       "00ff0000",
				"inactive":     "01010101",
				"reloading":    "11551100",
				"failed":       "55002200",
				"activating":   "00442200",
				"deactivating": "22440000",
			},
		},
		NightDim: NightDimConfig{
			Factor: 0.3,
		},
		Hardware: HardwareConfig{
			GPIOLibrary: "periph.io",
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// Load reads and validates the configuration file. Any validation
// failure is fatal for startup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes yaml content on top of the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration against the physical constraints of
// the strip before anything gets wired up.
func (c *Config) Validate() error {
	if len(c.Services) == 0 {
		return fmt.Errorf("no services configured")
	}
	if len(c.Services) > c.Strip.Length {
		return fmt.Errorf("more services (%d) than LEDs (%d)",
			len(c.Services), c.Strip.Length)
	}
	if c.Strip.Channels != led.Channels {
		return fmt.Errorf("strip.channels must be %d for RGBW, got %d",
			led.Channels, c.Strip.Channels)
	}
	if c.Strip.Hertz <= 0 || c.Strip.Hertz > 1000 {
		return fmt.Errorf("strip.hertz must be between 1 and 1000, got %d",
			c.Strip.Hertz)
	}
	if _, err := led.ParseColor(c.Strip.LoadingColour); err != nil {
		return fmt.Errorf("strip.loading_colour: %w", err)
	}
	for _, state := range sortedKeys(c.Strip.Colours) {
		if _, err := led.ParseColor(c.Strip.Colours[state]); err != nil {
			return fmt.Errorf("strip colour for state %q: %w", state, err)
		}
	}
	seen := make(map[string]bool, len(c.Services))
	for _, svc := range c.Services {
		if svc.Name == "" {
			return fmt.Errorf("service with empty name")
		}
		if seen[svc.Name] {
			return fmt.Errorf("service %q configured twice", svc.Name)
		}
		seen[svc.Name] = true
		for _, state := range sortedKeys(svc.StatesMap) {
			if _, err := led.ParseColor(svc.StatesMap[state]); err != nil {
				return fmt.Errorf("colour for state %q of service %q: %w",
					state, svc.Name, err)
			}
		}
	}
	if c.NightDim.Enabled && (c.NightDim.Factor <= 0 || c.NightDim.Factor >= 1) {
		return fmt.Errorf("nightdim.factor must be between 0 and 1, got %g",
			c.NightDim.Factor)
	}
	return nil
}

// Resolver builds the colour resolver for the configured services.
func (c *Config) Resolver() *led.Resolver {
	overrides := make([]map[string]string, len(c.Services))
	for i, svc := range c.Services {
		overrides[i] = svc.StatesMap
	}
	return led.NewResolver(overrides, c.Strip.Colours)
}

// LoadingColor returns the parsed loading colour. Validate has already
// run, a parse failure here falls back to off.
func (c *Config) LoadingColor() led.Color {
	color, err := led.ParseColor(c.Strip.LoadingColour)
	if err != nil {
		return led.Color{}
	}
	return color
}

// RefreshPeriodMillis derives the render period from the refresh rate,
// integer millisecond resolution.
func (c *Config) RefreshPeriodMillis() int {
	return 1000 / c.Strip.Hertz
}

func sortedKeys(m map[string]string) []string {
	keys := maps.Keys(m)
	sort.Strings(keys)
	return keys
}
