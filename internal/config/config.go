// Package config loads pixictl settings. Later sources override earlier ones:
// built-in defaults, the YAML file, PIXI_ environment variables, then command
// line flags that were explicitly set.
//
// Environment keys use a double underscore between levels, so
// PIXI_SPI__SPEED_HZ sets spi.speed_hz.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/basicflag"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	"github.com/yunginnanet/pixi-max11300/pkg/max11300"
)

const (
	EnvPrefix = "PIXI_"

	BackendFT232H = "ft232h"
	BackendPeriph = "periph"
	BackendExp    = "exp"
)

var ErrInvalid = errors.New("config: invalid")

type SPI struct {
	Bus         int   `koanf:"bus"`
	ChipSelects []int `koanf:"chip_selects"`
	SpeedHz     int64 `koanf:"speed_hz"`
	// Ports overrides the /dev/spidevB.C names derived from Bus and ChipSelects.
	Ports []string `koanf:"ports"`
}

type FT232H struct {
	Index  int    `koanf:"index"`
	Serial string `koanf:"serial"`
	// CSPins are ACBUS GPIO lines, one per chip select in SPI.ChipSelects order.
	CSPins []uint `koanf:"cs_pins"`
	// INTPin is the ACBUS line wired to INT, or -1.
	INTPin int `koanf:"int_pin"`
}

type Init struct {
	Retries uint64 `koanf:"retries"`
	Spinner bool   `koanf:"spinner"`
}

type Log struct {
	Level string `koanf:"level"`
}

type Device struct {
	Burst                  bool    `koanf:"burst"`
	ThermalShutdown        bool    `koanf:"thermal_shutdown"`
	SeriesResistanceCancel bool    `koanf:"series_resistance_cancel"`
	ADCConversionRate      int     `koanf:"adc_conversion_rate"`
	TempHighC              float64 `koanf:"temp_high_c"`
}

type Config struct {
	Backend string `koanf:"backend"`
	Listen  string `koanf:"listen"`
	SPI     SPI    `koanf:"spi"`
	FT232H  FT232H `koanf:"ft232h"`
	Init    Init   `koanf:"init"`
	Log     Log    `koanf:"log"`
	Device  Device `koanf:"device"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	dc := max11300.DefaultConfig()
	return Config{
		Backend: BackendFT232H,
		Listen:  ":8011",
		SPI: SPI{
			ChipSelects: []int{0},
			SpeedHz:     10_000_000,
		},
		FT232H: FT232H{
			CSPins: []uint{0},
			INTPin: -1,
		},
		Init: Init{
			Retries: 5,
			Spinner: true,
		},
		Log: Log{Level: "info"},
		Device: Device{
			Burst:                  dc.BurstMode,
			ThermalShutdown:        dc.ThermalShutdown,
			SeriesResistanceCancel: dc.SeriesResistanceCancel,
			ADCConversionRate:      dc.ADCConversionRate,
			TempHighC:              dc.TempHighThresholdC,
		},
	}
}

// Loader layers the configuration sources.
type Loader struct {
	k *koanf.Koanf

	// FlagKeys maps flag names to configuration keys. Flags not listed are
	// ignored, as are flags left at their defaults.
	FlagKeys map[string]string
}

func NewLoader(flagKeys map[string]string) *Loader {
	return &Loader{k: koanf.New("."), FlagKeys: flagKeys}
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Load reads every layer and returns the merged result. A missing file at
// path is not an error; an empty path skips the file layer. fset may be nil.
func (l *Loader) Load(path string, fset *flag.FlagSet) (Config, error) {
	var c Config

	if err := l.k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return c, fmt.Errorf("config: defaults: %w", err)
	}

	if path != "" {
		if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return c, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if err := l.k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return c, fmt.Errorf("config: environment: %w", err)
	}

	if fset != nil {
		set := make(map[string]bool)
		fset.Visit(func(f *flag.Flag) { set[f.Name] = true })
		cb := func(name, value string) (string, interface{}) {
			key, ok := l.FlagKeys[name]
			if !ok || !set[name] {
				return "", nil
			}
			return key, value
		}
		if err := l.k.Load(basicflag.ProviderWithValue(fset, ".", cb), nil); err != nil {
			return c, fmt.Errorf("config: flags: %w", err)
		}
	}

	if err := l.k.Unmarshal("", &c); err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	return c, c.Validate()
}

// Sprint renders the merged key/value pairs.
func (l *Loader) Sprint() string {
	return l.k.Sprint()
}

func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendFT232H, BackendPeriph, BackendExp:
	default:
		errs = append(errs, fmt.Errorf("%w: backend %q", ErrInvalid, c.Backend))
	}
	if len(c.SPI.ChipSelects) == 0 {
		errs = append(errs, fmt.Errorf("%w: no chip selects", ErrInvalid))
	}
	if c.SPI.SpeedHz <= 0 {
		errs = append(errs, fmt.Errorf("%w: spi speed %d", ErrInvalid, c.SPI.SpeedHz))
	}
	if len(c.SPI.Ports) > 0 && len(c.SPI.Ports) != len(c.SPI.ChipSelects) {
		errs = append(errs, fmt.Errorf("%w: %d spi ports for %d chip selects", ErrInvalid, len(c.SPI.Ports), len(c.SPI.ChipSelects)))
	}
	if c.Backend == BackendFT232H && len(c.FT232H.CSPins) < len(c.SPI.ChipSelects) {
		errs = append(errs, fmt.Errorf("%w: %d ft232h cs pins for %d chip selects", ErrInvalid, len(c.FT232H.CSPins), len(c.SPI.ChipSelects)))
	}
	return errors.Join(errs...)
}

// DeviceConfig returns the bring-up configuration for every chip.
func (c Config) DeviceConfig() max11300.Config {
	dc := max11300.DefaultConfig()
	dc.BurstMode = c.Device.Burst
	dc.ThermalShutdown = c.Device.ThermalShutdown
	dc.SeriesResistanceCancel = c.Device.SeriesResistanceCancel
	dc.ADCConversionRate = c.Device.ADCConversionRate
	dc.TempHighThresholdC = c.Device.TempHighC
	return dc
}
