// Package reefpi integrates a MAX11300 into reef-pi's HAL.
//
// One driver instance owns one chip select. Ports are assigned to a role at
// construction time: ADC ports become analog inputs reporting volts, DAC ports
// become PWM channels driven in percent of full scale, and GPI/GPO ports become
// digital pins. The hardware resource passed to NewDriver must be a
// max11300.Bus.
package reefpi

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/reef-pi/hal"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yunginnanet/pixi-max11300/pkg/max11300"
)

const (
	driverName = "max11300"

	paramChipSelect = "ChipSelect"
	paramADCPorts   = "ADCPorts"
	paramDACPorts   = "DACPorts"
	paramGPIPorts   = "GPIPorts"
	paramGPOPorts   = "GPOPorts"
	paramRange      = "Range"
	paramDebug      = "Debug"
)

type factory struct {
	meta       hal.Metadata
	parameters []hal.ConfigParameter
}

var (
	f    *factory
	once sync.Once
)

// Factory returns the reef-pi driver factory for the MAX11300.
func Factory() hal.DriverFactory {
	once.Do(func() {
		f = &factory{
			meta: hal.Metadata{
				Name:        driverName,
				Description: "MAX11300 PIXI 20-port mixed-signal I/O over SPI",
				Capabilities: []hal.Capability{
					hal.AnalogInput,
					hal.DigitalInput,
					hal.DigitalOutput,
					hal.PWM,
				},
			},
			parameters: []hal.ConfigParameter{
				{Name: paramChipSelect, Type: hal.Integer, Order: 0, Default: 0},
				{Name: paramADCPorts, Type: hal.String, Order: 1, Default: ""},
				{Name: paramDACPorts, Type: hal.String, Order: 2, Default: ""},
				{Name: paramGPIPorts, Type: hal.String, Order: 3, Default: ""},
				{Name: paramGPOPorts, Type: hal.String, Order: 4, Default: ""},
				{Name: paramRange, Type: hal.Integer, Order: 5, Default: int(max11300.Range0To10V)},
				{Name: paramDebug, Type: hal.Boolean, Order: 6, Default: false},
			},
		}
	})
	return f
}

func (f *factory) Metadata() hal.Metadata               { return f.meta }
func (f *factory) GetParameters() []hal.ConfigParameter { return f.parameters }

// parsePorts accepts a comma separated list such as "0, 3,19". Empty means none.
func parsePorts(v interface{}) ([]max11300.Channel, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("must be a comma separated list of ports, got %T", v)
	}
	var out []max11300.Channel
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.ParseUint(field, 10, 8)
		if err != nil || !max11300.Channel(n).Valid() {
			return nil, fmt.Errorf("invalid port %q (must be 0..19)", field)
		}
		out = append(out, max11300.Channel(n))
	}
	return out, nil
}

type portPlan struct {
	cs       int
	rng      max11300.Range
	adc, dac []max11300.Channel
	gpi, gpo []max11300.Channel
	debug    bool
}

func (f *factory) plan(params map[string]interface{}) (portPlan, map[string][]string) {
	failures := make(map[string][]string)
	p := portPlan{rng: max11300.Range0To10V}

	if v, ok := params[paramChipSelect]; ok {
		cs, ok := hal.ConvertToInt(v)
		if !ok || cs < 0 {
			failures[paramChipSelect] = append(failures[paramChipSelect], "must be a non-negative integer")
		}
		p.cs = cs
	}

	if v, ok := params[paramRange]; ok {
		r, ok := hal.ConvertToInt(v)
		if !ok {
			failures[paramRange] = append(failures[paramRange], "must be an integer")
		} else if _, _, valid := max11300.Range(r).Bounds(); !valid {
			failures[paramRange] = append(failures[paramRange], fmt.Sprintf("%d is not a voltage range", r))
		}
		p.rng = max11300.Range(r)
	}

	if v, ok := params[paramDebug]; ok {
		b, ok := v.(bool)
		if !ok {
			failures[paramDebug] = append(failures[paramDebug], "must be boolean")
		}
		p.debug = b
	}

	seen := make(map[max11300.Channel]string)
	for _, role := range []struct {
		name string
		dst  *[]max11300.Channel
	}{
		{paramADCPorts, &p.adc},
		{paramDACPorts, &p.dac},
		{paramGPIPorts, &p.gpi},
		{paramGPOPorts, &p.gpo},
	} {
		ports, err := parsePorts(params[role.name])
		if err != nil {
			failures[role.name] = append(failures[role.name], err.Error())
			continue
		}
		for _, ch := range ports {
			if other, dup := seen[ch]; dup {
				failures[role.name] = append(failures[role.name], fmt.Sprintf("port %d already assigned in %s", ch, other))
				continue
			}
			seen[ch] = role.name
			*role.dst = append(*role.dst, ch)
		}
	}

	if len(seen) == 0 && len(failures) == 0 {
		failures[paramDACPorts] = append(failures[paramDACPorts], "at least one port must be assigned")
	}

	return p, failures
}

func (f *factory) ValidateParameters(params map[string]interface{}) (bool, map[string][]string) {
	_, failures := f.plan(params)
	return len(failures) == 0, failures
}

func (f *factory) NewDriver(params map[string]interface{}, hardwareResources interface{}) (hal.Driver, error) {
	p, failures := f.plan(params)
	if len(failures) > 0 {
		return nil, errors.New(hal.ToErrorString(failures))
	}

	bus, ok := hardwareResources.(max11300.Bus)
	if !ok {
		return nil, fmt.Errorf("max11300: expected max11300.Bus as hardware resource, got %T", hardwareResources)
	}

	logger := zerolog.Nop()
	if p.debug {
		logger = log.Logger.With().Str("driver", driverName).Logger()
	}

	return newDriver(max11300.New(bus, p.cs, max11300.WithLogger(logger)), p, f.meta, logger)
}

func sortedPorts(ports []max11300.Channel) []max11300.Channel {
	out := append([]max11300.Channel(nil), ports...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
