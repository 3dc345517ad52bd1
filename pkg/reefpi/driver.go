package reefpi

import (
	"fmt"
	"math"
	"sync"

	"github.com/reef-pi/hal"
	"github.com/rs/zerolog"

	"github.com/yunginnanet/pixi-max11300/pkg/max11300"
)

const (
	// adcSamples averages 2^3 conversions per ADC result.
	adcSamples = 3
	// adcContinuous is the ADCCTL continuous sweep setting.
	adcContinuous = 0x3

	gpiThresholdV = 1.65
	gpoHighV      = 3.3
)

// Driver is one MAX11300 bound to reef-pi.
type Driver struct {
	dev  *max11300.Device
	meta hal.Metadata
	rng  max11300.Range
	log  zerolog.Logger

	adc map[int]*adcPin
	dac map[int]*dacPin
	gpi map[int]*gpiPin
	gpo map[int]*gpoPin
}

func newDriver(dev *max11300.Device, p portPlan, meta hal.Metadata, log zerolog.Logger) (*Driver, error) {
	d := &Driver{
		dev:  dev,
		meta: meta,
		rng:  p.rng,
		log:  log,
		adc:  make(map[int]*adcPin),
		dac:  make(map[int]*dacPin),
		gpi:  make(map[int]*gpiPin),
		gpo:  make(map[int]*gpoPin),
	}

	// Unassigned ports stay high impedance.
	cfg := max11300.DefaultConfig()
	cfg.DefaultChannel = max11300.ChannelConfig{Mode: max11300.ModeHighZ}
	if err := dev.Initialize(cfg); err != nil {
		return nil, fmt.Errorf("max11300 cs=%d: bring-up failed: %w", p.cs, err)
	}

	var configs []max11300.ChannelConfig
	for _, ch := range sortedPorts(p.adc) {
		configs = append(configs, max11300.ChannelConfig{
			Channel:    ch,
			Mode:       max11300.ModeADC,
			Range:      p.rng,
			ADCControl: adcContinuous,
			ADCSamples: adcSamples,
		})
		d.adc[int(ch)] = &adcPin{d: d, ch: ch, scale: 1}
	}
	for _, ch := range sortedPorts(p.dac) {
		configs = append(configs, max11300.ChannelConfig{Channel: ch, Mode: max11300.ModeDAC, Range: p.rng})
		d.dac[int(ch)] = &dacPin{d: d, ch: ch}
	}
	for _, ch := range sortedPorts(p.gpi) {
		configs = append(configs, max11300.ChannelConfig{
			Channel:  ch,
			Mode:     max11300.ModeGPI,
			Range:    max11300.Range0To10V,
			DACValue: max11300.Range0To10V.VoltsToCode(gpiThresholdV, false),
		})
		d.gpi[int(ch)] = &gpiPin{d: d, ch: ch}
	}
	for _, ch := range sortedPorts(p.gpo) {
		configs = append(configs, max11300.ChannelConfig{
			Channel:  ch,
			Mode:     max11300.ModeGPORegister,
			Range:    max11300.Range0To10V,
			DACValue: max11300.Range0To10V.VoltsToCode(gpoHighV, false),
		})
		d.gpo[int(ch)] = &gpoPin{d: d, ch: ch}
	}

	for _, cc := range configs {
		if err := dev.ConfigureChannel(cc); err != nil {
			return nil, fmt.Errorf("max11300 cs=%d: configure %s as %s: %w", p.cs, cc.Channel, cc.Mode, err)
		}
	}
	d.log.Info().Int("adc", len(d.adc)).Int("dac", len(d.dac)).Int("gpi", len(d.gpi)).Int("gpo", len(d.gpo)).Msg("driver ready")

	return d, nil
}

func (d *Driver) Name() string           { return driverName }
func (d *Driver) Metadata() hal.Metadata { return d.meta }

// Close leaves the bus open; it belongs to whoever passed it to NewDriver.
func (d *Driver) Close() error { return nil }

func (d *Driver) Pins(cap hal.Capability) ([]hal.Pin, error) {
	var pins []hal.Pin
	switch cap {
	case hal.AnalogInput:
		for _, p := range d.AnalogInputPins() {
			pins = append(pins, p)
		}
	case hal.DigitalInput:
		for _, p := range d.DigitalInputPins() {
			pins = append(pins, p)
		}
	case hal.DigitalOutput:
		for _, p := range d.DigitalOutputPins() {
			pins = append(pins, p)
		}
	case hal.PWM:
		for _, p := range d.PWMChannels() {
			pins = append(pins, p)
		}
	default:
		return nil, fmt.Errorf("max11300 cs=%d: unsupported capability: %s", d.dev.ChipSelect(), cap.String())
	}
	return pins, nil
}

func (d *Driver) AnalogInputPins() []hal.AnalogInputPin {
	var out []hal.AnalogInputPin
	for _, ch := range portsOf(d.adc) {
		out = append(out, d.adc[ch])
	}
	return out
}

func (d *Driver) AnalogInputPin(n int) (hal.AnalogInputPin, error) {
	p, ok := d.adc[n]
	if !ok {
		return nil, fmt.Errorf("max11300 cs=%d: port %d is not an analog input", d.dev.ChipSelect(), n)
	}
	return p, nil
}

func (d *Driver) DigitalInputPins() []hal.DigitalInputPin {
	var out []hal.DigitalInputPin
	for _, ch := range portsOf(d.gpi) {
		out = append(out, d.gpi[ch])
	}
	return out
}

func (d *Driver) DigitalInputPin(n int) (hal.DigitalInputPin, error) {
	p, ok := d.gpi[n]
	if !ok {
		return nil, fmt.Errorf("max11300 cs=%d: port %d is not a digital input", d.dev.ChipSelect(), n)
	}
	return p, nil
}

func (d *Driver) DigitalOutputPins() []hal.DigitalOutputPin {
	var out []hal.DigitalOutputPin
	for _, ch := range portsOf(d.gpo) {
		out = append(out, d.gpo[ch])
	}
	return out
}

func (d *Driver) DigitalOutputPin(n int) (hal.DigitalOutputPin, error) {
	p, ok := d.gpo[n]
	if !ok {
		return nil, fmt.Errorf("max11300 cs=%d: port %d is not a digital output", d.dev.ChipSelect(), n)
	}
	return p, nil
}

func (d *Driver) PWMChannels() []hal.PWMChannel {
	var out []hal.PWMChannel
	for _, ch := range portsOf(d.dac) {
		out = append(out, d.dac[ch])
	}
	return out
}

func (d *Driver) PWMChannel(n int) (hal.PWMChannel, error) {
	p, ok := d.dac[n]
	if !ok {
		return nil, fmt.Errorf("max11300 cs=%d: port %d is not a DAC output", d.dev.ChipSelect(), n)
	}
	return p, nil
}

func portsOf[T any](m map[int]T) []int {
	out := make([]int, 0, len(m))
	for ch := 0; ch < max11300.NumChannels; ch++ {
		if _, ok := m[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}

func pinName(cs int, ch max11300.Channel, role string) string {
	return fmt.Sprintf("MAX11300:%d:%d %s", cs, ch, role)
}

// adcPin reports volts, corrected by a linear calibration.
type adcPin struct {
	d  *Driver
	ch max11300.Channel

	mu            sync.Mutex
	scale, offset float64
}

func (p *adcPin) Name() string           { return pinName(p.d.dev.ChipSelect(), p.ch, "ADC") }
func (p *adcPin) Number() int            { return int(p.ch) }
func (p *adcPin) Close() error           { return nil }
func (p *adcPin) Metadata() hal.Metadata { return p.d.meta }

func (p *adcPin) Measure() (float64, error) {
	return p.d.dev.ReadVolts(p.ch, p.d.rng)
}

func (p *adcPin) Read() (float64, error) {
	v, err := p.Measure()
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return v*p.scale + p.offset, nil
}

// Calibrate fits Read to the expected readings. One point sets an offset,
// two or more a least squares line. An empty slice restores the identity.
func (p *adcPin) Calibrate(ms []hal.Measurement) error {
	scale, offset, err := fit(ms)
	if err != nil {
		return fmt.Errorf("%s: %w", p.Name(), err)
	}
	p.mu.Lock()
	p.scale, p.offset = scale, offset
	p.mu.Unlock()
	p.d.log.Debug().Stringer("port", p.ch).Float64("scale", scale).Float64("offset", offset).Msg("calibrated")
	return nil
}

func fit(ms []hal.Measurement) (scale, offset float64, err error) {
	switch len(ms) {
	case 0:
		return 1, 0, nil
	case 1:
		return 1, ms[0].Expected - ms[0].Observed, nil
	}
	var sx, sy, sxx, sxy float64
	n := float64(len(ms))
	for _, m := range ms {
		sx += m.Observed
		sy += m.Expected
		sxx += m.Observed * m.Observed
		sxy += m.Observed * m.Expected
	}
	den := n*sxx - sx*sx
	if math.Abs(den) < 1e-12 {
		return 0, 0, fmt.Errorf("calibration points must have distinct observed values")
	}
	scale = (n*sxy - sx*sy) / den
	offset = (sy - scale*sx) / n
	return scale, offset, nil
}

// dacPin drives its port in percent of the DAC code range.
type dacPin struct {
	d  *Driver
	ch max11300.Channel

	mu   sync.Mutex
	last float64
}

func (p *dacPin) Name() string { return pinName(p.d.dev.ChipSelect(), p.ch, "DAC") }
func (p *dacPin) Number() int  { return int(p.ch) }
func (p *dacPin) Close() error { return nil }

// Set clamps value to [0, 100] percent.
func (p *dacPin) Set(value float64) error {
	value = math.Max(0, math.Min(100, value))
	code := uint16(math.Round(value / 100 * float64(max11300.DataMask)))

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.d.dev.WriteChannel(p.ch, code); err != nil {
		return err
	}
	p.last = value
	return nil
}

func (p *dacPin) Write(state bool) error {
	if state {
		return p.Set(100)
	}
	return p.Set(0)
}

func (p *dacPin) LastState() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last > 0
}

type gpiPin struct {
	d  *Driver
	ch max11300.Channel
}

func (p *gpiPin) Name() string        { return pinName(p.d.dev.ChipSelect(), p.ch, "GPI") }
func (p *gpiPin) Number() int         { return int(p.ch) }
func (p *gpiPin) Close() error        { return nil }
func (p *gpiPin) Read() (bool, error) { return p.d.dev.ReadGPI(p.ch) }

type gpoPin struct {
	d  *Driver
	ch max11300.Channel

	mu   sync.Mutex
	last bool
}

func (p *gpoPin) Name() string { return pinName(p.d.dev.ChipSelect(), p.ch, "GPO") }
func (p *gpoPin) Number() int  { return int(p.ch) }
func (p *gpoPin) Close() error { return nil }

func (p *gpoPin) Write(state bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.d.dev.WriteGPO(p.ch, state); err != nil {
		return err
	}
	p.last = state
	return nil
}

func (p *gpoPin) LastState() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
