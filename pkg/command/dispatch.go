package command

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yunginnanet/pixi-max11300/pkg/max11300"
)

// ErrNoDevice is returned when a command addresses a chip select with no device attached.
var ErrNoDevice = errors.New("command: no device on chip select")

// Result is the outcome of a command. Value holds the read value for read
// commands; temperatures are reported in eighths of a degree.
type Result struct {
	Command  string `json:"command"`
	CS       int    `json:"cs"`
	Value    int    `json:"value"`
	HasValue bool   `json:"has_value"`
}

// Dispatcher runs commands against devices keyed by chip select.
type Dispatcher struct {
	mu      sync.RWMutex
	devices map[int]*max11300.Device
	initCfg max11300.Config
	log     zerolog.Logger
}

type Option func(*Dispatcher)

func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// WithInitConfig sets the bring-up configuration used by Init. The default is
// max11300.DefaultConfig().
func WithInitConfig(cfg max11300.Config) Option {
	return func(d *Dispatcher) {
		d.initCfg = cfg
	}
}

func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		devices: make(map[int]*max11300.Device),
		initCfg: max11300.DefaultConfig(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Attach registers dev under its chip select, replacing any previous device.
func (d *Dispatcher) Attach(dev *max11300.Device) {
	d.mu.Lock()
	d.devices[dev.ChipSelect()] = dev
	d.mu.Unlock()
}

// Device returns the device attached on cs.
func (d *Dispatcher) Device(cs int) (*max11300.Device, error) {
	d.mu.RLock()
	dev, ok := d.devices[cs]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoDevice, cs)
	}
	return dev, nil
}

// ChipSelects returns the attached chip selects in ascending order.
func (d *Dispatcher) ChipSelects() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]int, 0, len(d.devices))
	for cs := range d.devices {
		out = append(out, cs)
	}
	sort.Ints(out)
	return out
}

// Execute runs cmd. Failures are logged and returned.
func (d *Dispatcher) Execute(cmd Command) (Result, error) {
	res := Result{Command: cmd.Name(), CS: cmd.ChipSelect()}

	dev, err := d.Device(cmd.ChipSelect())
	if err != nil {
		d.log.Warn().Err(err).Str("command", cmd.Name()).Msg("command rejected")
		return res, err
	}

	value, hasValue, err := d.execute(dev, cmd)
	if err != nil {
		d.log.Warn().Err(err).Str("command", cmd.Name()).Int("cs", res.CS).Msg("command failed")
		return res, err
	}
	res.Value, res.HasValue = value, hasValue

	ev := d.log.Debug().Str("command", cmd.Name()).Int("cs", res.CS)
	if hasValue {
		ev = ev.Int("value", value)
	}
	ev.Msg("command executed")

	return res, nil
}

func (d *Dispatcher) execute(dev *max11300.Device, cmd Command) (int, bool, error) {
	switch c := cmd.(type) {
	case Init:
		if c.SpeedHz > 0 {
			d.log.Info().Int("cs", c.CS).Int("speed_hz", c.SpeedHz).Msg("spi speed is fixed when the bus is opened")
		}
		return 0, false, dev.Initialize(d.initCfg)
	case ConfigChannel:
		return 0, false, dev.ConfigureChannel(c.Config)
	case ReadChannel:
		v, err := dev.ReadChannel(c.Channel)
		return int(v), true, err
	case WriteChannel:
		return 0, false, dev.WriteChannel(c.Channel, c.Value)
	case ReadRegister:
		v, err := dev.ReadRegister(c.Register)
		return int(v), true, err
	case WriteRegister:
		return 0, false, dev.WriteRegister(c.Register, c.Value)
	case ReadGPI:
		high, err := dev.ReadGPI(c.Channel)
		if high {
			return 1, true, err
		}
		return 0, true, err
	case WriteGPO:
		return 0, false, dev.WriteGPO(c.Channel, c.High)
	case ReadTemperature:
		t, err := dev.ReadTemperature(c.Sensor)
		return int(t * 8), true, err
	case Reset:
		return 0, false, dev.Reset()
	default:
		return 0, false, fmt.Errorf("%w: %T", ErrUnknownSelector, cmd)
	}
}

// Run parses and executes one message line.
func (d *Dispatcher) Run(line string) (Result, error) {
	cmd, err := ParseLine(line)
	if err != nil {
		d.log.Warn().Err(err).Str("line", line).Msg("bad command")
		return Result{}, err
	}
	return d.Execute(cmd)
}
