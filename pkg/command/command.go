// Package command turns textual selector messages, such as "spi_write 0 3 2048",
// into typed device operations and runs them against attached devices.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/yunginnanet/pixi-max11300/pkg/max11300"
)

var (
	ErrUnknownSelector = errors.New("command: unknown selector")
	ErrArgs            = errors.New("command: bad arguments")
)

// Command is one of the operation types declared in this package.
type Command interface {
	// Name is the canonical selector of the command.
	Name() string
	// ChipSelect is the device the command addresses.
	ChipSelect() int
}

// Target is the chip select a command addresses.
type Target struct{ CS int }

func (t Target) ChipSelect() int { return t.CS }

// Init runs the bring-up sequence. SpeedHz is carried over from "spi_init"
// for logging; the bus clock is fixed when the bus is opened.
type Init struct {
	Target
	SpeedHz int
}

type ConfigChannel struct {
	Target
	Config max11300.ChannelConfig
}

type ReadChannel struct {
	Target
	Channel max11300.Channel
}

type WriteChannel struct {
	Target
	Channel max11300.Channel
	Value   uint16
}

type ReadRegister struct {
	Target
	Register max11300.Register
}

type WriteRegister struct {
	Target
	Register max11300.Register
	Value    uint16
}

type ReadGPI struct {
	Target
	Channel max11300.Channel
}

type WriteGPO struct {
	Target
	Channel max11300.Channel
	High    bool
}

type ReadTemperature struct {
	Target
	Sensor max11300.Sensor
}

type Reset struct {
	Target
}

func (Init) Name() string            { return "init" }
func (ConfigChannel) Name() string   { return "config_channel" }
func (ReadChannel) Name() string     { return "read_channel" }
func (WriteChannel) Name() string    { return "write_channel" }
func (ReadRegister) Name() string    { return "read_register" }
func (WriteRegister) Name() string   { return "write_register" }
func (ReadGPI) Name() string         { return "read_gpi" }
func (WriteGPO) Name() string        { return "write_gpo" }
func (ReadTemperature) Name() string { return "read_temperature" }
func (Reset) Name() string           { return "reset" }

// arity checks len(args) is between lo and hi inclusive.
func arity(sel string, args []int, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrArgs, sel, lo, len(args))
		}
		return fmt.Errorf("%w: %s takes %d to %d arguments, got %d", ErrArgs, sel, lo, hi, len(args))
	}
	return nil
}

func u16(sel, what string, v int) (uint16, error) {
	if v < 0 || v > 0xFFFF {
		return 0, fmt.Errorf("%w: %s: %s %d out of range", ErrArgs, sel, what, v)
	}
	return uint16(v), nil
}

func u8(sel, what string, v int) (uint8, error) {
	if v < 0 || v > 0xFF {
		return 0, fmt.Errorf("%w: %s: %s %d out of range", ErrArgs, sel, what, v)
	}
	return uint8(v), nil
}

func cs(sel string, v int) (Target, error) {
	if v < 0 {
		return Target{}, fmt.Errorf("%w: %s: chip select %d", ErrArgs, sel, v)
	}
	return Target{CS: v}, nil
}

// Decode builds a Command from a selector and its integer arguments. The first
// argument is always the chip select, except for "analogRead" with a single
// argument, which reads that channel on chip select 0.
//
// Accepted selectors, with aliases:
//
//	init, spi_init                  [cs [speed]]
//	config_channel                  cs ch mode [dac [range [adcctl [samples [port]]]]]
//	read_channel, spi_read          cs ch
//	analogRead                      [cs] ch
//	write_channel, spi_write        cs ch value
//	read_register                   cs addr
//	write_register                  cs addr value
//	read_gpi                        cs ch
//	write_gpo                       cs ch level
//	read_temperature                cs sensor
//	reset                           cs
//
// Range checks on channels and modes are left to the device, which reports
// max11300.ErrInvalidChannel.
func Decode(selector string, args []int) (Command, error) {
	sel := selector
	switch sel {
	case "init", "spi_init":
		if err := arity(sel, args, 0, 2); err != nil {
			return nil, err
		}
		c := Init{}
		if len(args) > 0 {
			t, err := cs(sel, args[0])
			if err != nil {
				return nil, err
			}
			c.Target = t
		}
		if len(args) > 1 {
			c.SpeedHz = args[1]
		}
		return c, nil

	case "config_channel":
		if err := arity(sel, args, 3, 8); err != nil {
			return nil, err
		}
		t, err := cs(sel, args[0])
		if err != nil {
			return nil, err
		}
		vals := make([]int, 8)
		copy(vals, args)
		dac, err := u16(sel, "dac value", vals[3])
		if err != nil {
			return nil, err
		}
		var fields [6]uint8
		for i, f := range []struct {
			what string
			arg  int
		}{
			{"channel", 1}, {"mode", 2}, {"range", 4},
			{"adc control", 5}, {"samples", 6}, {"associated port", 7},
		} {
			if fields[i], err = u8(sel, f.what, vals[f.arg]); err != nil {
				return nil, err
			}
		}
		return ConfigChannel{Target: t, Config: max11300.ChannelConfig{
			Channel:        max11300.Channel(fields[0]),
			Mode:           max11300.Mode(fields[1]),
			Range:          max11300.Range(fields[2]),
			DACValue:       dac,
			ADCControl:     fields[3],
			ADCSamples:     fields[4],
			AssociatedPort: max11300.Channel(fields[5]),
		}}, nil

	case "analogRead":
		if len(args) == 1 {
			args = []int{0, args[0]}
		}
		fallthrough
	case "read_channel", "spi_read":
		if err := arity(sel, args, 2, 2); err != nil {
			return nil, err
		}
		t, err := cs(sel, args[0])
		if err != nil {
			return nil, err
		}
		ch, err := u8(sel, "channel", args[1])
		if err != nil {
			return nil, err
		}
		return ReadChannel{Target: t, Channel: max11300.Channel(ch)}, nil

	case "write_channel", "spi_write":
		if err := arity(sel, args, 3, 3); err != nil {
			return nil, err
		}
		t, err := cs(sel, args[0])
		if err != nil {
			return nil, err
		}
		ch, err := u8(sel, "channel", args[1])
		if err != nil {
			return nil, err
		}
		v, err := u16(sel, "value", args[2])
		if err != nil {
			return nil, err
		}
		return WriteChannel{Target: t, Channel: max11300.Channel(ch), Value: v}, nil

	case "read_register":
		if err := arity(sel, args, 2, 2); err != nil {
			return nil, err
		}
		t, err := cs(sel, args[0])
		if err != nil {
			return nil, err
		}
		reg, err := u8(sel, "register", args[1])
		if err != nil {
			return nil, err
		}
		return ReadRegister{Target: t, Register: max11300.Register(reg)}, nil

	case "write_register":
		if err := arity(sel, args, 3, 3); err != nil {
			return nil, err
		}
		t, err := cs(sel, args[0])
		if err != nil {
			return nil, err
		}
		reg, err := u8(sel, "register", args[1])
		if err != nil {
			return nil, err
		}
		v, err := u16(sel, "value", args[2])
		if err != nil {
			return nil, err
		}
		return WriteRegister{Target: t, Register: max11300.Register(reg), Value: v}, nil

	case "read_gpi", "write_gpo":
		n := 2
		if sel == "write_gpo" {
			n = 3
		}
		if err := arity(sel, args, n, n); err != nil {
			return nil, err
		}
		t, err := cs(sel, args[0])
		if err != nil {
			return nil, err
		}
		ch, err := u8(sel, "channel", args[1])
		if err != nil {
			return nil, err
		}
		if sel == "read_gpi" {
			return ReadGPI{Target: t, Channel: max11300.Channel(ch)}, nil
		}
		return WriteGPO{Target: t, Channel: max11300.Channel(ch), High: args[2] != 0}, nil

	case "read_temperature":
		if err := arity(sel, args, 2, 2); err != nil {
			return nil, err
		}
		t, err := cs(sel, args[0])
		if err != nil {
			return nil, err
		}
		s, err := u8(sel, "sensor", args[1])
		if err != nil {
			return nil, err
		}
		return ReadTemperature{Target: t, Sensor: max11300.Sensor(s)}, nil

	case "reset":
		if err := arity(sel, args, 1, 1); err != nil {
			return nil, err
		}
		t, err := cs(sel, args[0])
		if err != nil {
			return nil, err
		}
		return Reset{Target: t}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownSelector, selector)
}

// ParseLine decodes a whitespace separated message such as "spi_write 0 3 2048".
// Integer arguments may use 0x/0o/0b prefixes. A trailing ';' is ignored.
func ParseLine(line string) (Command, error) {
	fields := strings.Fields(strings.TrimSuffix(strings.TrimSpace(line), ";"))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrArgs)
	}
	args := make([]int, 0, len(fields)-1)
	for _, f := range fields[1:] {
		n, err := strconv.ParseInt(f, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %q is not an integer", ErrArgs, fields[0], f)
		}
		args = append(args, int(n))
	}
	return Decode(fields[0], args)
}
