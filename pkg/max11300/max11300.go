package max11300

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Register is an 8-bit register address in [0x00, 0x73].
type Register byte

// Bus is a full-duplex SPI bus with one or more chip-select lines.
type Bus interface {
	// Tx asserts chip select cs, shifts out w and shifts len(w) bytes into r.
	// r is nil for register writes and the same length as w for reads.
	Tx(cs int, w, r []byte) error
}

// Device provides control over one MAX11300 (PIXI) on one chip-select line.
//
// A Device owns its frame buffers and serializes every bus transaction, so the
// read-modify-write of the device control register and the multi-write channel
// configuration sequences cannot interleave on the same handle. Two handles
// sharing a chip select are not coordinated with each other.
type Device struct {
	mu  sync.RWMutex
	bus Bus
	cs  int

	tx [frameLen]byte
	rx [frameLen]byte

	// Last read or written register states (for reference or debugging)
	regLR [NumRegisters]uint16
	regLW [NumRegisters]uint16
	seen  [NumRegisters]bool

	log zerolog.Logger
}

// Option configures a Device at construction.
type Option func(*Device)

// WithLogger sets the logger used for register traffic (Trace) and bring-up steps (Debug).
func WithLogger(l zerolog.Logger) Option {
	return func(d *Device) {
		d.log = l
	}
}

// New constructs a Device talking to bus on chip select cs.
func New(bus Bus, cs int, opts ...Option) *Device {
	d := &Device{
		bus: bus,
		cs:  cs,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With().Int("cs", cs).Logger()
	return d
}

// ChipSelect returns the chip-select line of the device.
func (d *Device) ChipSelect() int {
	return d.cs
}

// Config represents the bring-up parameters.
type Config struct {
	BurstMode       bool
	ThermalShutdown bool

	// ADCConversionRate is one of the ADCConv* values, or -1 to keep the power-on default.
	ADCConversionRate int

	// SeriesResistanceCancel sets RS_CANCEL when true and clears it otherwise.
	SeriesResistanceCancel bool

	// TempHighThresholdC is written to the internal sensor high threshold.
	TempHighThresholdC float64

	// The low threshold is left at its power-on default of 0 degC unless SetTempLowThreshold is set.
	SetTempLowThreshold bool
	TempLowThresholdC   float64

	// TempSensors is the TMPCTL mask of sensors to enable.
	TempSensors uint16

	// DefaultChannel is applied to every channel; its Channel field is ignored.
	DefaultChannel ChannelConfig
}

// DefaultConfig provides the stock bring-up: burst mode and thermal shutdown on,
// series resistance cancellation off, 70 degC internal high threshold, all three
// temperature sensors on, and every port a 0-10V DAC at code 0.
func DefaultConfig() Config {
	return Config{
		BurstMode:          true,
		ThermalShutdown:    true,
		ADCConversionRate:  -1,
		TempHighThresholdC: 70,
		TempSensors:        CtrlTMPCTLINT | CtrlTMPCTLEXT1 | CtrlTMPCTLEXT2,
		DefaultChannel: ChannelConfig{
			Mode:  ModeDAC,
			Range: Range0To10V,
		},
	}
}

// Initialize verifies the device identity and applies cfg.
//
// If the identity check fails, ErrDeviceNotFound is returned and nothing is written.
// Any later failure is returned wrapped in ErrPartialConfiguration; earlier writes are
// not rolled back.
func (d *Device) Initialize(cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, err := d.readRegister(RegDeviceID)
	if err != nil {
		return err
	}
	if id != ExpectedDeviceID {
		return fmt.Errorf("%w: id 0x%04X, expected 0x%04X", ErrDeviceNotFound, id, ExpectedDeviceID)
	}
	d.log.Debug().Uint16("id", id).Msg("device identified")

	partial := func(step string, err error) error {
		return fmt.Errorf("%w: %s: %w", ErrPartialConfiguration, step, err)
	}

	var set, clr uint16
	if cfg.BurstMode {
		set |= CtrlBRST
	} else {
		clr |= CtrlBRST
	}
	if cfg.ThermalShutdown {
		set |= CtrlTHSHDN
	} else {
		clr |= CtrlTHSHDN
	}
	if cfg.ADCConversionRate >= 0 {
		clr |= CtrlADCCONV
		set |= (uint16(cfg.ADCConversionRate) << 4) & CtrlADCCONV
	}
	if err = d.modifyRegister(RegDeviceCtrl, clr, set); err != nil {
		return partial("burst/thermal shutdown", err)
	}

	if cfg.SeriesResistanceCancel {
		err = d.modifyRegister(RegDeviceCtrl, 0, CtrlRSCANCEL)
	} else {
		err = d.modifyRegister(RegDeviceCtrl, CtrlRSCANCEL, 0)
	}
	if err != nil {
		return partial("series resistance cancellation", err)
	}

	if err = d.writeRegister(RegTempIntHighThreshold, EncodeTemperature(cfg.TempHighThresholdC)); err != nil {
		return partial("temperature high threshold", err)
	}
	if cfg.SetTempLowThreshold {
		if err = d.writeRegister(RegTempIntLowThreshold, EncodeTemperature(cfg.TempLowThresholdC)); err != nil {
			return partial("temperature low threshold", err)
		}
	}

	if err = d.modifyRegister(RegDeviceCtrl, 0, cfg.TempSensors&CtrlTMPCTL); err != nil {
		return partial("temperature sensors", err)
	}

	d.log.Debug().Msg("device control configured, setting up channels")

	for ch := Channel(0); ch < NumChannels; ch++ {
		cc := cfg.DefaultChannel
		cc.Channel = ch
		if err = d.configureChannel(cc); err != nil {
			return partial(fmt.Sprintf("channel %d", ch), err)
		}
	}

	d.log.Debug().Msg("initialized")
	return nil
}

// Reset issues a software reset through the RESET bit of the device control register.
// All registers return to their power-on values; the cached register states are cleared.
func (d *Device) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.modifyRegister(RegDeviceCtrl, 0, CtrlRESET); err != nil {
		return err
	}
	d.regLR = [NumRegisters]uint16{}
	d.regLW = [NumRegisters]uint16{}
	d.seen = [NumRegisters]bool{}
	return nil
}

// Close closes the underlying bus if it can be closed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.bus.(io.Closer)
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		return errors.Join(ErrTransport, err)
	}
	return nil
}
