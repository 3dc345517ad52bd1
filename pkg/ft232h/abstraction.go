package ft232h

import (
	"errors"
	"fmt"

	"github.com/yunginnanet/ft232h"
)

// ErrNoChipSelect is returned by Tx for a chip select with no pin assigned.
var ErrNoChipSelect = errors.New("ft232h: chip select not configured")

// DefaultClock is the SPI clock used when none is configured.
const DefaultClock = 10_000_000

// Configure sets the MPSSE up for SPI mode 0 at clock Hz. Chip selects are not
// handed to the engine; Tx drives them as GPIO.
func (ft *FT232H) Configure(clock uint32) error {
	if clock == 0 {
		clock = DefaultClock
	}
	spiCfg := ft.SPI.GetConfig()
	spiCfg.Clock = clock
	spiCfg.Mode = 0x00000000
	spiCfg.ActiveLow = true

	ft.log.Debug().Any("config", spiCfg).Msg("configuring SPI")
	if err := ft.SPI.Config(spiCfg); err != nil {
		return fmt.Errorf("failed to configure SPI: %w", err)
	}
	return nil
}

// SetCSPins assigns the ACBUS pins, by number 0-7, used as chip selects; chip
// select n of Tx drives pins[n]. Each pin is configured as an output and parked high.
func (ft *FT232H) SetCSPins(pins ...uint) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	cs := make([]ft232h.CPin, 0, len(pins))
	for _, pin := range pins {
		p := ft232h.C(pin)
		if err := ft.GPIO.ConfigPin(p, ft232h.Output, true); err != nil {
			return fmt.Errorf("failed to configure CS pin %s: %w", p.String(), err)
		}
		ft.log.Debug().Str("pin", p.String()).Int("cs", len(cs)).Msg("cs set")
		cs = append(cs, p)
	}
	ft.csPins = cs
	return nil
}

// CSPins returns the configured chip select pins.
func (ft *FT232H) CSPins() []ft232h.CPin {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]ft232h.CPin(nil), ft.csPins...)
}

// SetINTPin configures the ACBUS pin, by number, wired to the open-drain INT output.
func (ft *FT232H) SetINTPin(pin uint) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	ft.intPin = ft232h.C(pin)
	ft.hasInt = true
	ft.log.Debug().Str("pin", ft.intPin.String()).Msg("int set")
	return ft.GPIO.ConfigPin(ft.intPin, ft232h.Input, true)
}

// Interrupted reports whether the INT line is asserted (low).
func (ft *FT232H) Interrupted() (bool, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	if !ft.hasInt {
		return false, fmt.Errorf("INT pin not set")
	}
	hl, err := ft.GPIO.Get(ft.intPin)
	if err != nil {
		return false, fmt.Errorf("failed to read INT pin: %w", err)
	}
	return !hl, nil
}

// Tx implements max11300.Bus.
//
// With a nil r, all of w is written. Otherwise w[0] is written and len(w)-1
// bytes are read into r[1:]; r[0] is zeroed since nothing is clocked in during
// the address byte.
func (ft *FT232H) Tx(cs int, w, r []byte) (err error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	if cs < 0 || cs >= len(ft.csPins) {
		return fmt.Errorf("%w: %d", ErrNoChipSelect, cs)
	}
	if len(w) == 0 {
		return nil
	}
	if r != nil && len(r) != len(w) {
		return fmt.Errorf("read buffer length %d, want %d", len(r), len(w))
	}

	pin := ft.csPins[cs]
	if err = ft.GPIO.Set(pin, false); err != nil {
		return fmt.Errorf("failed to assert CS: %w", err)
	}
	defer func() {
		if cerr := ft.GPIO.Set(pin, true); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to release CS: %w", cerr))
		}
	}()

	if r == nil {
		_, err = ft.SPI.Write(w, false, false)
		return err
	}

	if _, err = ft.SPI.Write(w[:1], false, false); err != nil {
		return err
	}
	b, err := ft.SPI.Read(uint(len(w)-1), false, false)
	if err != nil {
		return err
	}
	if len(b) != len(w)-1 {
		return fmt.Errorf("short read: %d of %d bytes", len(b), len(w)-1)
	}
	r[0] = 0
	copy(r[1:], b)
	return nil
}

// Close releases the SPI engine and the USB device.
func (ft *FT232H) Close() error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.SPI.Close()
}
