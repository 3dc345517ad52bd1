// Package spidev provides max11300.Bus implementations on top of the Linux
// spidev driver. Each chip select maps to its own /dev/spidevB.C node.
package spidev

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// MaxClock is the highest SCLK the MAX11300 accepts.
const MaxClock = 20_000_000

// ErrNoChipSelect is returned by Tx for a chip select that was not opened.
var ErrNoChipSelect = errors.New("spidev: chip select not opened")

// PortName returns the spidev node of chip select cs on bus.
func PortName(bus, cs int) string {
	return fmt.Sprintf("/dev/spidev%d.%d", bus, cs)
}

// Opener opens a periph SPI port by name.
type Opener func(name string) (spi.PortCloser, error)

var hostInit = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

func openRegistered(name string) (spi.PortCloser, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return spireg.Open(name)
}

// Periph is a Bus backed by periph.io SPI ports.
type Periph struct {
	mu    sync.Mutex
	ports []spi.PortCloser
	conns []spi.Conn

	open Opener
	log  zerolog.Logger
}

type PeriphOption func(*Periph)

// WithOpener replaces the spireg lookup, mostly for tests.
func WithOpener(o Opener) PeriphOption {
	return func(p *Periph) {
		p.open = o
	}
}

func WithLogger(l zerolog.Logger) PeriphOption {
	return func(p *Periph) {
		p.log = l
	}
}

// OpenPeriph opens one port per name, in chip select order, in SPI mode 0 with
// 8 bit words. hz is capped at MaxClock; 0 selects MaxClock.
func OpenPeriph(names []string, hz int64, opts ...PeriphOption) (*Periph, error) {
	if len(names) == 0 {
		return nil, errors.New("spidev: no ports given")
	}
	if hz <= 0 || hz > MaxClock {
		hz = MaxClock
	}

	p := &Periph{open: openRegistered, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}

	for cs, name := range names {
		port, err := p.open(name)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("open %s: %w", name, err), p.Close())
		}
		c, err := port.Connect(physic.Frequency(hz)*physic.Hertz, spi.Mode0, 8)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("connect %s: %w", name, err), port.Close(), p.Close())
		}
		p.ports = append(p.ports, port)
		p.conns = append(p.conns, c)
		p.log.Debug().Str("port", name).Int("cs", cs).Int64("hz", hz).Msg("spi port opened")
	}
	return p, nil
}

// Tx implements max11300.Bus.
func (p *Periph) Tx(cs int, w, r []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cs < 0 || cs >= len(p.conns) {
		return fmt.Errorf("%w: %d", ErrNoChipSelect, cs)
	}
	return p.conns[cs].Tx(w, r)
}

// Close closes every opened port.
func (p *Periph) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for _, port := range p.ports {
		if err := port.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.ports, p.conns = nil, nil
	return errors.Join(errs...)
}
