package spidev

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/io/spi"
)

// Exp is a Bus backed by golang.org/x/exp/io/spi devfs devices. It has no
// dependency on the periph host drivers.
type Exp struct {
	mu   sync.Mutex
	devs []*spi.Device
}

// OpenExp opens each spidev node in chip select order, in SPI mode 0.
func OpenExp(nodes []string, hz int64) (*Exp, error) {
	if len(nodes) == 0 {
		return nil, errors.New("spidev: no devices given")
	}
	if hz <= 0 || hz > MaxClock {
		hz = MaxClock
	}

	e := &Exp{}
	for _, node := range nodes {
		d, err := spi.Open(&spi.Devfs{Dev: node, Mode: spi.Mode0, MaxSpeed: hz})
		if err != nil {
			return nil, errors.Join(fmt.Errorf("open %s: %w", node, err), e.Close())
		}
		if err = d.SetBitsPerWord(8); err != nil {
			return nil, errors.Join(fmt.Errorf("configure %s: %w", node, err), d.Close(), e.Close())
		}
		e.devs = append(e.devs, d)
	}
	return e, nil
}

// Tx implements max11300.Bus.
func (e *Exp) Tx(cs int, w, r []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cs < 0 || cs >= len(e.devs) {
		return fmt.Errorf("%w: %d", ErrNoChipSelect, cs)
	}
	return e.devs[cs].Tx(w, r)
}

func (e *Exp) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for _, d := range e.devs {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.devs = nil
	return errors.Join(errs...)
}
