package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/yunginnanet/pixi-max11300/internal/config"
	"github.com/yunginnanet/pixi-max11300/pkg/ft232h"
	"github.com/yunginnanet/pixi-max11300/pkg/max11300"
	"github.com/yunginnanet/pixi-max11300/pkg/spidev"
)

// chipSelects translates configured chip select numbers to positions in a
// backend's port or pin list.
type chipSelects struct {
	bus max11300.Bus
	pos map[int]int
}

func newChipSelects(bus max11300.Bus, cs []int) chipSelects {
	pos := make(map[int]int, len(cs))
	for i, n := range cs {
		pos[n] = i
	}
	return chipSelects{bus: bus, pos: pos}
}

func (c chipSelects) Tx(cs int, w, r []byte) error {
	i, ok := c.pos[cs]
	if !ok {
		return fmt.Errorf("chip select %d not configured", cs)
	}
	return c.bus.Tx(i, w, r)
}

func portNames(c config.Config) []string {
	if len(c.SPI.Ports) > 0 {
		return c.SPI.Ports
	}
	names := make([]string, 0, len(c.SPI.ChipSelects))
	for _, cs := range c.SPI.ChipSelects {
		names = append(names, spidev.PortName(c.SPI.Bus, cs))
	}
	return names
}

// openBus opens the configured backend. The returned closer releases it.
func openBus(c config.Config) (max11300.Bus, io.Closer, error) {
	switch c.Backend {
	case config.BackendFT232H:
		desc, err := ft232h.Select(c.FT232H.Index, c.FT232H.Serial)
		if err != nil {
			return nil, nil, err
		}
		ft, err := ft232h.ConnectFT232h(&desc, ft232h.WithLogger(log))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to FT232H: %w", err)
		}
		log.Info().Any("info", ft.Info()).Msgf("connected to FT232H: %s", ft)

		if err = ft.SetCSPins(c.FT232H.CSPins[:len(c.SPI.ChipSelects)]...); err != nil {
			return nil, nil, errors.Join(err, ft.Close())
		}
		if c.FT232H.INTPin >= 0 {
			if err = ft.SetINTPin(uint(c.FT232H.INTPin)); err != nil {
				return nil, nil, errors.Join(err, ft.Close())
			}
		}
		if err = ft.Configure(uint32(c.SPI.SpeedHz)); err != nil {
			return nil, nil, errors.Join(err, ft.Close())
		}
		return newChipSelects(ft, c.SPI.ChipSelects), ft, nil

	case config.BackendPeriph:
		p, err := spidev.OpenPeriph(portNames(c), c.SPI.SpeedHz, spidev.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		return newChipSelects(p, c.SPI.ChipSelects), p, nil

	case config.BackendExp:
		e, err := spidev.OpenExp(portNames(c), c.SPI.SpeedHz)
		if err != nil {
			return nil, nil, err
		}
		return newChipSelects(e, c.SPI.ChipSelects), e, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", c.Backend)
}
