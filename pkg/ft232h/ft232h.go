// Package ft232h drives MAX11300 devices through an FTDI FT232H USB-to-SPI bridge.
//
// The MPSSE engine is used half-duplex: a register read is the address byte
// written, then the two data bytes read. Chip selects are plain GPIO outputs on
// the ACBUS (C) pins so several devices can share one bridge.
package ft232h

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/yunginnanet/ft232h"
)

// FT232H represents an FT232H device.
type FT232H struct {
	*ft232h.FT232H
	info DeviceInfo

	mu     sync.Mutex
	csPins []ft232h.CPin
	intPin ft232h.CPin
	hasInt bool

	log zerolog.Logger
}

// Option configures a connection.
type Option func(*FT232H)

// WithLogger sets the logger for pin setup and bus faults.
func WithLogger(l zerolog.Logger) Option {
	return func(ft *FT232H) {
		ft.log = l
	}
}

// ConnectFT232h opens the first FT232H found, or the one matched by desc.
func ConnectFT232h(desc *Descriptor, opts ...Option) (ft *FT232H, err error) {
	ft = &FT232H{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(ft)
	}

	if desc == nil {
		if ft.FT232H, err = ft232h.New(); err != nil {
			return nil, err
		}
		ft.info = ft.Info()
		return ft, nil
	}

	if err = desc.Validate(); err != nil {
		return nil, err
	}
	if ft.FT232H, err = ft232h.OpenMask(desc.Mask()); err != nil {
		return nil, err
	}
	ft.info = ft.Info()
	return ft, nil
}

func (ft *FT232H) vidPid() (vid string, pid string) {
	vid = strconv.Itoa(int(ft.VID()))
	pid = strconv.Itoa(int(ft.PID()))

	b := bytes.NewBuffer(nil)
	h := hex.NewEncoder(b)

	if err := binary.Write(h, binary.BigEndian, ft.VID()); err == nil && len(b.String()) > 5 {
		vid = b.String()[4:]
	}

	b.Reset()

	if err := binary.Write(h, binary.BigEndian, ft.PID()); err == nil && len(b.String()) > 5 {
		pid = b.String()[4:]
	}

	return vid, pid
}

// Info returns a snapshot of the device information for the FT232H device. Read-only.
func (ft *FT232H) Info() DeviceInfo {
	vid, pid := ft.vidPid()
	return DeviceInfo{
		Index:       ft.Index(),
		Serial:      ft.Serial(),
		Description: ft.Desc(),
		ProductID:   pid,
		VendorID:    vid,
		IsOpen:      ft.IsOpen(),
		IsHighSpeed: ft.IsHiSpeed(),
	}
}

// String returns a string representation of the FT232H device. It includes the vendor ID, product ID, and description.
func (ft *FT232H) String() string {
	return fmt.Sprintf("FT232H[%s:%s]: %s", ft.info.VendorID, ft.info.ProductID, ft.Desc())
}
