// Package pixitest provides a register-level MAX11300 simulator that satisfies
// max11300.Bus, for testing code that drives the chip without hardware.
package pixitest

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// DeviceID is the value of register 0x00 after power-on.
	DeviceID uint16 = 0x0424

	NumRegisters = 0x74

	regDeviceID   = 0x00
	regDeviceCtrl = 0x10
	regADCData    = 0x40
	regDACData    = 0x60
	numPorts      = 20

	ctrlReset uint16 = 0x8000
	dataMask  uint16 = 0x0FFF
)

// ErrClosed is returned by Tx after Close.
var ErrClosed = errors.New("pixitest: bus closed")

// Op is one decoded register transaction.
type Op struct {
	Write bool
	CS    int
	Addr  byte
	Value uint16
}

func (o Op) String() string {
	if o.Write {
		return fmt.Sprintf("cs%d W 0x%02X=0x%04X", o.CS, o.Addr, o.Value)
	}
	return fmt.Sprintf("cs%d R 0x%02X=0x%04X", o.CS, o.Addr, o.Value)
}

// W and R build expected Ops on chip select 0.
func W(addr byte, value uint16) Op { return Op{Write: true, Addr: addr, Value: value} }
func R(addr byte, value uint16) Op { return Op{Addr: addr, Value: value} }

// Chip simulates the register file of one device.
//
// Writes to a DAC data register are mirrored, masked to 12 bits, into the ADC
// data register of the same port when Loopback is set. Writing the RESET bit of
// device control returns every register to its power-on value.
type Chip struct {
	mu sync.Mutex

	Regs     [NumRegisters]uint16
	Loopback bool

	// FailOn, when set, is consulted before every transaction; a non-nil return
	// fails the transfer and leaves the registers untouched.
	FailOn func(op Op) error

	ops    []Op
	frames [][]byte
	closed bool
}

// New returns a powered-on Chip with loopback enabled.
func New() *Chip {
	c := &Chip{Loopback: true}
	c.powerOn()
	return c
}

func (c *Chip) powerOn() {
	c.Regs = [NumRegisters]uint16{}
	c.Regs[regDeviceID] = DeviceID
}

// Tx implements max11300.Bus.
func (c *Chip) Tx(cs int, w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if len(w) != 3 {
		return fmt.Errorf("pixitest: frame length %d, want 3", len(w))
	}
	if r != nil && len(r) != len(w) {
		return fmt.Errorf("pixitest: read buffer length %d, want %d", len(r), len(w))
	}

	c.frames = append(c.frames, append([]byte(nil), w...))

	op := Op{
		Write: w[0]&1 == 0,
		CS:    cs,
		Addr:  w[0] >> 1,
	}
	if op.Write {
		op.Value = uint16(w[1])<<8 | uint16(w[2])
	} else if op.Addr < NumRegisters {
		op.Value = c.Regs[op.Addr]
	}

	if c.FailOn != nil {
		if err := c.FailOn(op); err != nil {
			return err
		}
	}

	c.ops = append(c.ops, op)

	if !op.Write {
		if r != nil {
			r[0] = 0
			r[1] = byte(op.Value >> 8)
			r[2] = byte(op.Value)
		}
		return nil
	}

	c.write(op.Addr, op.Value)
	return nil
}

func (c *Chip) write(addr byte, v uint16) {
	switch {
	case addr >= NumRegisters, addr == regDeviceID:
		// read-only or unmapped
	case addr == regDeviceCtrl && v&ctrlReset != 0:
		c.powerOn()
	case addr >= regDACData && addr < regDACData+numPorts:
		c.Regs[addr] = v
		if c.Loopback {
			c.Regs[regADCData+(addr-regDACData)] = v & dataMask
		}
	default:
		c.Regs[addr] = v
	}
}

// Ops returns a copy of every transaction seen since the last ClearOps.
func (c *Chip) Ops() []Op {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Op(nil), c.ops...)
}

// Writes returns only the write transactions.
func (c *Chip) Writes() []Op {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Op
	for _, op := range c.ops {
		if op.Write {
			out = append(out, op)
		}
	}
	return out
}

// Frames returns the raw transmitted frames.
func (c *Chip) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *Chip) ClearOps() {
	c.mu.Lock()
	c.ops = nil
	c.frames = nil
	c.mu.Unlock()
}

// Reg returns the current value of a register.
func (c *Chip) Reg(addr byte) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if addr >= NumRegisters {
		return 0
	}
	return c.Regs[addr]
}

// SetReg sets a register directly, without recording a transaction.
func (c *Chip) SetReg(addr byte, v uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if addr < NumRegisters {
		c.Regs[addr] = v
	}
}

// SetFailOn replaces FailOn while the chip may be in use.
func (c *Chip) SetFailOn(f func(op Op) error) {
	c.mu.Lock()
	c.FailOn = f
	c.mu.Unlock()
}

func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	return nil
}

func (c *Chip) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
