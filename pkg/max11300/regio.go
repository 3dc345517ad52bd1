package max11300

import "fmt"

// frameLen is the length of every register transaction: address byte plus 16 bit value.
const frameLen = 3

// ErrInvalidRegister is returned for register addresses above 0x73.
var ErrInvalidRegister = fmt.Errorf("%w: register address out of range", ErrInvalidChannel)

// encodeFrame fills dst with (addr<<1)|rw followed by value, big-endian.
func encodeFrame(dst []byte, addr Register, rw byte, value uint16) {
	dst[0] = byte(addr)<<1 | rw
	dst[1] = byte(value >> 8)
	dst[2] = byte(value & 0xFF)
}

// decodeFrame returns the 16 bit value carried in bytes 1-2 of a response frame.
// Byte 0 is clocked in while the address is sent and carries no data.
func decodeFrame(src []byte) uint16 {
	return uint16(src[1])<<8 | uint16(src[2])
}

// LastRead returns the value of the most recent read of reg.
func (d *Device) LastRead(reg Register) uint16 {
	if reg >= NumRegisters {
		return 0
	}
	d.mu.RLock()
	v := d.regLR[reg]
	d.mu.RUnlock()
	return v
}

// LastWritten returns the value of the most recent write to reg.
func (d *Device) LastWritten(reg Register) uint16 {
	if reg >= NumRegisters {
		return 0
	}
	d.mu.RLock()
	v := d.regLW[reg]
	d.mu.RUnlock()
	return v
}

// Registers returns the last read value of every register read so far.
func (d *Device) Registers() map[Register]uint16 {
	d.mu.RLock()
	r := make(map[Register]uint16)
	for reg, val := range d.regLR {
		if d.seen[reg] {
			r[Register(reg)] = val
		}
	}
	d.mu.RUnlock()
	return r
}

// ReadRegister reads a single 16 bit register.
func (d *Device) ReadRegister(reg Register) (uint16, error) {
	if reg >= NumRegisters {
		return 0, fmt.Errorf("%w: 0x%02X", ErrInvalidRegister, byte(reg))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readRegister(reg)
}

// WriteRegister writes a single 16 bit register.
func (d *Device) WriteRegister(reg Register, value uint16) error {
	if reg >= NumRegisters {
		return fmt.Errorf("%w: 0x%02X", ErrInvalidRegister, byte(reg))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(reg, value)
}

// writeRegister writes a single register [reg], with the given value.
func (d *Device) writeRegister(reg Register, value uint16) error {
	encodeFrame(d.tx[:], reg, pixiWrite, value)
	if err := d.transfer(false); err != nil {
		return fmt.Errorf("write 0x%02X: %w", byte(reg), err)
	}
	d.regLW[reg] = value
	d.log.Trace().Uint8("reg", uint8(reg)).Uint16("value", value).Msg("write")
	return nil
}

// readRegister reads a single register [reg].
func (d *Device) readRegister(reg Register) (uint16, error) {
	encodeFrame(d.tx[:], reg, pixiRead, 0)
	if err := d.transfer(true); err != nil {
		return 0, fmt.Errorf("read 0x%02X: %w", byte(reg), err)
	}
	v := decodeFrame(d.rx[:])
	d.regLR[reg] = v
	d.seen[reg] = true
	d.log.Trace().Uint8("reg", uint8(reg)).Uint16("value", v).Msg("read")
	return v, nil
}

// modifyRegister reads reg, clears the bits in clr, sets the bits in set and writes it back.
// Bits outside clr|set are preserved.
func (d *Device) modifyRegister(reg Register, clr, set uint16) error {
	v, err := d.readRegister(reg)
	if err != nil {
		return err
	}
	return d.writeRegister(reg, (v&^clr)|set)
}
