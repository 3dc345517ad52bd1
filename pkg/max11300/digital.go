package max11300

import "fmt"

// gpioBank returns the data register offset and bit mask of ch within the 0-15 / 16-19 banks.
func gpioBank(ch Channel) (high bool, mask uint16) {
	if ch > 15 {
		return true, 1 << (ch - 16)
	}
	return false, 1 << ch
}

// ReadGPI returns the input level of a port configured as GPI.
func (d *Device) ReadGPI(ch Channel) (bool, error) {
	if !ch.Valid() {
		return false, fmt.Errorf("%w: channel %d", ErrInvalidChannel, ch)
	}
	high, mask := gpioBank(ch)
	reg := RegGPIData0to15
	if high {
		reg = RegGPIData16to19
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.readRegister(reg)
	if err != nil {
		return false, err
	}
	return v&mask != 0, nil
}

// WriteGPO sets the output level of a port configured as GPO. Only the bit of ch
// is modified.
func (d *Device) WriteGPO(ch Channel, level bool) error {
	if !ch.Valid() {
		return fmt.Errorf("%w: channel %d", ErrInvalidChannel, ch)
	}
	high, mask := gpioBank(ch)
	reg := RegGPOData0to15
	if high {
		reg = RegGPOData16to19
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if level {
		return d.modifyRegister(reg, 0, mask)
	}
	return d.modifyRegister(reg, mask, 0)
}
