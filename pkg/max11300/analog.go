package max11300

import "fmt"

// ReadChannel returns the raw ADC data register of ch. The device fills the low
// 12 bits; nothing is masked here.
func (d *Device) ReadChannel(ch Channel) (uint16, error) {
	if !ch.Valid() {
		return 0, fmt.Errorf("%w: channel %d", ErrInvalidChannel, ch)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readAnalog(ch)
}

// WriteChannel writes value to the DAC data register of ch. Values above 0x0FFF are
// truncated by the register itself; callers pre-scale.
func (d *Device) WriteChannel(ch Channel, value uint16) error {
	if !ch.Valid() {
		return fmt.Errorf("%w: channel %d", ErrInvalidChannel, ch)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeAnalog(ch, value)
}

// ReadVolts reads ch and converts the code with r.
func (d *Device) ReadVolts(ch Channel, r Range) (float64, error) {
	code, err := d.ReadChannel(ch)
	if err != nil {
		return 0, err
	}
	return r.CodeToVolts(code, true), nil
}

// WriteVolts converts v with r, clamping to the range, and writes the code to ch.
func (d *Device) WriteVolts(ch Channel, r Range, v float64) error {
	return d.WriteChannel(ch, r.VoltsToCode(v, false))
}

func (d *Device) readAnalog(ch Channel) (uint16, error) {
	return d.readRegister(RegADCDataBase + Register(ch))
}

func (d *Device) writeAnalog(ch Channel, value uint16) error {
	return d.writeRegister(RegDACDataBase+Register(ch), value)
}
