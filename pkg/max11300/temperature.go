package max11300

import "fmt"

// Sensor selects one of the three temperature sensors.
type Sensor uint8

const (
	SensorInternal Sensor = iota
	SensorExternal1
	SensorExternal2
)

func (s Sensor) String() string {
	switch s {
	case SensorInternal:
		return "internal"
	case SensorExternal1:
		return "external1"
	case SensorExternal2:
		return "external2"
	default:
		return "(invalid sensor)"
	}
}

// registers returns the data, low threshold and high threshold registers of s.
func (s Sensor) registers() (data, low, high Register, ok bool) {
	switch s {
	case SensorInternal:
		return RegIntTempData, RegTempIntLowThreshold, RegTempIntHighThreshold, true
	case SensorExternal1:
		return RegExt1TempData, RegTempExt1LowThreshold, RegTempExt1HighThreshold, true
	case SensorExternal2:
		return RegExt2TempData, RegTempExt2LowThreshold, RegTempExt2HighThreshold, true
	}
	return 0, 0, 0, false
}

// ReadTemperature returns the last conversion of sensor s in degrees Celsius.
// The sensor must be enabled in TMPCTL (Initialize enables all three by default).
func (d *Device) ReadTemperature(s Sensor) (float64, error) {
	data, _, _, ok := s.registers()
	if !ok {
		return 0, fmt.Errorf("%w: sensor %d", ErrInvalidChannel, s)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.readRegister(data)
	if err != nil {
		return 0, err
	}
	return DecodeTemperature(v), nil
}

// SetTemperatureThresholds writes the interrupt thresholds of sensor s, low first.
func (d *Device) SetTemperatureThresholds(s Sensor, lowC, highC float64) error {
	_, low, high, ok := s.registers()
	if !ok {
		return fmt.Errorf("%w: sensor %d", ErrInvalidChannel, s)
	}
	if lowC > highC {
		return fmt.Errorf("max11300: low threshold %.3f above high threshold %.3f", lowC, highC)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.writeRegister(low, EncodeTemperature(lowC)); err != nil {
		return err
	}
	return d.writeRegister(high, EncodeTemperature(highC))
}
