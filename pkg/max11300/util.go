package max11300

import "math"

// EncodeTemperature converts degrees Celsius to the 12 bit two's complement
// threshold format (0.125 degC per LSB). Values outside the representable range,
// -256 to +255.875 degC, saturate.
func EncodeTemperature(c float64) uint16 {
	n := math.Round(c / tempLSB)
	switch {
	case n > 0x7FF:
		n = 0x7FF
	case n < -0x800:
		n = -0x800
	}
	return uint16(int16(n)) & DataMask
}

// DecodeTemperature interprets the low 12 bits of v as a two's complement
// temperature in 0.125 degC steps.
func DecodeTemperature(v uint16) float64 {
	v &= DataMask
	n := int16(v)
	// sign extension
	if v&0x800 != 0 {
		n = int16(v | 0xF000)
	}
	return float64(n) * tempLSB
}

// Bounds returns the DAC output span of r in volts. The shared codes 4 and 6 use
// their DAC interpretation.
func (r Range) Bounds() (lo, hi float64, ok bool) {
	return r.bounds(false)
}

// ADCBounds returns the ADC input span of r in volts.
func (r Range) ADCBounds() (lo, hi float64, ok bool) {
	return r.bounds(true)
}

func (r Range) bounds(adc bool) (lo, hi float64, ok bool) {
	switch r {
	case Range0To10V:
		return 0, 10, true
	case RangeNeg5To5V:
		return -5, 5, true
	case RangeNeg10To0V:
		return -10, 0, true
	case Range0To2p5OrNeg5To5V:
		if adc {
			return 0, 2.5, true
		}
		return -5, 5, true
	case Range0To2p5Or0To10V:
		if adc {
			return 0, 2.5, true
		}
		return 0, 10, true
	default:
		return 0, 0, false
	}
}

// CodeToVolts converts a 12 bit code to volts in range r. adc selects the ADC
// interpretation of the shared range codes. Unknown ranges yield 0.
func (r Range) CodeToVolts(code uint16, adc bool) float64 {
	lo, hi, ok := r.bounds(adc)
	if !ok {
		return 0
	}
	return lo + float64(code&DataMask)/float64(DataMask)*(hi-lo)
}

// VoltsToCode converts v to the nearest 12 bit DAC code in range r, clamping to
// the range. adc selects the ADC interpretation of the shared range codes.
func (r Range) VoltsToCode(v float64, adc bool) uint16 {
	lo, hi, ok := r.bounds(adc)
	if !ok {
		return 0
	}
	frac := (v - lo) / (hi - lo)
	frac = math.Max(0, math.Min(1, frac))
	return uint16(math.Round(frac * float64(DataMask)))
}
