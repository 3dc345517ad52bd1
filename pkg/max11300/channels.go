package max11300

import "fmt"

// Channel identifies one of the 20 ports, 0 through 19.
type Channel uint8

// Valid reports whether c addresses a physical port.
func (c Channel) Valid() bool {
	return c < NumChannels
}

func (c Channel) String() string {
	if !c.Valid() {
		return "(invalid channel)"
	}
	return fmt.Sprintf("PORT%d", uint8(c))
}

// Mode is the FUNCID of a port configuration register.
type Mode uint8

const (
	ModeHighZ             Mode = iota // 0: high impedance
	ModeGPI                           // 1: digital input with programmable threshold
	ModeBidirLevelShifter             // 2: bidirectional level translator terminal
	ModeGPORegister                   // 3: register-driven digital output
	ModeGPOUnidirectional             // 4: unidirectional path output
	ModeDAC                           // 5: analog output
	ModeDACWithADCMonitor             // 6: analog output with ADC monitoring
	ModeADC                           // 7: positive single-ended analog input
	ModeADCDiffPositive               // 8: differential analog input, positive terminal
	ModeADCDiffNegative               // 9: differential analog input, negative terminal
	ModeDACWithADCDiffNeg             // 10: analog output for the negative differential terminal
	ModeTermGPISwitch                 // 11: terminal to GPI-controlled analog switch
	ModeTermRegSwitch                 // 12: terminal to register-controlled analog switch

	maxMode = ModeTermRegSwitch
)

// Valid reports whether m is a defined FUNCID.
func (m Mode) Valid() bool {
	return m <= maxMode
}

func (m Mode) String() string {
	switch m {
	case ModeHighZ:
		return "HIZ"
	case ModeGPI:
		return "GPI"
	case ModeBidirLevelShifter:
		return "DIDIR_LT_TERM"
	case ModeGPORegister:
		return "GPO_REG"
	case ModeGPOUnidirectional:
		return "GPO_UNI"
	case ModeDAC:
		return "DAC"
	case ModeDACWithADCMonitor:
		return "DAC_ADC_MON"
	case ModeADC:
		return "ADC_P"
	case ModeADCDiffPositive:
		return "ADC_DIFF_P"
	case ModeADCDiffNegative:
		return "ADC_DIFF_N"
	case ModeDACWithADCDiffNeg:
		return "DAC_ADC_DIFF_N"
	case ModeTermGPISwitch:
		return "TERM_GPI_SW"
	case ModeTermRegSwitch:
		return "TERM_REG_SW"
	default:
		return "(invalid mode)"
	}
}

// usesDAC reports whether m drives the port's DAC. GPI uses DACDAT as the input threshold
// and the GPO modes use it as the output high level.
func (m Mode) usesDAC() bool {
	switch m {
	case ModeGPI, ModeGPORegister, ModeGPOUnidirectional, ModeDAC, ModeDACWithADCMonitor, ModeDACWithADCDiffNeg:
		return true
	}
	return false
}

// usesADC reports whether m is one of the pure ADC input modes.
func (m Mode) usesADC() bool {
	switch m {
	case ModeADC, ModeADCDiffPositive, ModeADCDiffNegative:
		return true
	}
	return false
}

// hasAssociatedPort reports whether FUNCPRM_ASSOCIATED_PORT is meaningful for m.
func (m Mode) hasAssociatedPort() bool {
	switch m {
	case ModeGPOUnidirectional, ModeADCDiffPositive, ModeDACWithADCDiffNeg:
		return true
	}
	return false
}

// Range is the 3 bit FUNCPRM_RANGE selector.
type Range uint8

const (
	RangeNone             Range = 0x0
	Range0To10V           Range = 0x1
	RangeNeg5To5V         Range = 0x2
	RangeNeg10To0V        Range = 0x3
	Range0To2p5OrNeg5To5V Range = 0x4 // ADC 0..2.5V, DAC -5..+5V
	RangeReserved         Range = 0x5
	Range0To2p5Or0To10V   Range = 0x6 // ADC 0..2.5V, DAC 0..+10V
	RangeReserved2        Range = 0x7
)

// ChannelConfig is one port configuration request.
type ChannelConfig struct {
	Channel  Channel
	Mode     Mode
	DACValue uint16
	Range    Range

	// ADCControl is ORed into the ADCCTL field for ADC modes; existing bits are never cleared.
	ADCControl uint8

	// ADCSamples is the log2 sample averaging count for modes 7 and 8.
	ADCSamples uint8

	// AssociatedPort is packed for modes 4, 8 and 10 and left zero otherwise.
	AssociatedPort Channel
}

// portConfig builds the port configuration register value for cc.
func (cc ChannelConfig) portConfig() uint16 {
	v := (uint16(cc.Mode) << funcIDShift) & FuncID
	v |= (uint16(cc.Range) << funcPrmRangeShift) & FuncPrmRange
	if cc.Mode == ModeADC || cc.Mode == ModeADCDiffPositive {
		v |= (uint16(cc.ADCSamples) << funcPrmSamplesShift) & FuncPrmNrOfSamples
	}
	if cc.Mode.hasAssociatedPort() {
		v |= uint16(cc.AssociatedPort) & FuncPrmAssociatedPort
	}
	return v
}

// ConfigureChannel places a port into the requested mode.
//
// The register writes are issued in the order the device requires:
//   - DAC modes (1, 3, 4, 5, 6, 10): device control (DACREF set, DACCTL cleared),
//     DAC data, the GPO data bank for mode 3, then the port configuration.
//   - ADC modes (7, 8, 9): the port configuration, then ADCCTL ORed into device control.
//   - Terminal modes (2, 11, 12): the port configuration only.
//
// Mode 0 (high impedance) is accepted and issues nothing. Out of range channels
// or modes return ErrInvalidChannel without touching the bus.
func (d *Device) ConfigureChannel(cc ChannelConfig) error {
	if !cc.Channel.Valid() || !cc.Mode.Valid() {
		return fmt.Errorf("%w: channel %d mode %d", ErrInvalidChannel, cc.Channel, cc.Mode)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configureChannel(cc)
}

func (d *Device) configureChannel(cc ChannelConfig) error {
	if !cc.Channel.Valid() || !cc.Mode.Valid() {
		return fmt.Errorf("%w: channel %d mode %d", ErrInvalidChannel, cc.Channel, cc.Mode)
	}

	portReg := RegPortConfigBase + Register(cc.Channel)

	switch {
	case cc.Mode.usesDAC():
		// internal reference, sequential update
		if err := d.modifyRegister(RegDeviceCtrl, CtrlDACCTL, CtrlDACREF); err != nil {
			return err
		}
		if err := d.writeRegister(RegDACDataBase+Register(cc.Channel), cc.DACValue); err != nil {
			return err
		}
		if cc.Mode == ModeGPORegister {
			// start the pin at logic 0
			bank := RegGPOData0to15
			if cc.Channel > 15 {
				bank = RegGPOData16to19
			}
			if err := d.writeRegister(bank, 0); err != nil {
				return err
			}
		}
		if err := d.writeRegister(portReg, cc.portConfig()); err != nil {
			return err
		}

	case cc.Mode.usesADC():
		if err := d.writeRegister(portReg, cc.portConfig()); err != nil {
			return err
		}
		if err := d.modifyRegister(RegDeviceCtrl, 0, uint16(cc.ADCControl)&CtrlADCCTL); err != nil {
			return err
		}

	case cc.Mode == ModeHighZ:
		// power-on state, nothing to write

	default:
		if err := d.writeRegister(portReg, cc.portConfig()); err != nil {
			return err
		}
	}

	d.log.Debug().
		Stringer("channel", cc.Channel).
		Stringer("mode", cc.Mode).
		Uint8("range", uint8(cc.Range)).
		Msg("channel configured")

	return nil
}
