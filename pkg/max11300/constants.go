package max11300

// Constants from the datasheet

// Frame direction bit, ORed into the first byte after the shifted address.
const (
	pixiWrite = 0x00
	pixiRead  = 0x01
)

// ExpectedDeviceID is the value of RegDeviceID on a MAX11300.
const ExpectedDeviceID uint16 = 0x0424

// NumChannels is the number of configurable ports on the device.
const NumChannels = 20

// Register Addresses
const (
	// RegDeviceID is the read-only device identification register.
	RegDeviceID Register = 0x00
	// RegInterrupt is the interrupt flag register.
	RegInterrupt Register = 0x01

	RegADCDataStatus0to15      Register = 0x02
	RegADCDataStatus16to19     Register = 0x03
	RegOvercurrentStatus0to15  Register = 0x04
	RegOvercurrentStatus16to19 Register = 0x05
	RegGPIStatus0to15          Register = 0x06
	RegGPIStatus16to19         Register = 0x07

	// RegIntTempData holds the internal temperature sensor reading.
	RegIntTempData Register = 0x08
	// RegExt1TempData holds the first external temperature sensor reading.
	RegExt1TempData Register = 0x09
	// RegExt2TempData holds the second external temperature sensor reading.
	RegExt2TempData Register = 0x0A

	RegGPIData0to15  Register = 0x0B
	RegGPIData16to19 Register = 0x0C
	RegGPOData0to15  Register = 0x0D
	RegGPOData16to19 Register = 0x0E

	// RegDeviceCtrl is the device control register. See the Ctrl* flags.
	RegDeviceCtrl Register = 0x10

	RegInterruptMask    Register = 0x11
	RegGPIIRQMode0to7   Register = 0x12
	RegGPIIRQMode8to15  Register = 0x13
	RegGPIIRQMode16to19 Register = 0x14
	RegDACPresetData1   Register = 0x16
	RegDACPresetData2   Register = 0x17
	RegTempMonConfig    Register = 0x18

	RegTempIntHighThreshold  Register = 0x19
	RegTempIntLowThreshold   Register = 0x1A
	RegTempExt1HighThreshold Register = 0x1B
	RegTempExt1LowThreshold  Register = 0x1C
	RegTempExt2HighThreshold Register = 0x1D
	RegTempExt2LowThreshold  Register = 0x1E

	// RegPortConfigBase is the port configuration register of channel 0 (0x20-0x33).
	RegPortConfigBase Register = 0x20
	// RegADCDataBase is the ADC data register of channel 0 (0x40-0x53).
	RegADCDataBase Register = 0x40
	// RegDACDataBase is the DAC data register of channel 0 (0x60-0x73).
	RegDACDataBase Register = 0x60

	// NumRegisters spans the whole address space, 0x00 through 0x73.
	NumRegisters = 0x74
)

// Bits for the device control register (0x10)
const (
	CtrlADCCTL     uint16 = 0x0003
	CtrlDACCTL     uint16 = 0x000C
	CtrlADCCONV    uint16 = 0x0030
	CtrlDACREF     uint16 = 0x0040
	CtrlTHSHDN     uint16 = 0x0080
	CtrlTMPCTL     uint16 = 0x0700
	CtrlTMPCTLINT  uint16 = 0x0100
	CtrlTMPCTLEXT1 uint16 = 0x0200
	CtrlTMPCTLEXT2 uint16 = 0x0400
	CtrlTMPPER     uint16 = 0x0800
	CtrlRSCANCEL   uint16 = 0x1000
	CtrlLPEN       uint16 = 0x2000
	CtrlBRST       uint16 = 0x4000
	CtrlRESET      uint16 = 0x8000
)

// ADCCTL field values
const (
	ADCModeIdle  uint8 = 0x0
	ADCModeSweep uint8 = 0x1
	ADCModeConv  uint8 = 0x2
	ADCModeCont  uint8 = 0x3
)

// ADCCONV field values (conversion rate, ksps)
const (
	ADCConv200ksps uint8 = 0x0
	ADCConv250ksps uint8 = 0x1
	ADCConv333ksps uint8 = 0x2
	ADCConv400ksps uint8 = 0x3
)

// Port configuration register fields (0x20-0x33)
const (
	FuncPrm               uint16 = 0x0FFF
	FuncID                uint16 = 0xF000
	FuncPrmAssociatedPort uint16 = 0x001F
	FuncPrmNrOfSamples    uint16 = 0x00E0
	FuncPrmRange          uint16 = 0x0700
	FuncPrmAvrInv         uint16 = 0x0800

	funcIDShift         = 12
	funcPrmRangeShift   = 8
	funcPrmSamplesShift = 5
)

// DataMask is the width of the ADC, DAC and temperature data fields.
const DataMask uint16 = 0x0FFF

// Temperature registers use 0.125 degC per LSB over a 12 bit two's complement field.
const tempLSB = 0.125
