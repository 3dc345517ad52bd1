package max11300_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/l0nax/go-spew/spew"

	"github.com/yunginnanet/pixi-max11300/pkg/max11300"
	"github.com/yunginnanet/pixi-max11300/pkg/max11300/pixitest"
)

var pprint = spew.ConfigState{
	Indent:                  "\t",
	MaxDepth:                0,
	DisableMethods:          false,
	DisablePointerMethods:   false,
	DisablePointerAddresses: false,
	DisableCapacities:       false,
	ContinueOnMethod:        true,
	SortKeys:                true,
	SpewKeys:                true,
	HighlightValues:         true,
	HighlightHex:            true,
}

var (
	W = pixitest.W
	R = pixitest.R
)

func newDevice(t *testing.T) (*max11300.Device, *pixitest.Chip) {
	t.Helper()
	chip := pixitest.New()
	return max11300.New(chip, 0), chip
}

func checkOps(t *testing.T, chip *pixitest.Chip, want []pixitest.Op) {
	t.Helper()
	got := chip.Ops()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected register traffic (-want +got):\n%s", diff)
		t.Log(pprint.Sdump(got))
	}
}

func TestReadRegister(t *testing.T) {
	dev, chip := newDevice(t)

	id, err := dev.ReadRegister(max11300.RegDeviceID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != max11300.ExpectedDeviceID {
		t.Errorf("expected 0x0424, got 0x%04X", id)
	}
	if diff := cmp.Diff([][]byte{{0x01, 0x00, 0x00}}, chip.Frames()); diff != "" {
		t.Errorf("unexpected frames (-want +got):\n%s", diff)
	}

	t.Run("OutOfRange", func(t *testing.T) {
		chip.ClearOps()
		if _, err = dev.ReadRegister(0x74); !errors.Is(err, max11300.ErrInvalidRegister) {
			t.Errorf("expected ErrInvalidRegister, got %v", err)
		}
		if err = dev.WriteRegister(0xFF, 1); !errors.Is(err, max11300.ErrInvalidChannel) {
			t.Errorf("expected ErrInvalidChannel, got %v", err)
		}
		checkOps(t, chip, nil)
	})

	t.Run("Shadow", func(t *testing.T) {
		if err = dev.WriteRegister(max11300.RegGPOData0to15, 0x00A5); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := dev.LastWritten(max11300.RegGPOData0to15); got != 0x00A5 {
			t.Errorf("expected 0x00A5, got 0x%04X", got)
		}
		if _, err = dev.ReadRegister(max11300.RegInterrupt); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := map[max11300.Register]uint16{
			max11300.RegDeviceID:  0x0424,
			max11300.RegInterrupt: 0x0000,
		}
		if diff := cmp.Diff(want, dev.Registers()); diff != "" {
			t.Errorf("unexpected shadow registers (-want +got):\n%s", diff)
		}
		if got := dev.LastRead(max11300.RegDeviceID); got != 0x0424 {
			t.Errorf("expected 0x0424, got 0x%04X", got)
		}
	})
}

func TestConfigureChannel(t *testing.T) {
	for _, tc := range []struct {
		name string
		ctrl uint16
		cc   max11300.ChannelConfig
		want []pixitest.Op
	}{
		{
			name: "DAC",
			cc:   max11300.ChannelConfig{Channel: 0, Mode: max11300.ModeDAC, Range: max11300.Range0To10V},
			want: []pixitest.Op{R(0x10, 0), W(0x10, 0x0040), W(0x60, 0), W(0x20, 0x5100)},
		},
		{
			name: "DACPreservesADCCTL",
			ctrl: 0x000F,
			cc:   max11300.ChannelConfig{Channel: 4, Mode: max11300.ModeDACWithADCMonitor, DACValue: 0x0123, Range: max11300.RangeNeg5To5V},
			want: []pixitest.Op{R(0x10, 0x000F), W(0x10, 0x0043), W(0x64, 0x0123), W(0x24, 0x6200)},
		},
		{
			name: "GPI",
			cc:   max11300.ChannelConfig{Channel: 1, Mode: max11300.ModeGPI, DACValue: 0x0400},
			want: []pixitest.Op{R(0x10, 0), W(0x10, 0x0040), W(0x61, 0x0400), W(0x21, 0x1000)},
		},
		{
			name: "GPORegisterLowBank",
			cc:   max11300.ChannelConfig{Channel: 15, Mode: max11300.ModeGPORegister, DACValue: 0x0800},
			want: []pixitest.Op{R(0x10, 0), W(0x10, 0x0040), W(0x6F, 0x0800), W(0x0D, 0), W(0x2F, 0x3000)},
		},
		{
			name: "GPORegisterHighBank",
			cc:   max11300.ChannelConfig{Channel: 16, Mode: max11300.ModeGPORegister, DACValue: 0x0800},
			want: []pixitest.Op{R(0x10, 0), W(0x10, 0x0040), W(0x70, 0x0800), W(0x0E, 0), W(0x30, 0x3000)},
		},
		{
			name: "GPOUnidirectional",
			cc:   max11300.ChannelConfig{Channel: 3, Mode: max11300.ModeGPOUnidirectional, DACValue: 0x0800, AssociatedPort: 2},
			want: []pixitest.Op{R(0x10, 0), W(0x10, 0x0040), W(0x63, 0x0800), W(0x23, 0x4002)},
		},
		{
			name: "DACWithADCDiffNeg",
			cc:   max11300.ChannelConfig{Channel: 19, Mode: max11300.ModeDACWithADCDiffNeg, Range: max11300.Range0To10V, AssociatedPort: 18},
			want: []pixitest.Op{R(0x10, 0), W(0x10, 0x0040), W(0x73, 0), W(0x33, 0xA112)},
		},
		{
			name: "ADC",
			ctrl: 0x0001,
			cc:   max11300.ChannelConfig{Channel: 2, Mode: max11300.ModeADC, Range: max11300.Range0To10V, ADCSamples: 3, ADCControl: max11300.ADCModeConv},
			want: []pixitest.Op{W(0x22, 0x7160), R(0x10, 0x0001), W(0x10, 0x0003)},
		},
		{
			name: "ADCDiffPositive",
			cc:   max11300.ChannelConfig{Channel: 8, Mode: max11300.ModeADCDiffPositive, Range: max11300.Range0To10V, ADCSamples: 1, AssociatedPort: 9, ADCControl: max11300.ADCModeCont},
			want: []pixitest.Op{W(0x28, 0x8129), R(0x10, 0), W(0x10, 0x0003)},
		},
		{
			name: "ADCDiffNegative",
			cc:   max11300.ChannelConfig{Channel: 9, Mode: max11300.ModeADCDiffNegative, Range: max11300.RangeNeg5To5V, ADCSamples: 3},
			want: []pixitest.Op{W(0x29, 0x9200), R(0x10, 0), W(0x10, 0)},
		},
		{
			name: "BidirLevelShifter",
			cc:   max11300.ChannelConfig{Channel: 10, Mode: max11300.ModeBidirLevelShifter},
			want: []pixitest.Op{W(0x2A, 0x2000)},
		},
		{
			name: "TermGPISwitch",
			cc:   max11300.ChannelConfig{Channel: 11, Mode: max11300.ModeTermGPISwitch},
			want: []pixitest.Op{W(0x2B, 0xB000)},
		},
		{
			name: "TermRegSwitch",
			cc:   max11300.ChannelConfig{Channel: 12, Mode: max11300.ModeTermRegSwitch},
			want: []pixitest.Op{W(0x2C, 0xC000)},
		},
		{
			name: "HighZ",
			cc:   max11300.ChannelConfig{Channel: 13, Mode: max11300.ModeHighZ},
			want: nil,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dev, chip := newDevice(t)
			chip.SetReg(0x10, tc.ctrl)
			if err := dev.ConfigureChannel(tc.cc); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			checkOps(t, chip, tc.want)
		})
	}

	t.Run("Invalid", func(t *testing.T) {
		dev, chip := newDevice(t)
		for _, cc := range []max11300.ChannelConfig{
			{Channel: 20, Mode: max11300.ModeDAC},
			{Channel: 255, Mode: max11300.ModeADC},
			{Channel: 0, Mode: 13},
		} {
			if err := dev.ConfigureChannel(cc); !errors.Is(err, max11300.ErrInvalidChannel) {
				t.Errorf("%s/%d: expected ErrInvalidChannel, got %v", cc.Channel, cc.Mode, err)
			}
		}
		checkOps(t, chip, nil)
	})

	t.Run("OutOfRangeSweep", func(t *testing.T) {
		dev, chip := newDevice(t)
		for ch := 0; ch <= 0xFF; ch++ {
			for mode := 0; mode <= 0xFF; mode++ {
				if ch < max11300.NumChannels && mode <= int(max11300.ModeTermRegSwitch) {
					continue
				}
				cc := max11300.ChannelConfig{Channel: max11300.Channel(ch), Mode: max11300.Mode(mode)}
				if err := dev.ConfigureChannel(cc); !errors.Is(err, max11300.ErrInvalidChannel) {
					t.Fatalf("channel %d mode %d: expected ErrInvalidChannel, got %v", ch, mode, err)
				}
			}
		}
		checkOps(t, chip, nil)
	})

	t.Run("Idempotent", func(t *testing.T) {
		for ch := max11300.Channel(0); ch < max11300.NumChannels; ch++ {
			for mode := max11300.ModeHighZ; mode <= max11300.ModeTermRegSwitch; mode++ {
				cc := max11300.ChannelConfig{
					Channel:    ch,
					Mode:       mode,
					DACValue:   0x0800,
					Range:      max11300.Range0To10V,
					ADCControl: max11300.ADCModeCont,
					ADCSamples: 3,
				}
				if ch > 0 {
					cc.AssociatedPort = ch - 1
				}

				dev, chip := newDevice(t)
				chip.SetReg(0x10, uint16(max11300.ADCModeCont))
				if err := dev.ConfigureChannel(cc); err != nil {
					t.Fatalf("%s %s: unexpected error: %v", ch, mode, err)
				}
				first, firstWrites := chip.Regs, chip.Writes()

				chip.ClearOps()
				if err := dev.ConfigureChannel(cc); err != nil {
					t.Fatalf("%s %s: unexpected error: %v", ch, mode, err)
				}
				if diff := cmp.Diff(first, chip.Regs); diff != "" {
					t.Errorf("%s %s: register state changed on repeat (-first +second):\n%s", ch, mode, diff)
				}
				if diff := cmp.Diff(firstWrites, chip.Writes()); diff != "" {
					t.Errorf("%s %s: repeat issued different writes (-first +second):\n%s", ch, mode, diff)
				}
			}
		}
	})
}

func expectedBringUp() []pixitest.Op {
	ops := []pixitest.Op{
		R(0x00, 0x0424),
		R(0x10, 0x0000), W(0x10, 0x4080), // BRST | THSHDN
		R(0x10, 0x4080), W(0x10, 0x4080), // RS_CANCEL cleared
		W(0x19, 0x0230),
		R(0x10, 0x4080), W(0x10, 0x4780), // TMPCTL
	}
	ctrl := uint16(0x4780)
	for ch := byte(0); ch < max11300.NumChannels; ch++ {
		ops = append(ops,
			R(0x10, ctrl), W(0x10, 0x47C0),
			W(0x60+ch, 0),
			W(0x20+ch, 0x5100),
		)
		ctrl = 0x47C0
	}
	return ops
}

func TestInitialize(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		dev, chip := newDevice(t)
		if err := dev.Initialize(max11300.DefaultConfig()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		checkOps(t, chip, expectedBringUp())

		var (
			thresholdWrites int
			portConfigs     []byte
		)
		for _, op := range chip.Writes() {
			if op.Addr == 0x19 {
				thresholdWrites++
			}
			if op.Addr >= 0x20 && op.Addr < 0x34 {
				portConfigs = append(portConfigs, op.Addr)
			}
		}
		if thresholdWrites != 1 {
			t.Errorf("expected one temperature threshold write, got %d", thresholdWrites)
		}
		for i, addr := range portConfigs {
			if addr != byte(0x20+i) {
				t.Fatalf("port configuration out of order: %X", portConfigs)
			}
		}
		if len(portConfigs) != max11300.NumChannels {
			t.Errorf("expected %d port configurations, got %d", max11300.NumChannels, len(portConfigs))
		}
	})

	t.Run("WrongID", func(t *testing.T) {
		dev, chip := newDevice(t)
		chip.SetReg(0x00, 0x1234)
		err := dev.Initialize(max11300.DefaultConfig())
		if !errors.Is(err, max11300.ErrDeviceNotFound) {
			t.Fatalf("expected ErrDeviceNotFound, got %v", err)
		}
		if w := chip.Writes(); len(w) != 0 {
			t.Errorf("expected no writes, got %s", pprint.Sdump(w))
		}
		checkOps(t, chip, []pixitest.Op{R(0x00, 0x1234)})
	})

	t.Run("Partial", func(t *testing.T) {
		dev, chip := newDevice(t)
		boom := errors.New("boom")
		chip.FailOn = func(op pixitest.Op) error {
			if op.Write && op.Addr == 0x25 {
				return boom
			}
			return nil
		}
		err := dev.Initialize(max11300.DefaultConfig())
		if !errors.Is(err, max11300.ErrPartialConfiguration) {
			t.Fatalf("expected ErrPartialConfiguration, got %v", err)
		}
		if !errors.Is(err, max11300.ErrTransport) || !errors.Is(err, boom) {
			t.Errorf("expected the transport error to be wrapped, got %v", err)
		}
		if got := chip.Reg(0x24); got != 0x5100 {
			t.Errorf("expected channel 4 to stay configured, got 0x%04X", got)
		}
	})

	t.Run("TransportOnID", func(t *testing.T) {
		dev, chip := newDevice(t)
		chip.FailOn = func(pixitest.Op) error { return errors.New("unplugged") }
		err := dev.Initialize(max11300.DefaultConfig())
		if !errors.Is(err, max11300.ErrTransport) {
			t.Fatalf("expected ErrTransport, got %v", err)
		}
		if errors.Is(err, max11300.ErrPartialConfiguration) {
			t.Errorf("identity failure must not report partial configuration")
		}
	})

	t.Run("Custom", func(t *testing.T) {
		dev, chip := newDevice(t)
		chip.SetReg(0x10, 0x4000|0x1000)
		cfg := max11300.Config{
			ADCConversionRate:      int(max11300.ADCConv400ksps),
			SeriesResistanceCancel: true,
			TempHighThresholdC:     85,
			SetTempLowThreshold:    true,
			TempLowThresholdC:      -10,
			TempSensors:            max11300.CtrlTMPCTLINT,
			DefaultChannel:         max11300.ChannelConfig{Mode: max11300.ModeHighZ},
		}
		if err := dev.Initialize(cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		checkOps(t, chip, []pixitest.Op{
			R(0x00, 0x0424),
			R(0x10, 0x5000), W(0x10, 0x1030),
			R(0x10, 0x1030), W(0x10, 0x1030),
			W(0x19, 0x02A8),
			W(0x1A, 0x0FB0),
			R(0x10, 0x1030), W(0x10, 0x1130),
		})
	})
}

func TestAnalogIO(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		dev, _ := newDevice(t)
		for ch := max11300.Channel(0); ch < max11300.NumChannels; ch++ {
			for _, v := range []uint16{0, 1, 0x0800, 0x0FFF, 0xFFFF} {
				if err := dev.WriteChannel(ch, v); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				got, err := dev.ReadChannel(ch)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != v&max11300.DataMask {
					t.Errorf("%s: wrote 0x%04X, read 0x%04X", ch, v, got)
				}
			}
		}
	})

	t.Run("Addresses", func(t *testing.T) {
		dev, chip := newDevice(t)
		if err := dev.WriteChannel(7, 0x0ABC); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := dev.ReadChannel(7); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		checkOps(t, chip, []pixitest.Op{W(0x67, 0x0ABC), R(0x47, 0x0ABC)})
	})

	t.Run("Volts", func(t *testing.T) {
		dev, chip := newDevice(t)
		if err := dev.WriteVolts(0, max11300.Range0To10V, 5); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := chip.Reg(0x60); got != 2048 {
			t.Errorf("expected 2048, got %d", got)
		}
		chip.SetReg(0x41, 0x0FFF)
		v, err := dev.ReadVolts(1, max11300.Range0To2p5Or0To10V)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != 2.5 {
			t.Errorf("expected 2.5, got %f", v)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		dev, chip := newDevice(t)
		if _, err := dev.ReadChannel(20); !errors.Is(err, max11300.ErrInvalidChannel) {
			t.Errorf("expected ErrInvalidChannel, got %v", err)
		}
		if err := dev.WriteChannel(20, 1); !errors.Is(err, max11300.ErrInvalidChannel) {
			t.Errorf("expected ErrInvalidChannel, got %v", err)
		}
		checkOps(t, chip, nil)
	})

	t.Run("Transport", func(t *testing.T) {
		dev, chip := newDevice(t)
		chip.FailOn = func(pixitest.Op) error { return errors.New("bus fault") }
		if _, err := dev.ReadChannel(0); !errors.Is(err, max11300.ErrTransport) {
			t.Errorf("expected ErrTransport, got %v", err)
		}
	})
}

func TestDigitalIO(t *testing.T) {
	t.Run("WriteGPO", func(t *testing.T) {
		dev, chip := newDevice(t)
		chip.SetReg(0x0D, 0x0001)
		if err := dev.WriteGPO(3, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := chip.Reg(0x0D); got != 0x0009 {
			t.Errorf("expected 0x0009, got 0x%04X", got)
		}
		if err := dev.WriteGPO(0, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := chip.Reg(0x0D); got != 0x0008 {
			t.Errorf("expected 0x0008, got 0x%04X", got)
		}
		if err := dev.WriteGPO(18, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := chip.Reg(0x0E); got != 0x0004 {
			t.Errorf("expected 0x0004, got 0x%04X", got)
		}
	})

	t.Run("ReadGPI", func(t *testing.T) {
		dev, chip := newDevice(t)
		chip.SetReg(0x0B, 0x8000)
		chip.SetReg(0x0C, 0x0002)
		for ch, want := range map[max11300.Channel]bool{0: false, 15: true, 16: false, 17: true} {
			got, err := dev.ReadGPI(ch)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != want {
				t.Errorf("%s: expected %t, got %t", ch, want, got)
			}
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		dev, chip := newDevice(t)
		if _, err := dev.ReadGPI(20); !errors.Is(err, max11300.ErrInvalidChannel) {
			t.Errorf("expected ErrInvalidChannel, got %v", err)
		}
		if err := dev.WriteGPO(21, true); !errors.Is(err, max11300.ErrInvalidChannel) {
			t.Errorf("expected ErrInvalidChannel, got %v", err)
		}
		checkOps(t, chip, nil)
	})
}

func TestTemperature(t *testing.T) {
	dev, chip := newDevice(t)

	chip.SetReg(0x08, 0x00C8)
	chip.SetReg(0x0A, 0x0FB0)

	c, err := dev.ReadTemperature(max11300.SensorInternal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != 25 {
		t.Errorf("expected 25, got %f", c)
	}
	if c, err = dev.ReadTemperature(max11300.SensorExternal2); err != nil || c != -10 {
		t.Errorf("expected -10, got %f (%v)", c, err)
	}

	t.Run("Thresholds", func(t *testing.T) {
		chip.ClearOps()
		if err = dev.SetTemperatureThresholds(max11300.SensorExternal1, -10, 85); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		checkOps(t, chip, []pixitest.Op{W(0x1C, 0x0FB0), W(0x1B, 0x02A8)})

		if err = dev.SetTemperatureThresholds(max11300.SensorInternal, 50, 40); err == nil {
			t.Error("expected error for inverted thresholds")
		}
	})

	t.Run("InvalidSensor", func(t *testing.T) {
		if _, err = dev.ReadTemperature(3); !errors.Is(err, max11300.ErrInvalidChannel) {
			t.Errorf("expected ErrInvalidChannel, got %v", err)
		}
	})
}

func TestReset(t *testing.T) {
	dev, chip := newDevice(t)
	if err := dev.Initialize(max11300.DefaultConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := dev.Reset(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := chip.Reg(0x20); got != 0 {
		t.Errorf("expected port config cleared by reset, got 0x%04X", got)
	}
	if got := chip.Reg(0x00); got != pixitest.DeviceID {
		t.Errorf("expected device id to survive reset, got 0x%04X", got)
	}
	if len(dev.Registers()) != 0 {
		t.Errorf("expected shadow registers cleared, got %s", pprint.Sdump(dev.Registers()))
	}
}

func TestClose(t *testing.T) {
	dev, chip := newDevice(t)
	if err := dev.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !chip.Closed() {
		t.Error("expected bus to be closed")
	}
	if err := dev.Close(); !errors.Is(err, max11300.ErrTransport) {
		t.Errorf("expected ErrTransport on double close, got %v", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	dev, chip := newDevice(t)

	var wg sync.WaitGroup
	for ch := max11300.Channel(0); ch < max11300.NumChannels; ch++ {
		wg.Add(1)
		go func(ch max11300.Channel) {
			defer wg.Done()
			if err := dev.ConfigureChannel(max11300.ChannelConfig{Channel: ch, Mode: max11300.ModeDAC, Range: max11300.Range0To10V}); err != nil {
				t.Errorf("%s: %v", ch, err)
			}
		}(ch)
	}
	wg.Wait()

	// each configuration is four uninterrupted transactions
	ops := chip.Ops()
	if len(ops) != 4*max11300.NumChannels {
		t.Fatalf("expected %d ops, got %d", 4*max11300.NumChannels, len(ops))
	}
	for i := 0; i < len(ops); i += 4 {
		ch := ops[i+2].Addr - 0x60
		want := []pixitest.Op{R(0x10, ops[i].Value), W(0x10, 0x0040), W(0x60+ch, 0), W(0x20+ch, 0x5100)}
		if diff := cmp.Diff(want, ops[i:i+4]); diff != "" {
			t.Errorf("interleaved configuration (-want +got):\n%s", diff)
		}
	}
}

func TestScanChannels(t *testing.T) {
	t.Run("Samples", func(t *testing.T) {
		dev, _ := newDevice(t)
		for ch, v := range map[max11300.Channel]uint16{5: 100, 6: 200} {
			if err := dev.WriteChannel(ch, v); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		var (
			mu  sync.Mutex
			got = make(map[max11300.Channel]uint16)
			n   int
		)
		scan, err := dev.ScanChannels(context.Background(), time.Millisecond, func(ch max11300.Channel, code uint16) {
			mu.Lock()
			got[ch] = code
			n++
			mu.Unlock()
		}, 5, 6)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		deadline := time.Now().Add(2 * time.Second)
		for {
			mu.Lock()
			enough := n >= 6
			mu.Unlock()
			if enough || time.Now().After(deadline) {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		scan.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err = scan.Wait(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		mu.Lock()
		defer mu.Unlock()
		if diff := cmp.Diff(map[max11300.Channel]uint16{5: 100, 6: 200}, got); diff != "" {
			t.Errorf("unexpected samples (-want +got):\n%s", diff)
		}
	})

	t.Run("ErrorLimit", func(t *testing.T) {
		dev, chip := newDevice(t)
		chip.FailOn = func(pixitest.Op) error { return errors.New("no ack") }

		scan, err := dev.ScanChannels(context.Background(), time.Millisecond, nil, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = scan.Wait(ctx)
		if !errors.Is(err, max11300.ErrTransport) {
			t.Fatalf("expected ErrTransport, got %v", err)
		}
		if !scan.IsDone() {
			t.Error("expected scan to be done")
		}
	})

	t.Run("Cancel", func(t *testing.T) {
		dev, _ := newDevice(t)
		ctx, cancel := context.WithCancel(context.Background())
		scan, err := dev.ScanChannels(ctx, time.Millisecond, nil, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cancel()

		wctx, wcancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer wcancel()
		if err = scan.Wait(wctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("BadArgs", func(t *testing.T) {
		dev, _ := newDevice(t)
		if _, err := dev.ScanChannels(context.Background(), time.Millisecond, nil); err == nil {
			t.Error("expected error for empty channel list")
		}
		if _, err := dev.ScanChannels(context.Background(), time.Millisecond, nil, 20); !errors.Is(err, max11300.ErrInvalidChannel) {
			t.Errorf("expected ErrInvalidChannel, got %v", err)
		}
		if _, err := dev.ScanChannels(context.Background(), 0, nil, 1); err == nil {
			t.Error("expected error for zero interval")
		}
	})
}
