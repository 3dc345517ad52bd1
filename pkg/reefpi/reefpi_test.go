package reefpi

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/reef-pi/hal"

	"github.com/yunginnanet/pixi-max11300/pkg/max11300"
	"github.com/yunginnanet/pixi-max11300/pkg/max11300/pixitest"
)

var (
	_ hal.AnalogInputPin   = (*adcPin)(nil)
	_ hal.PWMChannel       = (*dacPin)(nil)
	_ hal.DigitalInputPin  = (*gpiPin)(nil)
	_ hal.DigitalOutputPin = (*gpoPin)(nil)
)

func params() map[string]interface{} {
	return map[string]interface{}{
		paramChipSelect: 0,
		paramADCPorts:   "0",
		paramDACPorts:   "1",
		paramGPIPorts:   "2",
		paramGPOPorts:   "3",
	}
}

func newTestDriver(t *testing.T) (*Driver, *pixitest.Chip) {
	t.Helper()
	chip := pixitest.New()
	hd, err := Factory().NewDriver(params(), chip)
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}
	d, ok := hd.(*Driver)
	if !ok {
		t.Fatalf("expected *Driver, got %T", hd)
	}
	return d, chip
}

func TestFactory(t *testing.T) {
	meta := Factory().Metadata()
	if meta.Name != "max11300" {
		t.Errorf("unexpected name %q", meta.Name)
	}
	if len(meta.Capabilities) != 4 {
		t.Errorf("expected 4 capabilities, got %v", meta.Capabilities)
	}
	var names []string
	for _, p := range Factory().GetParameters() {
		names = append(names, p.Name)
	}
	want := []string{"ChipSelect", "ADCPorts", "DACPorts", "GPIPorts", "GPOPorts", "Range", "Debug"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("unexpected parameters (-want +got):\n%s", diff)
	}
}

func TestValidateParameters(t *testing.T) {
	if ok, failures := Factory().ValidateParameters(params()); !ok {
		t.Fatalf("expected valid parameters, got %v", failures)
	}

	for name, tc := range map[string]struct {
		key   string
		value interface{}
	}{
		"Duplicate":  {paramGPOPorts, "3, 1"},
		"OutOfRange": {paramADCPorts, "0,20"},
		"NotAList":   {paramDACPorts, 7},
		"BadRange":   {paramRange, 5},
		"BadCS":      {paramChipSelect, -1},
		"BadDebug":   {paramDebug, "yes"},
	} {
		t.Run(name, func(t *testing.T) {
			p := params()
			p[tc.key] = tc.value
			ok, failures := Factory().ValidateParameters(p)
			if ok {
				t.Fatal("expected validation to fail")
			}
			if len(failures[tc.key]) == 0 {
				t.Errorf("expected a failure for %s, got %v", tc.key, failures)
			}
		})
	}

	t.Run("NoPorts", func(t *testing.T) {
		if ok, _ := Factory().ValidateParameters(map[string]interface{}{}); ok {
			t.Error("expected validation to fail with no ports assigned")
		}
	})
}

func TestNewDriver(t *testing.T) {
	t.Run("PortSetup", func(t *testing.T) {
		_, chip := newTestDriver(t)
		for addr, want := range map[byte]uint16{
			0x20: 0x7160,
			0x21: 0x5100,
			0x22: 0x1100,
			0x23: 0x3100,
			0x24: 0x0000,
			0x62: 676,
			0x63: 1351,
		} {
			if got := chip.Reg(addr); got != want {
				t.Errorf("register 0x%02X: expected 0x%04X, got 0x%04X", addr, want, got)
			}
		}
		if got := chip.Reg(0x10) & max11300.CtrlADCCTL; got != adcContinuous {
			t.Errorf("expected continuous sweep, got ADCCTL 0x%X", got)
		}
	})

	t.Run("WrongResource", func(t *testing.T) {
		if _, err := Factory().NewDriver(params(), "spidev0.0"); err == nil {
			t.Error("expected an error for a non-bus hardware resource")
		}
	})

	t.Run("NoDevice", func(t *testing.T) {
		chip := pixitest.New()
		chip.SetReg(0x00, 0xFFFF)
		_, err := Factory().NewDriver(params(), chip)
		if !errors.Is(err, max11300.ErrDeviceNotFound) {
			t.Errorf("expected ErrDeviceNotFound, got %v", err)
		}
		if w := chip.Writes(); len(w) != 0 {
			t.Errorf("expected no writes, got %v", w)
		}
	})

	t.Run("InvalidParameters", func(t *testing.T) {
		p := params()
		p[paramDACPorts] = "0"
		if _, err := Factory().NewDriver(p, pixitest.New()); err == nil {
			t.Error("expected an error for overlapping ports")
		}
	})
}

func TestPins(t *testing.T) {
	d, _ := newTestDriver(t)

	for cap, want := range map[hal.Capability]int{
		hal.AnalogInput:   1,
		hal.PWM:           1,
		hal.DigitalInput:  1,
		hal.DigitalOutput: 1,
	} {
		pins, err := d.Pins(cap)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", cap.String(), err)
		}
		if len(pins) != want {
			t.Errorf("%s: expected %d pins, got %d", cap.String(), want, len(pins))
		}
	}

	if _, err := d.AnalogInputPin(1); err == nil {
		t.Error("expected port 1 to not be an analog input")
	}
	if _, err := d.PWMChannel(0); err == nil {
		t.Error("expected port 0 to not be a DAC output")
	}
	if _, err := d.DigitalInputPin(3); err == nil {
		t.Error("expected port 3 to not be a digital input")
	}
	if _, err := d.DigitalOutputPin(2); err == nil {
		t.Error("expected port 2 to not be a digital output")
	}

	p, err := d.DigitalOutputPin(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "MAX11300:0:3 GPO" {
		t.Errorf("unexpected name %q", p.Name())
	}
}

func TestAnalogInput(t *testing.T) {
	d, chip := newTestDriver(t)
	pin, err := d.AnalogInputPin(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chip.SetReg(0x40, 0x0FFF)
	v, err := pin.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(v-10) > 1e-9 {
		t.Errorf("expected 10V, got %f", v)
	}

	chip.SetReg(0x40, 0)
	if err = pin.Calibrate([]hal.Measurement{{Expected: 0.5, Observed: 0}, {Expected: 10.5, Observed: 10}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ = pin.Read(); math.Abs(v-0.5) > 1e-9 {
		t.Errorf("expected calibrated 0.5V, got %f", v)
	}
	if v, _ = pin.Measure(); v != 0 {
		t.Errorf("expected raw 0V, got %f", v)
	}

	if err = pin.Calibrate([]hal.Measurement{{Expected: 1, Observed: 2}, {Expected: 3, Observed: 2}}); err == nil {
		t.Error("expected an error for degenerate calibration points")
	}
	if err = pin.Calibrate(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ = pin.Read(); v != 0 {
		t.Errorf("expected identity calibration, got %f", v)
	}

	chip.SetFailOn(func(pixitest.Op) error { return errors.New("bus fault") })
	if _, err = pin.Read(); !errors.Is(err, max11300.ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

func TestPWM(t *testing.T) {
	d, chip := newTestDriver(t)
	ch, err := d.PWMChannel(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.LastState() {
		t.Error("expected channel off after bring-up")
	}

	for _, tc := range []struct {
		percent float64
		want    uint16
	}{
		{50, 2048},
		{100, 0x0FFF},
		{150, 0x0FFF},
		{-5, 0},
	} {
		if err = ch.Set(tc.percent); err != nil {
			t.Fatalf("Set(%v): unexpected error: %v", tc.percent, err)
		}
		if got := chip.Reg(0x61); got != tc.want {
			t.Errorf("Set(%v): expected code %d, got %d", tc.percent, tc.want, got)
		}
	}

	if err = ch.Write(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ch.LastState() || chip.Reg(0x61) != 0x0FFF {
		t.Errorf("expected full scale, got %d", chip.Reg(0x61))
	}
}

func TestDigital(t *testing.T) {
	d, chip := newTestDriver(t)

	in, err := d.DigitalInputPin(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chip.SetReg(0x0B, 1<<2)
	if high, err := in.Read(); err != nil || !high {
		t.Errorf("expected high, got %v, %v", high, err)
	}

	out, err := d.DigitalOutputPin(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err = out.Write(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := chip.Reg(0x0D); got != 1<<3 {
		t.Errorf("expected GPO bit 3, got 0x%04X", got)
	}
	if !out.LastState() {
		t.Error("expected last state high")
	}
	if err = out.Write(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chip.Reg(0x0D) != 0 || out.LastState() {
		t.Errorf("expected GPO cleared, got 0x%04X", chip.Reg(0x0D))
	}
}
