package ft232h

import (
	"fmt"
	"strconv"

	"github.com/yunginnanet/ft232h"
)

// ErrBadDescriptor is returned when a [Descriptor] selects nothing.
var ErrBadDescriptor = fmt.Errorf("invalid FT232H descriptor provided")

// DeviceInfo represents a snapshot of the device information for the [FT232H] device.
type DeviceInfo struct {
	Index       int
	Serial      string
	Description string
	ProductID   string
	VendorID    string
	IsOpen      bool
	IsHighSpeed bool
}

// String returns a string representation of the device information.
func (ft DeviceInfo) String() string {
	return fmt.Sprintf(
		"DeviceInfo{Index:%d, Serial:%s, Description:%s, ProductID:%s, VendorID:%s, IsOpen:%t, IsHighSpeed:%t}",
		ft.Index, ft.Serial, ft.Description, ft.ProductID, ft.VendorID, ft.IsOpen, ft.IsHighSpeed,
	)
}

// Descriptor picks one bridge out of those attached, by serial number or by
// enumeration index. A negative Index means "any index".
type Descriptor struct {
	Index  int
	Serial string
}

// Validate fails when d matches no bridge.
func (d Descriptor) Validate() error {
	if d.Index < 0 && d.Serial == "" {
		return ErrBadDescriptor
	}
	return nil
}

// Mask converts d to the lookup mask passed to [ft232h.OpenMask].
func (d Descriptor) Mask() *ft232h.Mask {
	m := &ft232h.Mask{Serial: d.Serial}
	if d.Index >= 0 {
		m.Index = strconv.Itoa(d.Index)
	}
	return m
}

func (d Descriptor) String() string {
	if d.Serial != "" {
		return "serial " + d.Serial
	}
	return "index " + strconv.Itoa(d.Index)
}

func ByIndex(index int) Descriptor {
	return Descriptor{Index: index}
}

func BySerial(serial string) Descriptor {
	return Descriptor{Serial: serial, Index: -1}
}

// Select builds the descriptor for a configured bridge. A serial number wins
// over the index when both are set.
func Select(index int, serial string) (Descriptor, error) {
	d := ByIndex(index)
	if serial != "" {
		d = BySerial(serial)
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, fmt.Errorf("%w: %s", err, d)
	}
	return d, nil
}
