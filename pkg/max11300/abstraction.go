package max11300

import "fmt"

// transfer clocks the frame in d.tx out to the device. For reads the response is
// left in d.rx; writes pass a nil read buffer so half-duplex buses can skip the
// turnaround.
func (d *Device) transfer(read bool) error {
	var r []byte
	if read {
		d.rx = [frameLen]byte{}
		r = d.rx[:]
	}
	if err := d.bus.Tx(d.cs, d.tx[:], r); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}
