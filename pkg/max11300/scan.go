package max11300

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// maxScanErrors stops a scan once this many errors have been collected.
const maxScanErrors = 50

// DataCallback receives each ADC code read during a scan.
type DataCallback func(ch Channel, code uint16)

// ChannelScan is a running periodic read of a set of ADC channels.
type ChannelScan struct {
	Interval time.Duration
	done     *atomic.Bool
	running  *atomic.Bool
	channels []Channel
	callback DataCallback
	err      []error
	errMu    sync.Mutex
}

func NewChannelScan(interval time.Duration, channels []Channel, onData DataCallback) *ChannelScan {
	return &ChannelScan{
		Interval: interval,
		done:     &atomic.Bool{},
		running:  &atomic.Bool{},
		channels: channels,
		callback: onData,
		err:      make([]error, 0),
	}
}

func (cs *ChannelScan) addErr(err error) {
	if err == nil {
		return
	}
	cs.errMu.Lock()
	cs.err = append(cs.err, err)
	if len(cs.err) >= maxScanErrors {
		cs.done.Store(true)
	}
	cs.errMu.Unlock()
}

// Err returns every error collected so far, joined.
func (cs *ChannelScan) Err() error {
	cs.errMu.Lock()
	defer cs.errMu.Unlock()
	if len(cs.err) == 0 {
		return nil
	}
	return fmt.Errorf("channel scan errors: %w", errors.Join(cs.err...))
}

func (cs *ChannelScan) Stop() {
	cs.done.Store(true)
}

func (cs *ChannelScan) IsDone() bool {
	return cs.done.Load()
}

// Wait blocks until the scan has stopped and its goroutine has returned, or ctx
// is done. It returns the collected scan errors, or ctx.Err() on cancellation.
func (cs *ChannelScan) Wait(ctx context.Context) error {
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for !cs.done.Load() || cs.running.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}

	return cs.Err()
}

func (d *Device) scanChannels(cs *ChannelScan) {
	for _, ch := range cs.channels {
		if cs.done.Load() {
			return
		}

		d.mu.Lock()
		code, err := d.readAnalog(ch)
		d.mu.Unlock()

		if err != nil {
			cs.addErr(fmt.Errorf("%s: %w", ch, err))
			continue
		}

		d.log.Trace().Stringer("channel", ch).Uint16("code", code).Msg("scan sample")

		if cs.callback != nil {
			cs.callback(ch, code)
		}
	}
}

// ScanChannels reads each of channels in order, every interval, until ctx is
// cancelled, Stop is called, or too many errors accumulate. The channels are
// expected to already be configured for an ADC mode.
//
// The read loop runs on its own goroutine; onData is called from it.
func (d *Device) ScanChannels(
	ctx context.Context,
	interval time.Duration,
	onData DataCallback,
	channels ...Channel,
) (*ChannelScan, error) {
	if len(channels) == 0 {
		return nil, errors.New("no channels to scan")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("invalid scan interval: %s", interval)
	}
	for _, ch := range channels {
		if !ch.Valid() {
			return nil, fmt.Errorf("%w: channel %d", ErrInvalidChannel, ch)
		}
	}

	chScan := NewChannelScan(interval, channels, onData)
	chScan.running.Store(true)

	go func() {
		defer chScan.running.Store(false)
		defer chScan.done.Store(true)

		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			d.scanChannels(chScan)
			if chScan.done.Load() {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()

	return chScan, nil
}
