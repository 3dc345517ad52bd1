package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/theckman/yacspin"

	"github.com/yunginnanet/pixi-max11300/pkg/command"
	"github.com/yunginnanet/pixi-max11300/pkg/max11300"
)

// bringUp initializes every device in turn, retrying each with a fresh policy
// from newBackOff. Invalid configurations are not retried.
func bringUp(devs []*max11300.Device, cfg max11300.Config, newBackOff func() backoff.BackOff, notify backoff.Notify) error {
	for _, dev := range devs {
		op := func() error {
			err := dev.Initialize(cfg)
			if errors.Is(err, max11300.ErrInvalidChannel) {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := backoff.RetryNotify(op, newBackOff(), notify); err != nil {
			return fmt.Errorf("cs %d: %w", dev.ChipSelect(), err)
		}
	}
	return nil
}

func newSpinner() (*yacspin.Spinner, error) {
	return yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		Writer:            os.Stderr,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " ",
		SuffixAutoColon:   true,
		Message:           "bringing up MAX11300",
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
}

// spinBringUp runs bringUp behind a spinner when enabled.
func spinBringUp(enabled bool, devs []*max11300.Device, cfg max11300.Config, newBackOff func() backoff.BackOff) error {
	notify := func(err error, next time.Duration) {
		log.Warn().Err(err).Dur("retry_in", next).Msg("bring-up failed")
	}
	if !enabled {
		return bringUp(devs, cfg, newBackOff, notify)
	}

	spinner, err := newSpinner()
	if err != nil {
		log.Debug().Err(err).Msg("spinner unavailable")
		return bringUp(devs, cfg, newBackOff, notify)
	}
	if err = spinner.Start(); err != nil {
		return bringUp(devs, cfg, newBackOff, notify)
	}

	err = bringUp(devs, cfg, newBackOff, func(err error, next time.Duration) {
		spinner.Message(fmt.Sprintf("retrying in %s: %v", next.Round(time.Millisecond), err))
	})
	if err != nil {
		spinner.StopFailMessage(err.Error())
		_ = spinner.StopFail()
		return err
	}
	spinner.StopMessage(fmt.Sprintf("%d device(s) up", len(devs)))
	_ = spinner.Stop()
	return nil
}

// repl runs one command per input line and prints one reply line per command.
// Blank lines and lines starting with # are skipped.
func repl(d *command.Dispatcher, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		res, err := d.Run(line)
		switch {
		case err != nil:
			fmt.Fprintf(out, "error %v;\n", err)
		case res.HasValue:
			fmt.Fprintf(out, "%s %d %d;\n", res.Command, res.CS, res.Value)
		default:
			fmt.Fprintf(out, "%s %d ok;\n", res.Command, res.CS)
		}
	}
	return sc.Err()
}
