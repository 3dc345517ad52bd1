package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog"

	"github.com/yunginnanet/pixi-max11300/internal/config"
	"github.com/yunginnanet/pixi-max11300/pkg/command"
	"github.com/yunginnanet/pixi-max11300/pkg/max11300"
	"github.com/yunginnanet/pixi-max11300/pkg/pixihttp"
)

var log zerolog.Logger

func init() {
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli}
	log = zerolog.New(cw).With().Timestamp().Logger()
}

const usage = `pixictl drives MAX11300 (PIXI) devices over SPI.

Usage:
	pixictl [flags] <command>

Commands:
	init	bring up every device and dump its registers
	repl	read command lines such as "spi_write 0 3 2048" from stdin
	serve	expose the devices over HTTP
	conf	print the merged configuration

Flags:
`

var flagKeys = map[string]string{
	"backend": "backend",
	"bus":     "spi.bus",
	"cs":      "spi.chip_selects",
	"speed":   "spi.speed_hz",
	"FT232H":  "ft232h.index",
	"serial":  "ft232h.serial",
	"cspins":  "ft232h.cs_pins",
	"listen":  "listen",
	"retries": "init.retries",
	"log":     "log.level",
}

func flags() (fs *flag.FlagSet, path string) {
	fs = flag.NewFlagSet("pixictl", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	cfg := fs.String("config", "pixi.yml", "Configuration file (YAML)")
	fs.String("backend", config.BackendFT232H, "SPI backend: ft232h, periph or exp")
	fs.Int("bus", 0, "spidev bus number")
	fs.String("cs", "0", "Chip selects, comma separated")
	fs.Int64("speed", 10_000_000, "SPI clock (Hz)")
	fs.Int("FT232H", 0, "FT232H Index")
	fs.String("serial", "", "FT232H serial number, overrides the index")
	fs.String("cspins", "0", "FT232H ACBUS chip select pins, comma separated")
	fs.String("listen", ":8011", "HTTP listen address for serve")
	fs.Uint64("retries", 5, "Bring-up retries")
	fs.String("log", "info", "Log level")
	_ = fs.Parse(os.Args[1:])
	return fs, *cfg
}

func main() {
	fs, path := flags()

	loader := config.NewLoader(flagKeys)
	c, err := loader.Load(path, fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if lvl, err := zerolog.ParseLevel(c.Log.Level); err == nil {
		log = log.Level(lvl)
	} else {
		log.Warn().Err(err).Msg("bad log level")
	}

	mode := fs.Arg(0)
	switch mode {
	case "conf":
		fmt.Print(loader.Sprint())
		return
	case "init", "repl", "serve":
	default:
		fs.Usage()
		os.Exit(2)
	}

	bus, closer, err := openBus(c)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open SPI")
	}
	defer func() {
		if err := closer.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close SPI")
		}
	}()

	d := command.NewDispatcher(
		command.WithLogger(log.With().Str("caller", "dispatch").Logger()),
		command.WithInitConfig(c.DeviceConfig()),
	)
	var devs []*max11300.Device
	for _, cs := range c.SPI.ChipSelects {
		dev := max11300.New(bus, cs, max11300.WithLogger(log))
		d.Attach(dev)
		devs = append(devs, dev)
	}

	newBackOff := func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.Init.Retries)
	}
	log.Debug().Any("config", c.DeviceConfig()).Msg("initializing MAX11300")
	if err = spinBringUp(c.Init.Spinner, devs, c.DeviceConfig(), newBackOff); err != nil {
		log.Error().Err(err).Msg("failed to initialize MAX11300")
		if errors.Is(err, max11300.ErrDeviceNotFound) {
			log.Error().Msg("check wiring, chip select and SPI mode")
		}
		return
	}
	log.Info().Ints("cs", c.SPI.ChipSelects).Msg("initialized MAX11300")

	switch mode {
	case "init":
		for _, dev := range devs {
			for reg := max11300.Register(0); reg < max11300.NumRegisters; reg++ {
				if _, err = dev.ReadRegister(reg); err != nil {
					log.Error().Err(err).Int("cs", dev.ChipSelect()).Msg("failed to read MAX11300 registers")
					return
				}
			}
			log.Info().Int("cs", dev.ChipSelect()).Any("values", dev.Registers()).Msg("MAX11300 Registers")
		}

	case "repl":
		if err = repl(d, os.Stdin, os.Stdout); err != nil {
			log.Error().Err(err).Msg("input failed")
		}

	case "serve":
		r := chi.NewRouter()
		r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
		r.Use(middleware.Heartbeat("/ping"))
		pixihttp.NewHTTPPixi(d).RouteTable.Bind(r)

		log.Info().Str("listen", c.Listen).Msg("serving")
		if err = http.ListenAndServe(c.Listen, r); err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
	}
}
