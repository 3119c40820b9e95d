// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/ffutop/langji-ac/controller"
	"github.com/ffutop/langji-ac/internal/config"
	"github.com/ffutop/langji-ac/internal/display"
	"github.com/ffutop/langji-ac/internal/metrics"
	"github.com/ffutop/langji-ac/internal/simulator"
	"github.com/ffutop/langji-ac/internal/watch"
	"github.com/ffutop/langji-ac/transport"
	"github.com/ffutop/langji-ac/transport/local"
	"github.com/ffutop/langji-ac/transport/rtu"
	rtuovertcp "github.com/ffutop/langji-ac/transport/rtu-over-tcp"
	"github.com/ffutop/langji-ac/transport/tcp"
	"github.com/spf13/pflag"
)

const usage = `Usage: langji-ac [flags] <command> [args]

Commands:
  status                      read status coils
  alarms                      read alarm inputs
  sensors                     read sensor registers
  config                      read configuration registers
  set-coil ADDR on|off        write a single coil
  set-register ADDR VALUE     write a single holding register
  set-registers ADDR V...     write consecutive holding registers
  power on|off                switch the controller on or off
  watch                       poll periodically and serve Prometheus metrics
  simulate                    serve a simulated controller over the link named
                              by --type (local serves RTU over TCP)

Flags:
`

// rangeFlags selects a sub-range for the read commands. A zero quantity
// reads as many addresses as the command's default range.
type rangeFlags struct {
	start    uint16
	quantity uint16
}

func main() {
	flags := pflag.NewFlagSet("langji-ac", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	configFile := flags.StringP("config", "c", "", "Configuration file path.")
	flags.String("type", config.TypeRTUOverTCP, "Device transport (rtu-over-tcp, tcp, rtu, local).")
	flags.StringP("host", "H", "127.0.0.1", "Controller host.")
	flags.IntP("port", "p", 8000, "Controller TCP port.")
	flags.IntP("unit-id", "u", controller.DefaultUnitID, "Modbus unit id.")
	flags.DurationP("timeout", "t", controller.DefaultTimeout, "Response wait time.")
	flags.String("serial", "/dev/ttyUSB0", "Serial port device name (type rtu).")
	flags.Int("baud-rate", 9600, "Serial port speed (type rtu).")
	flags.StringP("output", "o", display.FormatText, "Output format (text, json, yaml).")
	flags.StringP("log-level", "v", "info", "Log verbosity level (debug, info, warn, error).")
	flags.String("log-file", "", "Log file name (empty or '-' for stderr).")
	flags.Duration("interval", 10*time.Second, "Poll interval for watch.")
	flags.String("metrics", ":9108", "Metrics listen address for watch.")
	flags.String("sim-listen", ":8000", "Listen address for simulate.")
	flags.Int("sim-unit-id", 1, "Unit id answered by simulate.")
	var rf rangeFlags
	flags.Uint16Var(&rf.start, "start", 0, "First address for read commands.")
	flags.Uint16Var(&rf.quantity, "quantity", 0, "Number of addresses for read commands (0 = the command's default count).")
	flags.Parse(os.Args[1:])

	if flags.NArg() == 0 {
		flags.Usage()
		os.Exit(2)
	}

	// Load Configuration
	cfg, err := config.LoadConfig(*configFile, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wait for Signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			slog.Info("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := run(ctx, cfg, rf, flags.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "langji-ac: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, rf rangeFlags, args []string, out io.Writer) error {
	command, args := args[0], args[1:]

	if command == "simulate" {
		return simulate(ctx, cfg)
	}

	tr, err := newTransport(cfg)
	if err != nil {
		return err
	}
	client := controller.NewWithTransport(controller.Endpoint{
		Host:    cfg.Device.Host,
		Port:    cfg.Device.Port,
		UnitID:  byte(cfg.Device.UnitID),
		Timeout: cfg.Device.Timeout,
	}, tr)
	defer client.Close()

	switch command {
	case "status":
		return read(ctx, out, cfg.Output, rf, controller.StatusQuantity, client.ReadStatus, client.ReadStatusRange)
	case "alarms":
		return read(ctx, out, cfg.Output, rf, controller.AlarmsQuantity, client.ReadAlarms, client.ReadAlarmsRange)
	case "sensors":
		return read(ctx, out, cfg.Output, rf, controller.SensorsQuantity, client.ReadSensors, client.ReadSensorsRange)
	case "config":
		return read(ctx, out, cfg.Output, rf, controller.ConfigurationQuantity, client.ReadConfiguration, client.ReadConfigurationRange)
	case "set-coil":
		if len(args) != 2 {
			return errors.New("usage: set-coil ADDR on|off")
		}
		address, err := parseWord(args[0])
		if err != nil {
			return err
		}
		on, err := parseSwitch(args[1])
		if err != nil {
			return err
		}
		return acknowledge(out, client.WriteSingleCoil(ctx, address, on))
	case "set-register":
		if len(args) != 2 {
			return errors.New("usage: set-register ADDR VALUE")
		}
		words, err := parseWords(args)
		if err != nil {
			return err
		}
		return acknowledge(out, client.WriteSingleRegister(ctx, words[0], words[1]))
	case "set-registers":
		if len(args) < 2 {
			return errors.New("usage: set-registers ADDR V...")
		}
		words, err := parseWords(args)
		if err != nil {
			return err
		}
		return acknowledge(out, client.WriteMultipleRegisters(ctx, words[0], words[1:]))
	case "power":
		if len(args) != 1 {
			return errors.New("usage: power on|off")
		}
		on, err := parseSwitch(args[0])
		if err != nil {
			return err
		}
		return acknowledge(out, client.SetPower(ctx, on))
	case "watch":
		return runWatch(ctx, cfg, client)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

type readFunc func(ctx context.Context) (controller.RegisterValueSet, error)

type readRangeFunc func(ctx context.Context, start, quantity uint16) (controller.RegisterValueSet, error)

func read(ctx context.Context, out io.Writer, format string, rf rangeFlags, defaultQuantity uint16, all readFunc, ranged readRangeFunc) error {
	var (
		values controller.RegisterValueSet
		err    error
	)
	if rf.quantity == 0 && rf.start == 0 {
		values, err = all(ctx)
	} else {
		quantity := rf.quantity
		if quantity == 0 {
			quantity = defaultQuantity
		}
		values, err = ranged(ctx, rf.start, quantity)
	}
	if err != nil {
		return err
	}
	return display.Write(out, values, format)
}

func acknowledge(out io.Writer, err error) error {
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, "OK")
	return err
}

func newTransport(cfg *config.Config) (transport.Transporter, error) {
	switch cfg.Device.Type {
	case config.TypeRTUOverTCP:
		c := rtuovertcp.NewClient(net.JoinHostPort(cfg.Device.Host, strconv.Itoa(cfg.Device.Port)))
		c.Timeout = cfg.Device.Timeout
		return c, nil
	case config.TypeTCP:
		c := tcp.NewClient(net.JoinHostPort(cfg.Device.Host, strconv.Itoa(cfg.Device.Port)))
		c.Timeout = cfg.Device.Timeout
		return c, nil
	case config.TypeRTU:
		return rtu.NewClient(cfg.Device.Serial), nil
	case config.TypeLocal:
		m := simulator.NewModel()
		simulator.SeedDefaults(m)
		device := simulator.NewDevice(byte(cfg.Device.UnitID), m)
		return local.NewClient(device.HandleFrame), nil
	default:
		return nil, fmt.Errorf("unknown device type %q", cfg.Device.Type)
	}
}

func runWatch(ctx context.Context, cfg *config.Config, client *controller.Client) error {
	m := metrics.New()
	w, err := watch.New(client, cfg.Watch.Interval, m)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if cfg.Watch.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.Watch.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.Info("Serving metrics", "addr", cfg.Watch.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server stopped with error", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
			wg.Wait()
		}()
	}

	slog.Info("Watching controller", "interval", cfg.Watch.Interval, "unit", cfg.Device.UnitID)
	w.Run(ctx, nil)
	return nil
}

func simulate(ctx context.Context, cfg *config.Config) error {
	m := simulator.NewModel()
	simulator.SeedDefaults(m)
	device := simulator.NewDevice(byte(cfg.Simulator.UnitID), m)

	slog.Info("Starting simulated controller...", "unit", cfg.Simulator.UnitID, "type", cfg.Device.Type)
	var err error
	switch cfg.Device.Type {
	case config.TypeRTU:
		err = rtu.NewServer(cfg.Device.Serial).Start(ctx, device.HandleFrame)
	case config.TypeTCP:
		err = tcp.NewServer(cfg.Simulator.Listen).Start(ctx, device.HandleFrame)
	default:
		err = rtuovertcp.NewServer(cfg.Simulator.Listen).Start(ctx, device.HandleFrame)
	}
	if err != nil {
		return err
	}
	slog.Info("Goodbye.")
	return nil
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid switch value %q, want on or off", s)
}

// parseWord accepts decimal, 0x hex and 0 octal notation.
func parseWord(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid 16-bit value %q: %w", s, err)
	}
	return uint16(v), nil
}

func parseWords(args []string) ([]uint16, error) {
	words := make([]uint16, 0, len(args))
	for _, a := range args {
		w, err := parseWord(a)
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, nil
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	// Command output goes to stdout, so logs default to stderr.
	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file, falling back to stderr: %v\n", err)
			handler = slog.NewTextHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
