// systemd-status-leds monitors the state of configured systemd units
// and mirrors it onto a WS281x RGBW LED strip over SPI. One LED per
// unit, colours resolved from the configuration, strip turned off on
// every exit path.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shift/systemd-status-leds/config"
	"github.com/shift/systemd-status-leds/hardware"
	"github.com/shift/systemd-status-leds/led"
	"github.com/shift/systemd-status-leds/logging"
	"github.com/shift/systemd-status-leds/monitor"
	"github.com/shift/systemd-status-leds/router"
	"github.com/shift/systemd-status-leds/strip"
)

func main() {
	configFile := flag.String("config", "config.yaml", "configuration file")
	realHW := flag.Bool("real", false, "drive the real SPI device instead of the terminal simulation")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	// in simulation mode logs are buffered until the TUI log pane is up
	if err := logging.Init(!*realHW, cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "cannot initialise logging: %v\n", err)
		os.Exit(2)
	}
	defer logging.Close()

	if err := run(cfg, *configFile, *realHW); err != nil {
		slog.Error("Exiting", "error", err)
		logging.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, realHW bool) error {
	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, syscall.SIGINT, syscall.SIGTERM)

	source, err := monitor.NewSystemdSource(context.Background())
	if err != nil {
		return err
	}
	defer source.Close()
	if !source.IsAvailable() {
		return fmt.Errorf("systemd is not running on this host")
	}

	buffer := led.NewBuffer(cfg.Strip.Length)
	units := make([]string, len(cfg.Services))
	for i, svc := range cfg.Services {
		cell, err := buffer.AddCell(svc.Name)
		if err != nil {
			return err
		}
		units[i] = svc.Name
		slog.Info("Mapped service to LED", "unit", svc.Name, "position", cell.Position())
	}
	buffer.SetAll(cfg.LoadingColor())

	var sink hardware.Sink
	if realHW {
		sink, err = hardware.NewSink(cfg)
		if err != nil {
			return err
		}
	} else {
		sim := hardware.NewSimulationSink(cfg.Strip.Length, units, ossignal)
		if err := sim.Start(); err != nil {
			return err
		}
		sink = sim
	}
	defer sink.Close()

	var dimmer *strip.NightDimmer
	if cfg.NightDim.Enabled {
		dimmer = strip.NewNightDimmer(cfg.NightDim.Latitude, cfg.NightDim.Longitude, cfg.NightDim.Factor)
		slog.Info("Night dimming enabled", "factor", cfg.NightDim.Factor)
	}

	period := time.Duration(cfg.RefreshPeriodMillis()) * time.Millisecond
	renderer := strip.NewRenderer(sink, buffer, cfg.Strip.Length, period, dimmer)
	// lights off on every exit path, idempotent
	defer renderer.Stop()
	renderer.Start()

	watcher, err := config.NewWatcher(configPath, cfg.Resolver())
	if err != nil {
		return err
	}
	defer watcher.Stop()

	rt := router.New(buffer, watcher.Resolver(), source.Events())
	rt.Start()
	defer rt.Stop()

	for _, svc := range cfg.Services {
		if err := source.Watch(svc.Name); err != nil {
			return err
		}
	}

	slog.Info("Startup complete",
		"services", len(cfg.Services), "leds", cfg.Strip.Length,
		"refresh_hz", cfg.Strip.Hertz)

	select {
	case sig := <-ossignal:
		slog.Info("Received signal, shutting down", "signal", sig.String())
	case <-rt.Done():
		slog.Error("Event router ended unexpectedly, shutting down")
	case <-source.Done():
		slog.Error("State source ended unexpectedly, shutting down")
	}
	return nil
}
