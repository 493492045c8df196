// Package hardware provides the byte sinks the renderer writes frames
// to: the real SPI device in one of two GPIO library flavours, and a
// terminal simulation for development without a strip.
package hardware

import (
	"fmt"
	"log/slog"

	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"github.com/shift/systemd-status-leds/config"
	"github.com/shift/systemd-status-leds/led"
)

// Sink is a ByteSink that also owns a device handle to release.
type Sink interface {
	Write(frame []byte) (int, error)
	Close() error
}

// NRZ bit stream rate for WS281x strips
const spiFrequency = 2500 * physic.KiloHertz

// NewSink opens the SPI backend selected by the configuration.
func NewSink(cfg *config.Config) (Sink, error) {
	switch cfg.Hardware.GPIOLibrary {
	case "", "periph.io":
		return NewPeriphSink(cfg.Strip.SPIDev, cfg.Strip.Length)
	case "go-rpio":
		return NewRpioSink()
	default:
		return nil, fmt.Errorf("unknown GPIO library %q", cfg.Hardware.GPIOLibrary)
	}
}

// PeriphSink drives a WS281x strip through periph.io's NRZ encoder on
// top of a spidev device.
type PeriphSink struct {
	port spi.PortCloser
	dev  *nrzled.Dev
}

// NewPeriphSink opens /dev/spidev<spidev> for a strip of length pixels.
func NewPeriphSink(spidev string, length int) (*PeriphSink, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("cannot init periph host: %w", err)
	}
	path := "/dev/spidev" + spidev
	port, err := spireg.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open SPI device %s: %w", path, err)
	}
	if p, ok := port.(spi.Pins); ok {
		slog.Debug("SPI pins", "clk", p.CLK().String(), "mosi", p.MOSI().String())
	}
	dev, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: length,
		Channels:  led.Channels,
		Freq:      spiFrequency,
	})
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("cannot create NRZ LED device: %w", err)
	}
	slog.Info("Opened SPI device", "path", path, "pixels", length)
	return &PeriphSink{port: port, dev: dev}, nil
}

func (s *PeriphSink) Write(frame []byte) (int, error) {
	return s.dev.Write(frame)
}

func (s *PeriphSink) Close() error {
	return s.port.Close()
}

// RpioSink is the go-rpio alternative for setups where periph.io does
// not play well with the board.
type RpioSink struct{}

func NewRpioSink() (*RpioSink, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("cannot open rpio: %w", err)
	}
	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		rpio.Close()
		return nil, fmt.Errorf("cannot begin SPI: %w", err)
	}
	rpio.SpiSpeed(int(spiFrequency / physic.Hertz))
	slog.Info("Opened SPI via go-rpio")
	return &RpioSink{}, nil
}

func (s *RpioSink) Write(frame []byte) (int, error) {
	// SpiExchange clobbers its argument with the read bytes
	buf := make([]byte, len(frame))
	copy(buf, frame)
	rpio.SpiExchange(buf)
	return len(frame), nil
}

func (s *RpioSink) Close() error {
	rpio.SpiEnd(rpio.Spi0)
	return rpio.Close()
}
