package hardware

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/shift/systemd-status-leds/led"
	"github.com/shift/systemd-status-leds/logging"
)

// SimulationSink renders frames as coloured blocks in a terminal UI
// instead of writing to a SPI device, with a pane for live logs. It is
// a drop-in Sink, so the renderer cannot tell it from real hardware.
type SimulationSink struct {
	length   int
	units    []string
	osSignal chan os.Signal

	app      *tview.Application
	ledView  *tview.TextView
	logView  *tview.TextView
	appDone  chan struct{}
	stopOnce sync.Once

	// Guards started
	mu      sync.Mutex
	started bool
}

// NewSimulationSink creates a simulation for a strip of length LEDs.
// units labels the occupied positions; 'q' in the UI sends SIGINT on
// osSignal so shutdown runs the same path as a real signal.
func NewSimulationSink(length int, units []string, osSignal chan os.Signal) *SimulationSink {
	return &SimulationSink{
		length:   length,
		units:    units,
		osSignal: osSignal,
		appDone:  make(chan struct{}),
	}
}

// Start builds the TUI and redirects logging into its log pane.
func (s *SimulationSink) Start() error {
	s.app = tview.NewApplication()

	s.ledView = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	s.ledView.SetBorder(true).
		SetTitle(" systemd status LEDs (simulation) ").
		SetTitleColor(tcell.ColorLightBlue)

	s.logView = tview.NewTextView().
		SetDynamicColors(false).
		SetChangedFunc(func() { s.app.Draw() })
	s.logView.SetBorder(true).SetTitle(" Log - hit 'q' to exit ")
	s.logView.SetScrollable(true).ScrollToEnd()

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.ledView, len(s.units)+4, 0, false).
		AddItem(s.logView, 0, 1, true)

	s.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'q' {
			s.osSignal <- syscall.SIGINT
			return nil
		}
		return event
	})

	go func() {
		defer close(s.appDone)
		if err := s.app.SetRoot(flex, true).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "simulation TUI failed: %v\n", err)
		}
	}()

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	// from here on, logs go to the TUI pane
	return logging.SetOutput(s.logView)
}

// Write renders one frame into the LED pane. Never fails; the
// simulation is always as reliable as the terminal.
func (s *SimulationSink) Write(frame []byte) (int, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return len(frame), nil
	}

	text := s.renderFrame(frame)
	s.app.QueueUpdateDraw(func() {
		s.ledView.SetText(text)
	})
	return len(frame), nil
}

// Close tears the TUI down and buffers log output again so the final
// shutdown messages reach stderr via logging.Close.
func (s *SimulationSink) Close() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			logging.BufferOutput()
			s.app.Stop()
			<-s.appDone
		}
	})
	return nil
}

// renderFrame draws one column of blocks, one row per strip position,
// labelled with the unit tracked there.
func (s *SimulationSink) renderFrame(frame []byte) string {
	var buf strings.Builder
	for pos := 0; pos < s.length; pos++ {
		offset := pos * led.Channels
		if offset+led.Channels > len(frame) {
			break
		}
		color := led.Color{
			Red:   frame[offset],
			Green: frame[offset+1],
			Blue:  frame[offset+2],
			White: frame[offset+3],
		}
		label := ""
		if pos < len(s.units) {
			label = s.units[pos]
		}
		buf.WriteString(fmt.Sprintf("%2d %s[-] %-40s %s\n",
			pos, terminalColor(color), label, color.Hex()))
	}
	return buf.String()
}

// terminalColor folds the white channel into RGB for terminal output
// and returns a tview colour tag followed by a block.
func terminalColor(c led.Color) string {
	r := clampByte(int(c.Red) + int(c.White))
	g := clampByte(int(c.Green) + int(c.White))
	b := clampByte(int(c.Blue) + int(c.White))
	if r == 0 && g == 0 && b == 0 {
		return "[#303030]·"
	}
	return fmt.Sprintf("[#%02x%02x%02x]█", r, g, b)
}

func clampByte(v int) byte {
	if v > 255 {
		return 255
	}
	return byte(v)
}
