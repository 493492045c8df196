package hardware

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shift/systemd-status-leds/led"
)

func TestRenderFrame(t *testing.T) {
	s := NewSimulationSink(3, []string{"ssh.service", "cron.service"}, make(chan os.Signal, 1))

	frame := []byte{
		0xff, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0xff, 0x00, 0x10,
	}
	text := s.renderFrame(frame)
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "[#ff0000]█")
	assert.Contains(t, lines[0], "ssh.service")
	assert.Contains(t, lines[0], "ff000000")
	// off positions render as a dim dot
	assert.Contains(t, lines[1], "·")
	// white channel folds into the terminal colour
	assert.Contains(t, lines[2], "[#10ff10]█")
}

func TestRenderFrameTruncated(t *testing.T) {
	s := NewSimulationSink(4, nil, make(chan os.Signal, 1))

	// frame shorter than the strip stops cleanly
	text := s.renderFrame([]byte{1, 2, 3, 4})
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	assert.Len(t, lines, 1)
}

func TestWriteBeforeStart(t *testing.T) {
	s := NewSimulationSink(2, nil, make(chan os.Signal, 1))

	// no TUI yet, writes are accepted and dropped
	n, err := s.Write(make([]byte, 2*led.Channels))
	assert.NoError(t, err)
	assert.Equal(t, 8, n)

	// Close before Start is fine too
	assert.NoError(t, s.Close())
}

func TestTerminalColor(t *testing.T) {
	assert.Equal(t, "[#303030]·", terminalColor(led.Color{}))
	assert.Equal(t, "[#ff0000]█", terminalColor(led.Color{Red: 255}))
	// white saturates all channels
	assert.Equal(t, "[#ffffff]█", terminalColor(led.Color{Red: 200, Green: 200, Blue: 200, White: 100}))
}
