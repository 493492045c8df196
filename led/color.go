package led

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Color is one RGBW value as sent to the strip. The zero value is "off".
type Color struct {
	Red   byte
	Green byte
	Blue  byte
	White byte
}

// ColorFormatError reports a colour string that could not be parsed.
type ColorFormatError struct {
	Input  string
	Reason string
}

func (e *ColorFormatError) Error() string {
	return fmt.Sprintf("invalid colour %q: %s", e.Input, e.Reason)
}

// ParseColor decodes an 8 hex digit RRGGBBWW string. An optional "0x" or
// "#" prefix is allowed, case does not matter.
func ParseColor(s string) (Color, error) {
	stripped := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "#")
	if len(stripped) != 8 {
		return Color{}, &ColorFormatError{
			Input:  s,
			Reason: fmt.Sprintf("expected 8 hex digits, got %d", len(stripped)),
		}
	}
	b, err := hex.DecodeString(stripped)
	if err != nil {
		return Color{}, &ColorFormatError{Input: s, Reason: err.Error()}
	}
	return Color{Red: b[0], Green: b[1], Blue: b[2], White: b[3]}, nil
}

// Hex returns the colour as 8 lowercase hex digits without prefix.
func (c Color) Hex() string {
	return fmt.Sprintf("%02x%02x%02x%02x", c.Red, c.Green, c.Blue, c.White)
}

// Bytes returns the wire representation in R,G,B,W order.
func (c Color) Bytes() [4]byte {
	return [4]byte{c.Red, c.Green, c.Blue, c.White}
}

// True if all components are zero, false otherwise
func (c Color) IsOff() bool {
	return c.Red == 0 && c.Green == 0 && c.Blue == 0 && c.White == 0
}

// Scale multiplies every channel by factor, clamped to [0,255].
// Used for night dimming of the rendered frame.
func (c Color) Scale(factor float64) Color {
	if factor < 0 {
		factor = 0
	} else if factor > 1 {
		factor = 1
	}
	return Color{
		Red:   byte(float64(c.Red) * factor),
		Green: byte(float64(c.Green) * factor),
		Blue:  byte(float64(c.Blue) * factor),
		White: byte(float64(c.White) * factor),
	}
}
