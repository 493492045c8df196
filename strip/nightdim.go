package strip

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// NightDimmer scales rendered frames down between sunset and sunrise so
// the strip does not light up a dark room at full brightness.
type NightDimmer struct {
	latitude  float64
	longitude float64
	factor    float64
}

func NewNightDimmer(latitude, longitude, factor float64) *NightDimmer {
	return &NightDimmer{
		latitude:  latitude,
		longitude: longitude,
		factor:    factor,
	}
}

// FactorAt returns the brightness factor for the given moment: 1 during
// daylight, the configured factor at night.
func (d *NightDimmer) FactorAt(t time.Time) float64 {
	rise, set := sunrise.SunriseSunset(d.latitude, d.longitude, t.Year(), t.Month(), t.Day())
	if t.Before(rise) || t.After(set) {
		return d.factor
	}
	return 1
}

// Apply scales a raw frame in place.
func (d *NightDimmer) Apply(frame []byte, t time.Time) {
	factor := d.FactorAt(t)
	if factor >= 1 {
		return
	}
	for i, b := range frame {
		frame[i] = byte(float64(b) * factor)
	}
}
