package led

import "log/slog"

// Resolver maps (service position, state name) to a display colour.
// Per-service overrides win over the strip wide defaults; a state
// mapped nowhere resolves to nothing and the cell keeps its colour.
//
// The colour strings are validated at configuration load time, so a
// malformed entry here is a defect elsewhere; Resolve still refuses to
// fail on one and just treats it as unmapped.
type Resolver struct {
	overrides []map[string]string // indexed by service position
	defaults  map[string]string
}

// NewResolver builds a resolver from the raw per-service override maps
// (in configuration order) and the strip wide default map.
func NewResolver(overrides []map[string]string, defaults map[string]string) *Resolver {
	return &Resolver{
		overrides: overrides,
		defaults:  defaults,
	}
}

// Resolve returns the colour for the given service position and state
// name, or false when no mapping exists.
func (r *Resolver) Resolve(serviceIndex int, stateName string) (Color, bool) {
	if serviceIndex >= 0 && serviceIndex < len(r.overrides) {
		if raw, ok := r.overrides[serviceIndex][stateName]; ok {
			if color, err := ParseColor(raw); err == nil {
				return color, true
			} else {
				slog.Warn("Ignoring malformed override colour",
					"state", stateName, "colour", raw, "error", err)
			}
		}
	}
	if raw, ok := r.defaults[stateName]; ok {
		if color, err := ParseColor(raw); err == nil {
			return color, true
		}
		slog.Warn("Ignoring malformed default colour",
			"state", stateName, "colour", raw)
	}
	return Color{}, false
}
