package led

// ServiceState is the closed set of unit states the strip distinguishes.
type ServiceState int

const (
	StateUnknown ServiceState = iota
	StateActive
	StateInactive
	StateActivating
	StateDeactivating
	StateReloading
	StateFailed
)

var stateNames = map[ServiceState]string{
	StateUnknown:      "unknown",
	StateActive:       "active",
	StateInactive:     "inactive",
	StateActivating:   "activating",
	StateDeactivating: "deactivating",
	StateReloading:    "reloading",
	StateFailed:       "failed",
}

// StateFromString maps a systemd ActiveState string to a ServiceState.
// Anything unrecognised becomes StateUnknown, never an error.
func StateFromString(s string) ServiceState {
	switch s {
	case "active":
		return StateActive
	case "inactive":
		return StateInactive
	case "activating":
		return StateActivating
	case "deactivating":
		return StateDeactivating
	case "reloading":
		return StateReloading
	case "failed":
		return StateFailed
	default:
		return StateUnknown
	}
}

func (s ServiceState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
