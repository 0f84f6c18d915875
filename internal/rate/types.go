package rate

import "time"

// Window represents a provider quota window.
type Window int

const (
	Minute Window = iota
	Day
)

func (w Window) String() string {
	switch w {
	case Minute:
		return "minute"
	case Day:
		return "day"
	default:
		return "unknown"
	}
}

func (w Window) Duration() time.Duration {
	if w == Day {
		return 24 * time.Hour
	}
	return time.Minute
}

// Declaration describes the request quota of a vendor API.
type Declaration struct {
	provider string
	limits   map[Window]int
	reserve  map[Window]int
}

// Provider starts a declaration for the named provider.
func Provider(name string) Declaration {
	return Declaration{provider: name}
}

func (d Declaration) ProviderName() string {
	return d.provider
}

// MaxRequestsPer caps requests in a window.
func (d Declaration) MaxRequestsPer(window Window, limit int) Declaration {
	d.limits = cloneWindows(d.limits)
	d.limits[window] = limit
	return d
}

// Reserve keeps n requests of the window back for interactive calls.
// Requests marked as background are refused once only the reserve is left.
func (d Declaration) Reserve(window Window, n int) Declaration {
	d.reserve = cloneWindows(d.reserve)
	d.reserve[window] = n
	return d
}

func (d Declaration) Limits() map[Window]int {
	return d.limits
}

func cloneWindows(in map[Window]int) map[Window]int {
	out := make(map[Window]int, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
