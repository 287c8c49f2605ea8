package pathgen

import (
	"errors"
	"fmt"
)

// ErrMode means an unknown initialization mode name was parsed.
var ErrMode = errors.New("pathgen: unknown initialization mode")

// Mode selects how new shape geometry is generated.
type Mode uint8

const (
	// ModeRandom grows each shape as a randomly jittered chain of
	// control points around a random start.
	ModeRandom Mode = iota
	// ModeCircle places a closed Bezier approximation of a circle.
	ModeCircle
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeRandom:
		return "random"
	case ModeCircle:
		return "circle"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler for config files.
func (m Mode) MarshalText() ([]byte, error) {
	if m > ModeCircle {
		return nil, fmt.Errorf("%w: %d", ErrMode, m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, resolving the
// closed set of mode names at configuration-parse time.
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "random":
		*m = ModeRandom
	case "circle":
		*m = ModeCircle
	default:
		return fmt.Errorf("%w: %q", ErrMode, b)
	}
	return nil
}
