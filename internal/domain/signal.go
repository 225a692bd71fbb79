package domain

// Signal directional verdict of one evaluation cycle.
type Signal int

const (
	SignalNone Signal = iota
	SignalCall
	SignalPut
)

// String returns the string representation of the signal
func (s Signal) String() string {
	switch s {
	case SignalCall:
		return "CALL"
	case SignalPut:
		return "PUT"
	default:
		return "NONE"
	}
}

// IsDirectional reports whether the signal is CALL or PUT.
func (s Signal) IsDirectional() bool {
	return s == SignalCall || s == SignalPut
}

// OptionType maps a directional signal to the option type bought on confirmation.
func (s Signal) OptionType() (OptionType, bool) {
	switch s {
	case SignalCall:
		return OptionTypeCall, true
	case SignalPut:
		return OptionTypePut, true
	default:
		return "", false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Signal) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Signal) UnmarshalText(text []byte) error {
	switch string(text) {
	case "CALL":
		*s = SignalCall
	case "PUT":
		*s = SignalPut
	default:
		*s = SignalNone
	}
	return nil
}
