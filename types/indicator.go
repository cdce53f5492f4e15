package types

// IndicatorState is what the status indicator should be showing.
type IndicatorState uint8

const (
	StateOff IndicatorState = iota
	StateNotJoined
	StatePairing
	StateJoined
	StateError
)

func (s IndicatorState) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateNotJoined:
		return "not_joined"
	case StatePairing:
		return "pairing"
	case StateJoined:
		return "joined"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseIndicatorState is the inverse of String.
func ParseIndicatorState(s string) (IndicatorState, bool) {
	for st := StateOff; st <= StateError; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return StateOff, false
}

// Color is an 8-bit RGB triple in logical (not wire) order.
type Color struct {
	R uint8 `json:"r" toml:"r"`
	G uint8 `json:"g" toml:"g"`
	B uint8 `json:"b" toml:"b"`
}

// Black is the "off" color.
var Black = Color{}

// Feedback is the visual feedback level requested while a button is held.
type Feedback uint8

const (
	FeedbackOff      Feedback = iota // restore the state active before the hold
	FeedbackWarning                  // network reset threshold approaching
	FeedbackCritical                 // full reset threshold approaching/reached
)

func (f Feedback) String() string {
	switch f {
	case FeedbackOff:
		return "off"
	case FeedbackWarning:
		return "warning"
	case FeedbackCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// IndicatorStatus is published (retained) whenever the indicator state is applied.
type IndicatorStatus struct {
	State IndicatorState `json:"state"`
	Name  string         `json:"name"`
	TS    int64          `json:"ts_ms"`
}
