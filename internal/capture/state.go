package capture

import "github.com/mmynk/cardscan/internal/classifier"

// State is a capture session state.
type State int

const (
	StateIdle State = iota
	StateDetecting
	StateSteady
	StateCapturing
	StateHandedOff
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDetecting:
		return "detecting"
	case StateSteady:
		return "steady"
	case StateCapturing:
		return "capturing"
	case StateHandedOff:
		return "handed_off"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Polling reports whether the steadiness poller may issue classifications
// while the session is in this state.
func (s State) Polling() bool {
	return s == StateIdle || s == StateDetecting
}

// Terminal reports whether the session is over.
func (s State) Terminal() bool {
	return s == StateHandedOff || s == StateClosed
}

// Next applies one classification result to the current state.
// Steady, capturing and terminal states ignore poll results.
func Next(s State, d classifier.Detection) State {
	if !s.Polling() {
		return s
	}
	switch {
	case !d.CardPresent:
		return StateIdle
	case !d.IsSteady:
		return StateDetecting
	default:
		return StateSteady
	}
}
