package landing

import (
	"fmt"
	"time"

	"github.com/sakif/linkspark/internal/apperror"
)

// State is where a visitor is on a landing page.
type State string

const (
	StateIdle      State = "idle"
	StateCountdown State = "countdown"
	StateNavigate  State = "navigate"
)

// Event moves a Machine between states.
type Event string

const (
	EventClick  Event = "click"
	EventElapse Event = "elapse"
	EventCancel Event = "cancel"
)

// Machine is the landing-page state machine:
//
//	idle --click--> countdown --elapse--> navigate
//	          \--(zero delay)----------> navigate
//	countdown --cancel--> idle          (cancellable landings only)
//
// navigate is terminal.
type Machine struct {
	landing  Landing
	state    State
	deadline time.Time
	now      func() time.Time
}

// NewMachine starts a machine for l in the idle state.
func NewMachine(l Landing) *Machine {
	return &Machine{landing: l, state: StateIdle, now: time.Now}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Landing returns the landing the machine runs.
func (m *Machine) Landing() Landing { return m.landing }

// Remaining is the countdown time left; zero outside the countdown.
func (m *Machine) Remaining() time.Duration {
	if m.state != StateCountdown {
		return 0
	}
	if d := m.deadline.Sub(m.now()); d > 0 {
		return d
	}
	return 0
}

// Fire applies ev and returns the new state. An event that is not valid in
// the current state leaves the machine unchanged and returns an error.
func (m *Machine) Fire(ev Event) (State, error) {
	switch {
	case m.state == StateIdle && ev == EventClick:
		if m.landing.Delay <= 0 {
			m.state = StateNavigate
		} else {
			m.state = StateCountdown
			m.deadline = m.now().Add(m.landing.Delay)
		}
	case m.state == StateCountdown && ev == EventElapse:
		m.state = StateNavigate
	case m.state == StateCountdown && ev == EventCancel && m.landing.Cancellable:
		m.state = StateIdle
		m.deadline = time.Time{}
	default:
		return m.state, apperror.ValidationFailed("event",
			fmt.Sprintf("cannot %s a %s landing while %s", ev, m.landing.Name, m.state))
	}
	return m.state, nil
}
