package momentum

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/optibot/internal/domain"
)

// DefaultConfirmationThreshold consecutive identical signals required to trade.
const DefaultConfirmationThreshold = 2

// State of the confirmation machine.
type State int

const (
	StateIdle State = iota
	StateAccumulating
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateAccumulating:
		return "accumulating"
	default:
		return "idle"
	}
}

// Transition result of observing one signal.
type Transition struct {
	From      State
	To        State
	Signal    domain.Signal
	Count     int
	Threshold int
	// Confirmed is set when Signal reached the threshold; the machine is back to idle.
	Confirmed bool
}

// Status human-readable progress line.
func (t Transition) Status() string {
	switch {
	case t.Confirmed:
		return fmt.Sprintf("%s confirmed %d/%d, executing", t.Signal, t.Count, t.Threshold)
	case t.To == StateAccumulating:
		return fmt.Sprintf("%d/%d %s confirmed, waiting", t.Count, t.Threshold, t.Signal)
	default:
		return "no signal"
	}
}

// Confirmer requires a directional signal to repeat on consecutive cycles before it is acted on.
// It is owned by a single cycle driver and is not safe for concurrent use.
type Confirmer struct {
	threshold int
	state     State
	pending   domain.Signal
	count     int
}

// NewConfirmer creates an idle confirmer.
func NewConfirmer(threshold int) (*Confirmer, error) {
	if threshold < 1 {
		return nil, errors.Errorf("confirmation threshold must be at least 1, got %d", threshold)
	}

	return &Confirmer{threshold: threshold}, nil
}

// Threshold returns the confirmation threshold.
func (c *Confirmer) Threshold() int {
	return c.threshold
}

// State returns the current state, pending signal and count.
func (c *Confirmer) State() (State, domain.Signal, int) {
	return c.state, c.pending, c.count
}

// Reset returns the machine to idle.
func (c *Confirmer) Reset() {
	c.state = StateIdle
	c.pending = domain.SignalNone
	c.count = 0
}

// Observe feeds one cycle's signal into the machine.
//
//	NONE                 -> idle
//	same as pending      -> count+1
//	different direction  -> accumulating(new, 1)
//
// Reaching the threshold emits a confirmation and resets to idle.
func (c *Confirmer) Observe(s domain.Signal) Transition {
	tr := Transition{From: c.state, Signal: s, Threshold: c.threshold}

	if !s.IsDirectional() {
		c.Reset()
		tr.To = c.state
		return tr
	}

	if c.state == StateAccumulating && c.pending == s {
		c.count++
	} else {
		c.state = StateAccumulating
		c.pending = s
		c.count = 1
	}

	tr.Count = c.count
	if c.count >= c.threshold {
		tr.Confirmed = true
		c.Reset()
	}
	tr.To = c.state

	return tr
}
