// Package modal holds the input, validation and submit state machines
// behind the deposit and buy/sell dialogs.
//
// A modal moves Idle -> Validating -> Submitting -> Success | Failed.
// Idle and Failed accept a new Submit; Submitting and Success reject it
// with ErrInFlight. Success closes itself after a fixed delay.
package modal

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type State int

const (
	Idle State = iota
	Validating
	Submitting
	Success
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	}
	return "unknown"
}

var (
	ErrInFlight = errors.New("modal is processing a previous submission")
	// ErrClosed is returned with the backend result when the modal was reset before it arrived.
	ErrClosed = errors.New("modal was closed before the response arrived")
)

// ValidationError is a local input rejection; no request was sent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AfterFunc runs f once after d and returns a function cancelling it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// View is a snapshot for rendering.
type View struct {
	State   State
	Input   string
	Message string
}

// machine is the lifecycle shared by both modals. The embedding modal
// guards its own input with mu as well.
type machine struct {
	mu         sync.Mutex
	state      State
	input      string
	message    string
	gen        uint64
	stop       func() bool
	closeDelay time.Duration
	afterFunc  AfterFunc
	onClose    func()
}

func (m *machine) init(closeDelay time.Duration, afterFunc AfterFunc, onClose func()) {
	if afterFunc == nil {
		afterFunc = timeAfterFunc
	}
	m.closeDelay = closeDelay
	m.afterFunc = afterFunc
	m.onClose = onClose
}

// startLocked records the input and enters Validating.
func (m *machine) startLocked(input string) error {
	if m.state == Submitting || m.state == Success {
		return ErrInFlight
	}
	m.state = Validating
	m.input = input
	m.message = ""
	return nil
}

func (m *machine) rejectLocked(message string) error {
	m.state = Idle
	m.message = message
	return &ValidationError{Message: message}
}

func (m *machine) submittingLocked() uint64 {
	m.state = Submitting
	return m.gen
}

// finish applies the backend outcome unless the modal was reset meanwhile.
func (m *machine) finish(gen uint64, err error, successMessage string) (applied bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return false
	}
	if err != nil {
		m.state = Failed
		m.message = err.Error()
		return true
	}
	m.state = Success
	m.message = successMessage
	return true
}

// scheduleClose starts the success display window. It must be called without mu held.
func (m *machine) scheduleClose(gen uint64) {
	stop := m.afterFunc(m.closeDelay, func() { m.autoClose(gen) })

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.gen {
		m.stop = stop
	}
}

func (m *machine) autoClose(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.resetLocked()
	m.mu.Unlock()

	if m.onClose != nil {
		m.onClose()
	}
}

func (m *machine) resetLocked() {
	m.gen++
	m.state = Idle
	m.input = ""
	m.message = ""
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
}

// Reset clears the input and returns to Idle, cancelling a pending auto-close.
// A response still in flight is ignored once it arrives.
func (m *machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// SetInput replaces the pending input without submitting it.
func (m *machine) SetInput(input string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Submitting || m.state == Success {
		return ErrInFlight
	}
	m.input = input
	m.message = ""
	return nil
}

func (m *machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return View{State: m.state, Input: m.input, Message: m.message}
}

func (m *machine) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Submitting
}

// parsePositive accepts a plain decimal number greater than zero.
func parsePositive(input string) (decimal.Decimal, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(input)
	if err != nil || !value.IsPositive() {
		return decimal.Zero, false
	}
	return value, true
}
