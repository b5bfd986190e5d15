package render

import (
	"sync"
	"time"
)

// Action names a cross-surface request.
type Action string

// ActionOpenOptions asks the host to show its credential settings.
const ActionOpenOptions Action = "openOptions"

// Message is sent from an indicator to its host.
type Message struct {
	Action Action `json:"action"`
}

// Messenger delivers messages to the host. Send must not block.
type Messenger interface {
	Send(msg Message)
}

// MessengerFunc adapts a function to the Messenger interface.
type MessengerFunc func(Message)

// Send calls f.
func (f MessengerFunc) Send(msg Message) {
	f(msg)
}

// Scheduler runs fn after d. Tests replace it to control retry timing.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, fn func()) {
	if d <= 0 {
		go fn()
		return
	}
	time.AfterFunc(d, fn)
}

// ManualScheduler queues callbacks until Fire is called.
type ManualScheduler struct {
	pending []Scheduled
	mu      sync.Mutex
}

// Scheduled is a queued callback.
type Scheduled struct {
	fn    func()
	Delay time.Duration
}

// AfterFunc queues fn.
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) {
	s.mu.Lock()
	s.pending = append(s.pending, Scheduled{Delay: d, fn: fn})
	s.mu.Unlock()
}

// Pending returns the delays of queued callbacks.
func (s *ManualScheduler) Pending() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.pending))
	for i, p := range s.pending {
		out[i] = p.Delay
	}
	return out
}

// Fire runs every queued callback and returns how many ran.
func (s *ManualScheduler) Fire() int {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, p := range pending {
		p.fn()
	}
	return len(pending)
}
