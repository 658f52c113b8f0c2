// Package events provides the in-process event bus the engine publishes
// on: state transitions, phase completions, task updates and budget
// alerts. Consumers (API websocket, CLI) subscribe to a fan-out channel.
package events

import (
	"sync"
	"time"
)

// Type defines the kind of an event.
type Type string

const (
	// TypeStateChanged fires on every engine-loop transition.
	TypeStateChanged Type = "state_changed"
	// TypePhaseComplete fires after each phase finishes, success or not.
	TypePhaseComplete Type = "phase_complete"
	// TypeTaskUpdate fires when a task changes state.
	TypeTaskUpdate Type = "task_update"
	// TypeApprovalRequired fires when a T2 task is parked for approval.
	TypeApprovalRequired Type = "approval_required"
	// TypeCostAlert fires on notable spend.
	TypeCostAlert Type = "cost_alert"
	// TypeBudgetExceeded fires when the budget guard blocks a call.
	TypeBudgetExceeded Type = "budget_exceeded"
)

// Event is a published engine event.
type Event struct {
	Type    Type      `json:"type"`
	CycleID string    `json:"cycleId,omitempty"`
	TaskID  string    `json:"taskId,omitempty"`
	Data    any       `json:"data,omitempty"`
	Time    time.Time `json:"time"`
}

// New creates an event stamped with the current time.
func New(t Type, cycleID, taskID string, data any) Event {
	return Event{Type: t, CycleID: cycleID, TaskID: taskID, Data: data, Time: time.Now()}
}

// StateChange is the payload of a state_changed event.
type StateChange struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Phase   string `json:"phase,omitempty"`
	CycleID string `json:"cycleId,omitempty"`
}

// PhaseComplete is the payload of a phase_complete event.
type PhaseComplete struct {
	Phase       string  `json:"phase"`
	CycleID     string  `json:"cycleId"`
	CycleNumber int     `json:"cycleNumber"`
	Success     bool    `json:"success"`
	CostUsd     float64 `json:"costUsd"`
	Error       string  `json:"error,omitempty"`
}

// Publisher is the interface for event publishing.
type Publisher interface {
	// Publish delivers an event to all subscribers. Never blocks.
	Publish(event Event)
	// Subscribe returns a channel receiving all published events.
	Subscribe() <-chan Event
	// Unsubscribe removes and closes a subscription channel.
	Unsubscribe(ch <-chan Event)
	// Close shuts down the publisher and all subscriptions.
	Close()
}

// MemoryPublisher is the in-process Publisher.
type MemoryPublisher struct {
	mu          sync.RWMutex
	subscribers []chan Event
	bufferSize  int
	closed      bool
}

// Option configures a MemoryPublisher.
type Option func(*MemoryPublisher)

// WithBufferSize sets the per-subscriber channel buffer.
func WithBufferSize(size int) Option {
	return func(p *MemoryPublisher) {
		p.bufferSize = size
	}
}

// NewMemoryPublisher creates an in-memory publisher.
func NewMemoryPublisher(opts ...Option) *MemoryPublisher {
	p := &MemoryPublisher{bufferSize: 100}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends an event to every subscriber. Subscribers with a full
// buffer are skipped rather than blocking the engine.
func (p *MemoryPublisher) Publish(event Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}
	for _, ch := range p.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe returns a channel receiving all future events.
func (p *MemoryPublisher) Subscribe() <-chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	ch := make(chan Event, p.bufferSize)
	p.subscribers = append(p.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (p *MemoryPublisher) Unsubscribe(ch <-chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, sub := range p.subscribers {
		if sub == ch {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close shuts down the publisher and closes every subscription.
func (p *MemoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for _, ch := range p.subscribers {
		close(ch)
	}
	p.subscribers = nil
}

// NopPublisher discards everything; useful in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
func (NopPublisher) Subscribe() <-chan Event {
	ch := make(chan Event)
	close(ch)
	return ch
}
func (NopPublisher) Unsubscribe(<-chan Event) {}
func (NopPublisher) Close()                   {}
