package llm

import (
	"context"
	"time"
)

// Observer receives a notification after every provider call, successful or
// not. Implementations should return quickly.
type Observer interface {
	OnCall(ctx context.Context, event CallEvent)
}

// CallEvent describes one provider call.
type CallEvent struct {
	Provider  string
	Model     string
	Purpose   string // what the call was for, e.g. "translate" or "repair"
	Attempt   int    // 0 for the first attempt
	InputSize int    // characters of user content sent
	Response  *Response
	Error     error
	Duration  time.Duration
	StartedAt time.Time
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(ctx context.Context, event CallEvent)

// OnCall implements Observer.
func (f ObserverFunc) OnCall(ctx context.Context, event CallEvent) {
	f(ctx, event)
}

// MultiObserver dispatches to every registered observer.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates an observer that dispatches to several observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	return &MultiObserver{observers: observers}
}

// OnCall dispatches the event to all registered observers.
func (m *MultiObserver) OnCall(ctx context.Context, event CallEvent) {
	for _, obs := range m.observers {
		obs.OnCall(ctx, event)
	}
}

// Totals accumulates token usage across calls.
type Totals struct {
	Calls        int
	Failures     int
	InputTokens  int
	OutputTokens int
}

// OnCall implements Observer. Totals is not safe for concurrent use; the
// pipeline makes one call at a time.
func (t *Totals) OnCall(_ context.Context, event CallEvent) {
	t.Calls++
	if event.Error != nil {
		t.Failures++
	}
	if event.Response != nil {
		t.InputTokens += event.Response.Usage.InputTokens
		t.OutputTokens += event.Response.Usage.OutputTokens
	}
}
