// Package analytics records product events such as a portfolio being opened.
// Delivery is best-effort: a failing sink never affects page rendering.
package analytics

import (
	"context"
	"sync"
	"time"
)

// EventPortfolioOpened is emitted once per successful portfolio load.
const EventPortfolioOpened = "portfolio_opened"

// Event is a single analytics capture.
type Event struct {
	ID         string         `json:"id"`
	Name       string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// PortfolioOpened builds the event recorded when username's portfolio loads.
func PortfolioOpened(username string) Event {
	return Event{
		Name:       EventPortfolioOpened,
		DistinctID: username,
		Properties: map[string]any{"user": username},
	}
}

// Sink accepts events for delivery.
type Sink interface {
	Capture(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Capture(context.Context, Event) error { return nil }

// Recorder keeps events in memory. It backs the MCP server and tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Capture(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything captured so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
