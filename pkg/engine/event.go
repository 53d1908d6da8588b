package engine

import (
	"sync"
	"time"
)

// EventKind identifies the type of engine event.
type EventKind string

const (
	EventRunStart      EventKind = "run_start"
	EventIssueStart    EventKind = "issue_start"
	EventIssueEnd      EventKind = "issue_end"
	EventIssueFailed   EventKind = "issue_failed"
	EventOutputWritten EventKind = "output_written"
	EventPagePublished EventKind = "page_published"
	EventRunEnd        EventKind = "run_end"
)

// Event is an immutable notification of run activity.
type Event struct {
	Kind      EventKind
	RunID     string
	IssueKey  string
	Timestamp time.Time
	Message   string
	Data      any
}

// Subscription receives events from an EventBus.
type Subscription struct {
	C  <-chan Event
	ch chan Event

	runID string
}

// EventBus fans out events to all active subscribers. It is safe for
// concurrent use.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewEventBus creates an EventBus ready for use.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe creates a new subscription with the given channel buffer size.
// The caller should read from sub.C and eventually call Unsubscribe.
func (b *EventBus) Subscribe(bufSize int) *Subscription {
	return b.SubscribeRun("", bufSize)
}

// SubscribeRun is like Subscribe but only delivers events of one run. An
// empty runID receives every event.
func (b *EventBus) SubscribeRun(runID string, bufSize int) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch, runID: runID}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish sends an event to all matching subscribers. If a subscriber's
// buffer is full the event is dropped for that subscriber so a slow consumer
// never stalls a run.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if sub.runID != "" && sub.runID != e.RunID {
			continue
		}

		select {
		case sub.ch <- e:
		default:
		}
	}
}
