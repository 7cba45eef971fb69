// Package events is the in-process fan-out of triage events to live subscribers.
// Nothing is retained for absent subscribers, so an event published while nobody
// listens is gone. A live subscriber receives every event of its types in
// publish order however far behind it falls.
package events

import (
	"sync"
	"time"
)

type Type string

const (
	IssueUpdate Type = "issue_update"
	IssueCreate Type = "issue_create"
	IssueDelete Type = "issue_delete"
	CommentAdd  Type = "comment_add"
	ActivityAdd Type = "activity_add"
	BulkUpdate  Type = "bulk_update"
	SLAAlert    Type = "sla_alert"
)

// AllTypes lists every event type the board emits.
var AllTypes = []Type{IssueUpdate, IssueCreate, IssueDelete, CommentAdd, ActivityAdd, BulkUpdate, SLAAlert}

// Event is the frame pushed to clients.
type Event struct {
	Type      Type      `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is what mutators need from the bus.
type Publisher interface {
	Publish(evt Event)
}

const defaultBuffer = 64

// Bus fan-outs events to subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	now    func() time.Time
}

// Option mutates the Bus during construction.
type Option func(*Bus)

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithClock overrides the clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		b.now = now
	}
}

// NewBus creates a new event bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[*Subscription]struct{}),
		buffer: defaultBuffer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers evt to every subscriber of its type in call order. It
// never blocks: events a subscriber cannot take yet wait in its backlog.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = b.now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if sub.wants(evt.Type) {
			sub.enqueue(evt)
		}
	}
}

// Now reads the clock the bus stamps events with.
func (b *Bus) Now() time.Time {
	return b.now().UTC()
}

// Subscribe registers a listener for the given types, or for every type when
// none are given.
func (b *Bus) Subscribe(types ...Type) *Subscription {
	sub := &Subscription{
		bus:  b,
		ch:   make(chan Event, b.buffer),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	if len(types) > 0 {
		sub.types = make(map[Type]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go sub.pump()
	return sub
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// remove guarantees no Publish touches sub once it returns.
func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Subscription is one registered listener. Events go straight into ch while
// it has room; the rest queue in backlog and pump moves them over in order.
type Subscription struct {
	bus   *Bus
	ch    chan Event
	types map[Type]struct{}

	mu      sync.Mutex
	backlog []Event
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// C is closed once the subscription is closed.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close unsubscribes and drops any backlog. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s)
		close(s.done)
	})
}

// Backlog returns how many events wait behind the channel buffer.
func (s *Subscription) Backlog() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.backlog)
}

func (s *Subscription) enqueue(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.backlog) == 0 {
		select {
		case s.ch <- evt:
			return
		default:
		}
	}
	s.backlog = append(s.backlog, evt)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump owns closing ch. The head of the backlog is popped only after it was
// sent, so enqueue never overtakes an event still in flight.
func (s *Subscription) pump() {
	defer close(s.ch)
	for {
		s.mu.Lock()
		if len(s.backlog) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		head := s.backlog[0]
		s.mu.Unlock()

		select {
		case s.ch <- head:
		case <-s.done:
			return
		}

		s.mu.Lock()
		s.backlog[0] = Event{}
		s.backlog = s.backlog[1:]
		s.mu.Unlock()
	}
}

func (s *Subscription) wants(t Type) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}
