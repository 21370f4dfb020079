// Package broadcast fans out session events to any number of subscribers.
//
// The live stream is best-effort: events published while a subscriber's
// buffer is full are dropped silently. Observers that fall behind recover
// authoritative state from the checkpoint store, so the stream is a
// convenience, not the source of truth.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/vinayprograms/agentkit/logging"
)

// Type tags an event on the stream.
type Type string

const (
	TypeConnected   Type = "connected"
	TypeNodeStart   Type = "node_start"
	TypeNodeEnd     Type = "node_end"
	TypeTasksUpdate Type = "tasks_update"
	TypePhaseChange Type = "phase_change"
	TypeTrace       Type = "trace"
	TypeMessage     Type = "message"
	TypeComplete    Type = "complete"
	TypeError       Type = "error"
	TypePing        Type = "ping"
)

// terminal reports whether an event ends the stream for its session.
func (t Type) terminal() bool {
	return t == TypeComplete || t == TypeError
}

// Event is one typed entry on a session's stream.
type Event struct {
	Type      Type           `json:"event"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(t Type, sessionID string, data map[string]any) Event {
	return Event{Type: t, SessionID: sessionID, Data: data, Timestamp: time.Now().UTC()}
}

const (
	// DefaultCapacity is the per-subscriber buffer size.
	DefaultCapacity = 100
	// DefaultKeepalive is the idle window after which a subscriber
	// receives a synthetic ping instead of silence.
	DefaultKeepalive = 30 * time.Second
)

// Options configures a Broker.
type Options struct {
	Capacity  int           // per-subscriber buffer; DefaultCapacity when zero
	Keepalive time.Duration // idle ping interval; DefaultKeepalive when zero
	Mirror    Mirror        // optional out-of-process event mirror
}

// Mirror receives a best-effort copy of every published event.
type Mirror interface {
	Publish(ev Event)
}

// Broker owns the per-session event channels. Its lifecycle belongs to the
// session controller; there is no package-level instance.
type Broker struct {
	mu        sync.Mutex
	channels  map[string]*channel
	capacity  int
	keepalive time.Duration
	mirror    Mirror
	logger    *logging.Logger
}

type channel struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
	done bool // terminal event published
}

type subscriber struct {
	buf chan Event
}

// New creates a broker.
func New(opts Options) *Broker {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Keepalive <= 0 {
		opts.Keepalive = DefaultKeepalive
	}
	return &Broker{
		channels:  make(map[string]*channel),
		capacity:  opts.Capacity,
		keepalive: opts.Keepalive,
		mirror:    opts.Mirror,
		logger:    logging.New().WithComponent("broadcast"),
	}
}

// Open creates the event channel for a session. Idempotent.
func (b *Broker) Open(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.channels[sessionID]; !ok {
		b.channels[sessionID] = &channel{subs: make(map[*subscriber]struct{})}
	}
}

// Publish delivers an event to every current subscriber of the session, in
// publish order. Subscribers at capacity miss the event; nobody blocks.
func (b *Broker) Publish(sessionID string, ev Event) {
	b.mu.Lock()
	ch, ok := b.channels[sessionID]
	b.mu.Unlock()
	if !ok {
		return
	}

	if b.mirror != nil {
		b.mirror.Publish(ev)
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.done {
		return
	}
	for sub := range ch.subs {
		select {
		case sub.buf <- ev:
		default:
			b.logger.Debug("event dropped", map[string]interface{}{
				"session": sessionID,
				"event":   string(ev.Type),
			})
		}
	}
	if ev.Type.terminal() {
		ch.done = true
		for sub := range ch.subs {
			close(sub.buf)
		}
		ch.subs = make(map[*subscriber]struct{})
	}
}

// Subscribe returns an ordered live view of events published after this
// call. The returned channel closes when a terminal event has been
// delivered or ctx is cancelled. During idle periods a synthetic ping is
// emitted so transport-level timeouts are avoided.
func (b *Broker) Subscribe(ctx context.Context, sessionID string) <-chan Event {
	b.Open(sessionID)

	b.mu.Lock()
	ch := b.channels[sessionID]
	b.mu.Unlock()

	sub := &subscriber{buf: make(chan Event, b.capacity)}
	out := make(chan Event)

	ch.mu.Lock()
	if ch.done {
		// Stream already over; nothing further will be published.
		ch.mu.Unlock()
		close(out)
		return out
	}
	ch.subs[sub] = struct{}{}
	ch.mu.Unlock()

	go b.forward(ctx, sessionID, ch, sub, out)
	return out
}

// forward pumps events from the subscriber buffer to the consumer,
// injecting keepalives while idle.
func (b *Broker) forward(ctx context.Context, sessionID string, ch *channel, sub *subscriber, out chan<- Event) {
	defer close(out)
	defer b.detach(sessionID, ch, sub)

	idle := time.NewTimer(b.keepalive)
	defer idle.Stop()

	for {
		select {
		case ev, ok := <-sub.buf:
			if !ok {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Type.terminal() {
				return
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(b.keepalive)
		case <-idle.C:
			select {
			case out <- NewEvent(TypePing, sessionID, nil):
			case <-ctx.Done():
				return
			}
			idle.Reset(b.keepalive)
		case <-ctx.Done():
			return
		}
	}
}

// detach removes a subscriber; when the last consumer leaves a finished
// channel, the channel itself is released.
func (b *Broker) detach(sessionID string, ch *channel, sub *subscriber) {
	ch.mu.Lock()
	delete(ch.subs, sub)
	empty := len(ch.subs) == 0
	done := ch.done
	ch.mu.Unlock()

	if empty && done {
		b.Close(sessionID)
	}
}

// Close releases a session's channel and any undelivered events.
func (b *Broker) Close(sessionID string) {
	b.mu.Lock()
	ch, ok := b.channels[sessionID]
	if ok {
		delete(b.channels, sessionID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	for sub := range ch.subs {
		close(sub.buf)
	}
	ch.subs = make(map[*subscriber]struct{})
	ch.done = true
}
