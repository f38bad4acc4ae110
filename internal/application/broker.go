package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/clipview/internal/domain/model"
)

// EventKind names a history notification.
type EventKind string

const (
	// EventCaptured is published once per clipboard change picked up by the
	// watcher. Record holds the stored record.
	EventCaptured EventKind = "captured"

	// EventHistoryChanged is published after user-driven mutations such as
	// delete, favorite, tag, clear, cleanup, import or copy.
	EventHistoryChanged EventKind = "history_changed"
)

// deliveryTimeout bounds how long Publish waits on a subscriber whose buffer
// is full before skipping it for that event.
const deliveryTimeout = 5 * time.Second

// Event is a single notification delivered to broker subscribers.
type Event struct {
	Kind   EventKind
	Record *model.Record
	At     time.Time
}

type subscriber struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// Broker fans events out to subscribers. Every subscriber registered when
// Publish starts receives the event unless it cancels, the publish context
// ends, or its buffer stays full for deliveryTimeout.
type Broker struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
}

// NewBroker creates an empty Broker.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		logger: logger,
		subs:   make(map[int]*subscriber),
	}
}

// Subscribe registers a listener with the given buffer size. The returned
// cancel func unregisters it and may be called more than once. The channel is
// never closed; listeners select on their own context.
func (b *Broker) Subscribe(buffer int) (<-chan Event, func()) {
	sub := &subscriber{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			close(sub.done)
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}

	return sub.ch, cancel
}

// Publish delivers ev to every current subscriber.
func (b *Broker) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- ev:
			continue
		default:
		}

		timer := time.NewTimer(deliveryTimeout)
		select {
		case s.ch <- ev:
		case <-s.done:
		case <-timer.C:
			b.logger.Warn("event subscriber too slow, event skipped", "kind", ev.Kind)
		case <-ctx.Done():
			timer.Stop()
			return
		}
		timer.Stop()
	}
}

// SubscriberCount returns the number of registered subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
