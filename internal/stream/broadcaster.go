package stream

import (
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/wiretrace/wiretrace/internal/model"
	"github.com/wiretrace/wiretrace/internal/pkg/logger"
	"github.com/wiretrace/wiretrace/internal/pkg/metrics"
)

var connectedFrame = []byte(`{"type":"connected"}`)

type frame struct {
	Type  string           `json:"type"`
	Event *model.WireEvent `json:"event"`
}

// Subscriber is one live observer connection. Frames arrive in publish
// order; the channel is closed on Unsubscribe or broadcaster shutdown.
type Subscriber struct {
	ID string
	ch chan []byte
}

func (s *Subscriber) Frames() <-chan []byte {
	return s.ch
}

// Broadcaster owns the registry of live observers and fans ingested
// events out to all of them. Publishing is best-effort: a slow or gone
// observer never blocks ingestion or the other observers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	bufferSize  int
	closed      bool
}

func NewBroadcaster(bufferSize int) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Broadcaster{
		subscribers: make(map[string]*Subscriber),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a new observer. The connected acknowledgement is
// queued before the subscriber is visible to Publish, so it is always
// the first frame delivered.
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID: uuid.NewString(),
		ch: make(chan []byte, b.bufferSize),
	}
	sub.ch <- connectedFrame

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub
	}
	b.subscribers[sub.ID] = sub
	count := len(b.subscribers)
	b.mu.Unlock()

	metrics.StreamClients.Set(float64(count))
	logger.Debug("Observer connected", "subscriber_id", sub.ID, "total", count)
	return sub
}

// Unsubscribe removes an observer and closes its channel. Safe to call
// more than once for the same handle.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	current, ok := b.subscribers[sub.ID]
	if ok && current == sub {
		delete(b.subscribers, sub.ID)
		close(sub.ch)
	}
	count := len(b.subscribers)
	b.mu.Unlock()

	if ok {
		metrics.StreamClients.Set(float64(count))
		logger.Debug("Observer disconnected", "subscriber_id", sub.ID, "total", count)
	}
}

// Publish serializes event once and hands it to every connected
// observer without blocking: a full channel drops the frame for that
// observer only.
func (b *Broadcaster) Publish(event *model.WireEvent) {
	data, err := json.Marshal(frame{Type: "new-event", Event: event})
	if err != nil {
		logger.Error("Failed to serialize broadcast frame", "error", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		select {
		case sub.ch <- data:
		default:
			metrics.BroadcastDropped.Inc()
		}
	}
}

func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close shuts the registry down; every observer channel is closed and
// later Subscribe calls get an already-closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub.ch)
	}
	metrics.StreamClients.Set(0)
}
