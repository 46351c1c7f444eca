package source

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// MemorySource is a finite in-memory source, primarily for tests.
type MemorySource struct {
	mu     sync.Mutex
	events []RawEvent
	pos    int
}

// NewMemorySource creates a source that yields the given events in order.
func NewMemorySource(events ...RawEvent) *MemorySource {
	return &MemorySource{events: events}
}

// Next returns the next event or ErrEndOfStream.
func (s *MemorySource) Next(ctx context.Context) (RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.events) {
		return nil, ErrEndOfStream
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

// Close implements Source.
func (s *MemorySource) Close() error {
	return nil
}

// StreamSource is an in-memory streaming source. Next blocks until an event
// is appended, the stream is closed, or the context is cancelled. Used to
// exercise watch-mode behavior without a live store.
type StreamSource struct {
	ch        chan RawEvent
	closeOnce sync.Once
	done      chan struct{}
}

// NewStreamSource creates a blocking in-memory stream.
func NewStreamSource(buffer int) *StreamSource {
	if buffer < 1 {
		buffer = 1
	}
	return &StreamSource{
		ch:   make(chan RawEvent, buffer),
		done: make(chan struct{}),
	}
}

// Append enqueues an event. Returns false if the stream is closed.
func (s *StreamSource) Append(ev bson.D) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.ch <- ev:
		return true
	case <-s.done:
		return false
	}
}

// Next blocks for the next event.
func (s *StreamSource) Next(ctx context.Context) (RawEvent, error) {
	// Drain buffered events before honoring close.
	select {
	case ev := <-s.ch:
		return ev, nil
	default:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev := <-s.ch:
		return ev, nil
	case <-s.done:
		return nil, ErrEndOfStream
	}
}

// Close ends the stream; pending Next calls return ErrEndOfStream.
func (s *StreamSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}
