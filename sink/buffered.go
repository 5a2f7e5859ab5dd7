// Package sink provides EventSink implementations bridging the relay to
// actual consumers: a buffered writer for websocket connections and an
// in-memory timeline for tooling and tests.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"styx-chat/domain/event"
	"styx-chat/errors"
)

// WriteFunc delivers one envelope to the underlying transport.
type WriteFunc func(e event.Envelope) error

// Buffered decouples event production from a slow transport. Events are
// queued on a bounded channel and drained by a single writer goroutine, so
// broadcast paths never block on one client's socket. When the buffer is
// full, Consume waits for a slot until the caller's context expires, then
// fails with ErrSendBufferFull. A write failure closes the sink.
type Buffered struct {
	log    *slog.Logger
	write  WriteFunc
	events chan event.Envelope
	done   chan struct{}
	once   sync.Once
}

func NewBuffered(log *slog.Logger, write WriteFunc, size int) *Buffered {
	s := &Buffered{
		log:    log,
		write:  write,
		events: make(chan event.Envelope, size),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *Buffered) pump() {
	for {
		select {
		case <-s.done:
			return
		case e := <-s.events:
			if err := s.write(e); err != nil {
				// The transport is gone. Closing here fails pending and
				// future Consume calls instead of letting them queue into
				// a buffer nobody drains.
				s.log.Debug("sink write failed", "event", e.EventType(), "error", err)
				s.Close()
				return
			}
		}
	}
}

func (s *Buffered) Consume(ctx context.Context, e event.Envelope) error {
	select {
	case <-s.done:
		return fmt.Errorf("sink closed")
	default:
	}
	select {
	case s.events <- e:
		return nil
	case <-s.done:
		return fmt.Errorf("sink closed")
	case <-ctx.Done():
		return fmt.Errorf("event %s dropped: %w", e.EventType(), errors.ErrSendBufferFull)
	}
}

// Close stops the writer goroutine. Idempotent; queued events not yet
// written are discarded.
func (s *Buffered) Close() {
	s.once.Do(func() { close(s.done) })
}

// Done is closed once the sink has shut down, whether by Close or by a
// write failure. Transports watch it to tear down their side.
func (s *Buffered) Done() <-chan struct{} {
	return s.done
}
