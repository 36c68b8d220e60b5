package lifecycle

import (
	"context"
	"errors"
	"io"
	"sync"
)

var (
	// ErrStreamClosed is returned by reads after Close.
	ErrStreamClosed = errors.New("lifecycle: stream closed")
	// ErrStreamConsumed is returned when a second subscriber tries to read a
	// stream; a new submission is needed to observe again.
	ErrStreamConsumed = errors.New("lifecycle: stream already consumed")
)

// Emit hands one event to the consumer. It blocks until the event is taken
// or the stream is cancelled, in which case it returns the context error.
type Emit func(Event) error

// Producer generates the events of one submission. It must return promptly
// once ctx is done.
type Producer func(ctx context.Context, emit Emit) error

// Stream is the ordered, single-pass event sequence of one submission.
// Events are delivered once, in emission order, to a single consumer.
type Stream struct {
	events chan Event
	done   chan struct{}
	cancel context.CancelFunc
	err    error

	mu         sync.Mutex
	closed     bool
	pulled     bool
	subscribed bool
}

// NewStream starts produce in its own goroutine. The producer's context is
// derived from parent and is cancelled by Close.
func NewStream(parent context.Context, produce Producer) *Stream {
	ctx, cancel := context.WithCancel(parent)
	s := &Stream{
		events: make(chan Event),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer close(s.done)
		defer close(s.events)
		s.err = produce(ctx, func(ev Event) error {
			select {
			case s.events <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return s
}

// Next returns the next event, io.EOF once the producer finished cleanly,
// or the producer's error.
func (s *Stream) Next(ctx context.Context) (Event, error) {
	s.mu.Lock()
	closed, subscribed := s.closed, s.subscribed
	s.pulled = true
	s.mu.Unlock()
	if closed {
		return nil, ErrStreamClosed
	}
	if subscribed {
		return nil, ErrStreamConsumed
	}
	select {
	case ev, ok := <-s.events:
		if !ok {
			if s.err != nil {
				return nil, s.err
			}
			return nil, io.EOF
		}
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitFor consumes events until pred matches. It returns (event, true, nil)
// on a match and (nil, false, nil) when the stream ended without one. If
// ctx is cancelled the stream is closed, stopping the producer, and the
// context error is returned.
func (s *Stream) WaitFor(ctx context.Context, pred func(Event) bool) (Event, bool, error) {
	for {
		ev, err := s.Next(ctx)
		switch {
		case err == nil:
			if pred(ev) {
				return ev, true, nil
			}
		case errors.Is(err, io.EOF):
			return nil, false, nil
		case ctx.Err() != nil:
			s.Close()
			return nil, false, ctx.Err()
		default:
			return nil, false, err
		}
	}
}

// WaitForTerminal waits for Indexed, IndexTimeout or Failed.
func (s *Stream) WaitForTerminal(ctx context.Context) (Event, bool, error) {
	return s.WaitFor(ctx, IsTerminal)
}

// Collect drains the stream.
func (s *Stream) Collect(ctx context.Context) ([]Event, error) {
	var out []Event
	for {
		ev, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
}

// Events hands the whole stream to one channel subscriber. The channel is
// closed when the producer returns; check Err afterwards. It fails with
// ErrStreamConsumed if the stream was already subscribed or read with Next.
func (s *Stream) Events() (<-chan Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.subscribed || s.pulled {
		return nil, ErrStreamConsumed
	}
	s.subscribed = true
	return s.events, nil
}

// Close cancels the producer and waits for it to exit. It is safe to call
// more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	<-s.done
}

// Done is closed once the producer returned.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err is the producer's result; valid after Done is closed.
func (s *Stream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
