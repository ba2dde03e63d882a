package engine

import (
	"context"
	"io"
	"sync"
)

// Stream is a finite, lazily produced sequence of tokens. Recv returns io.EOF
// after the last token. A stream cannot be restarted; issue a new call.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Single returns a stream that yields tok once.
func Single(tok string) Stream { return &sliceStream{toks: []string{tok}} }

// FromSlice returns a stream over toks.
func FromSlice(toks []string) Stream { return &sliceStream{toks: toks} }

type sliceStream struct {
	mu     sync.Mutex
	toks   []string
	closed bool
}

func (s *sliceStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.toks) == 0 {
		return "", io.EOF
	}
	tok := s.toks[0]
	s.toks = s.toks[1:]
	return tok, nil
}

func (s *sliceStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Emit delivers one token to the consumer of a produced stream. It returns an
// error once the consumer has gone away.
type Emit func(tok string) error

// Produce runs fn in its own goroutine and exposes what it emits as a Stream.
// Closing the stream cancels the context passed to fn. A nil error from fn
// ends the stream with io.EOF.
func Produce(ctx context.Context, fn func(ctx context.Context, emit Emit) error) Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &pipeStream{
		ch:     make(chan string),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer close(s.done)
		s.err = fn(ctx, func(tok string) error {
			select {
			case s.ch <- tok:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return s
}

type pipeStream struct {
	ch     chan string
	done   chan struct{}
	err    error // written before done is closed
	cancel context.CancelFunc
}

func (s *pipeStream) Recv() (string, error) {
	select {
	case tok := <-s.ch:
		return tok, nil
	case <-s.done:
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
}

func (s *pipeStream) Close() error {
	s.cancel()
	return nil
}

// Item is one result of Pump: a token, or the error that ended the stream
// (io.EOF for a normal end).
type Item struct {
	Token string
	Err   error
}

// Pump reads s on a separate goroutine so callers can select on tokens
// alongside timers and contexts. The channel is closed after the terminal
// item, or without one when ctx is done first. Pump does not close s.
func Pump(ctx context.Context, s Stream) <-chan Item {
	out := make(chan Item)
	go func() {
		defer close(out)
		for {
			tok, err := s.Recv()
			if ctx.Err() != nil {
				return
			}
			it := Item{Token: tok, Err: err}
			select {
			case out <- it:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

// Collect drains s and closes it.
func Collect(s Stream) ([]string, error) {
	defer s.Close()
	var out []string
	for {
		tok, err := s.Recv()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, tok)
	}
}
