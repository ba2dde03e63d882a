package resolver

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const minInterval = 10 * time.Millisecond

// watchLoop resolves on start, then on every tick or wake signal. The cursor
// only advances after onChange succeeds, so a failed reload is retried on the
// next tick with the same URI.
type watchLoop struct {
	interval time.Duration
	resolve  func(ctx context.Context) (string, error)
	onChange OnChange
	wake     <-chan struct{}
	log      zerolog.Logger

	cursor string
	seen   bool
}

func (w *watchLoop) run(ctx context.Context) {
	interval := w.interval
	if interval < minInterval {
		interval = minInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		w.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

func (w *watchLoop) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	uri, err := w.resolve(ctx)
	if err != nil {
		// continue watching despite errors
		w.log.Warn().Err(err).Msg("watch: resolve failed")
		return
	}
	if w.seen && uri == w.cursor {
		return
	}
	if err := w.onChange(ctx, uri); err != nil {
		w.log.Error().Err(err).Str("uri", uri).Msg("watch: reload failed, will retry")
		return
	}
	if w.seen {
		w.log.Info().Str("from", w.cursor).Str("to", uri).Msg("watch: model changed")
	}
	w.cursor, w.seen = uri, true
}
