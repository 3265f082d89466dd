package chatstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const readBufferSize = 32 * 1024

// errClosed is the cancellation cause when the caller closes a stream.
var errClosed = errors.New("stream closed by caller")

// Stream is the lazy, finite sequence of snapshots of one assistant answer.
// It cannot be restarted. Next must be called from a single goroutine; Close
// may be called from any goroutine to abandon the stream.
type Stream struct {
	ctx     context.Context
	body    io.ReadCloser
	reader  io.Reader
	decoder *Decoder
	logger  *slog.Logger

	buf     []byte
	pending []string
	last    string
	err     error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newStream(ctx context.Context, body io.ReadCloser, decoder *Decoder, logger *slog.Logger) *Stream {
	return &Stream{
		ctx:  ctx,
		body: body,
		// The UTF-8 decoder holds back a multi-byte character cut by a read
		// boundary until the rest of it arrives, and replaces invalid bytes
		// with U+FFFD.
		reader:  transform.NewReader(body, unicode.UTF8.NewDecoder()),
		decoder: decoder,
		logger:  logger,
		buf:     make([]byte, readBufferSize),
	}
}

// Next blocks until the next snapshot is available and returns it. Each
// snapshot extends the previous one.
//
// Next returns io.EOF once the body is exhausted or the [DONE] sentinel has
// been seen, and an error matching ErrCanceled once the context is canceled
// or Close has been called. Snapshots decoded but not yet returned at
// cancellation are discarded.
func (s *Stream) Next() (string, error) {
	for {
		if s.err == nil {
			if err := s.ctx.Err(); err != nil {
				s.finish(canceled(err))
			} else if s.closed.Load() {
				s.finish(canceled(errClosed))
			}
		}

		if len(s.pending) > 0 {
			snap := s.pending[0]
			s.pending = s.pending[1:]
			s.last = snap
			return snap, nil
		}

		if s.err != nil {
			return "", s.err
		}

		if s.decoder.Done() {
			s.finish(io.EOF)
			continue
		}

		n, err := s.reader.Read(s.buf)
		if n > 0 {
			s.pending = append(s.pending, s.decoder.Feed(s.buf[:n])...)
		}
		if err != nil {
			s.finish(s.classifyReadErr(err))
		}
	}
}

// Snapshots adapts the stream to a range-over-func sequence. Iteration stops
// silently at the end of the stream; any other error is yielded once. The
// stream is closed when iteration ends.
func (s *Stream) Snapshots() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer s.Close()

		for {
			snap, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(snap, nil) {
				return
			}
		}
	}
}

// Last returns the most recent snapshot handed to the caller. After the
// stream ends it is the final answer.
func (s *Stream) Last() string {
	return s.last
}

// Close releases the underlying connection. It is safe to call more than
// once and concurrently with Next.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

func (s *Stream) classifyReadErr(err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return io.EOF
	case s.ctx.Err() != nil:
		return canceled(s.ctx.Err())
	case s.closed.Load():
		return canceled(errClosed)
	default:
		return fmt.Errorf("reading chat stream: %w", err)
	}
}

// finish records the terminal error and releases the body. Only the first
// terminal error is kept.
func (s *Stream) finish(err error) {
	if s.err != nil {
		return
	}
	s.err = err

	if errors.Is(err, ErrCanceled) {
		s.pending = nil
	}

	s.logger.Debug("chat stream finished",
		"reason", err,
		"done_sentinel", s.decoder.Done(),
		"snapshot_len", len(s.last),
		"buffered_bytes", s.decoder.Buffered(),
	)

	_ = s.Close()
}
