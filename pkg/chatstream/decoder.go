package chatstream

import (
	"log/slog"
	"strings"

	"github.com/studybuddyai/buddy/pkg/llm"
	"github.com/studybuddyai/buddy/pkg/logger"
	"github.com/studybuddyai/buddy/pkg/sse"
)

// streamState is owned by exactly one Decoder and lives as long as one read
// loop. buffer holds bytes not yet resolved into complete lines; accumulated
// holds the assistant text so far and never shrinks.
type streamState struct {
	buffer      sse.LineBuffer
	accumulated strings.Builder
}

// Decoder turns the raw bytes of one chat-completion SSE response into
// accumulated-text snapshots. Each non-empty delta extends the accumulated
// text, so every snapshot starts with the one before it.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	state streamState
	done  bool

	// stalls counts consecutive decode failures without progress.
	stalls     int
	stallLimit int

	logger *slog.Logger
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithDecoderLogger sets the logger receiving decode diagnostics.
func WithDecoderLogger(l *slog.Logger) DecoderOption {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithStallLimit drops an unparseable line once it has failed to decode n
// consecutive times. Zero, the default, keeps re-buffering it until the
// stream ends.
func WithStallLimit(n int) DecoderOption {
	return func(d *Decoder) {
		d.stallLimit = max(n, 0)
	}
}

// NewDecoder returns a Decoder with an empty state.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{logger: logger.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed appends chunk to the line buffer, processes every complete line and
// returns the snapshots produced, in order. Once the [DONE] sentinel has been
// seen Feed ignores further input and returns nil.
//
// A data line whose payload is not valid JSON is put back in the buffer and
// processing stops until the next chunk arrives, on the assumption that the
// payload was cut by a chunk boundary.
func (d *Decoder) Feed(chunk []byte) []string {
	if d.done {
		return nil
	}

	_, _ = d.state.buffer.Write(chunk)

	var snapshots []string
	for {
		line, ok := d.state.buffer.Next()
		if !ok {
			break
		}

		frame := sse.ParseLine(line)
		switch frame.Kind {
		case sse.KindDone:
			d.done = true
			return snapshots
		case sse.KindData:
		default:
			continue
		}

		delta, err := llm.ParseDelta([]byte(frame.Payload))
		if err != nil {
			if d.rebuffer(line, err) {
				break
			}
			continue
		}
		d.stalls = 0

		if delta == "" {
			continue
		}

		d.state.accumulated.WriteString(delta)
		snapshots = append(snapshots, d.state.accumulated.String())
	}

	return snapshots
}

// rebuffer handles a line that failed to parse. It reports whether the line
// was put back, in which case the caller must wait for more bytes.
func (d *Decoder) rebuffer(line string, err error) bool {
	decodeErr := &DecodeError{Line: line, Err: err}
	d.stalls++

	if d.stallLimit > 0 && d.stalls >= d.stallLimit {
		d.logger.Warn("dropping undecodable stream line",
			"error", decodeErr,
			"attempts", d.stalls,
		)
		d.stalls = 0
		return false
	}

	d.logger.Debug("re-buffering stream line", "error", decodeErr)
	d.state.buffer.Unread(line)
	return true
}

// Done reports whether the [DONE] sentinel has been observed.
func (d *Decoder) Done() bool {
	return d.done
}

// Accumulated returns the assistant text decoded so far.
func (d *Decoder) Accumulated() string {
	return d.state.accumulated.String()
}

// Buffered reports the number of bytes waiting for a line terminator.
func (d *Decoder) Buffered() int {
	return d.state.buffer.Len()
}
