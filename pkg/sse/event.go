// Package sse provides the line-level framing used to consume chat-completion
// streams delivered as Server-Sent Events.
//
// Chat providers emit one "data: <json>" line per delta and finish with a
// "data: [DONE]" sentinel. Network reads can deliver any number of lines, or
// a fraction of one, so lines are only interpreted once they have been fully
// assembled by a LineBuffer.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

const (
	// DataPrefix is the literal prefix of a data line. The space is part of
	// the prefix: "data:x" lines are not treated as data.
	DataPrefix = "data: "

	// DoneSentinel is the payload that terminates a chat-completion stream.
	DoneSentinel = "[DONE]"
)

// Kind classifies a single stream line.
type Kind int

const (
	// KindBlank is an empty or whitespace-only line.
	KindBlank Kind = iota

	// KindComment is a ":"-prefixed line (comments and heartbeats).
	KindComment

	// KindData is a "data: " line carrying a payload.
	KindData

	// KindDone is the "data: [DONE]" sentinel.
	KindDone

	// KindOther is any other field line ("event:", "id:", "retry:", ...).
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindComment:
		return "comment"
	case KindData:
		return "data"
	case KindDone:
		return "done"
	default:
		return "other"
	}
}

// Frame is a classified stream line.
type Frame struct {
	Kind Kind

	// Payload is the trimmed text after DataPrefix. Only set for KindData.
	Payload string
}
