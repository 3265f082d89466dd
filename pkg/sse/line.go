package sse

import (
	"bytes"
	"strings"
)

// ParseLine classifies one complete line (without its "\n" terminator).
// A single trailing "\r" is stripped first.
func ParseLine(line string) Frame {
	line = strings.TrimSuffix(line, "\r")

	if strings.HasPrefix(line, ":") {
		return Frame{Kind: KindComment}
	}
	if strings.TrimSpace(line) == "" {
		return Frame{Kind: KindBlank}
	}
	if !strings.HasPrefix(line, DataPrefix) {
		return Frame{Kind: KindOther}
	}

	payload := strings.TrimSpace(line[len(DataPrefix):])
	if payload == DoneSentinel {
		return Frame{Kind: KindDone}
	}

	return Frame{Kind: KindData, Payload: payload}
}

// LineBuffer accumulates raw stream bytes and hands out complete lines.
//
// Splitting happens on the byte '\n', which never occurs inside a multi-byte
// UTF-8 sequence, so a character split across two writes is reassembled
// before its line is returned.
//
// The zero value is ready to use. A LineBuffer is not safe for concurrent use.
type LineBuffer struct {
	buf []byte
}

// Write appends p to the buffer. It never fails.
func (b *LineBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Next removes and returns the first complete line, without its "\n".
// ok is false when the buffer holds no "\n".
func (b *LineBuffer) Next() (line string, ok bool) {
	idx := bytes.IndexByte(b.buf, '\n')
	if idx < 0 {
		return "", false
	}

	line = string(b.buf[:idx])
	b.buf = b.buf[idx+1:]
	return line, true
}

// Unread puts line and its "\n" terminator back at the front of the buffer,
// so the next call to Next returns it again.
func (b *LineBuffer) Unread(line string) {
	restored := make([]byte, 0, len(line)+1+len(b.buf))
	restored = append(restored, line...)
	restored = append(restored, '\n')
	restored = append(restored, b.buf...)
	b.buf = restored
}

// Len reports the number of buffered bytes not yet returned by Next.
func (b *LineBuffer) Len() int {
	return len(b.buf)
}

// Pending returns the buffered bytes that do not yet form a complete line.
func (b *LineBuffer) Pending() string {
	return string(b.buf)
}
