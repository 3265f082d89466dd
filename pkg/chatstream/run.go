package chatstream

import (
	"context"
	"errors"

	"github.com/studybuddyai/buddy/pkg/llm"
)

// Sender starts a snapshot stream for a conversation. *Client implements it.
type Sender interface {
	SendConversation(ctx context.Context, history []llm.Message) (*Stream, error)
}

// UpdateFunc receives the full conversation after every change.
type UpdateFunc func(messages []llm.Message)

// Run performs one exchange: it appends text as a user message, streams the
// answer into t and calls onUpdate after each change. It returns the final
// answer.
//
// A canceled exchange keeps the partial answer and returns an error matching
// ErrCanceled. Any other failure appends DefaultApology and is returned.
func Run(ctx context.Context, sender Sender, t *Transcript, text string, onUpdate UpdateFunc) (string, error) {
	if onUpdate == nil {
		onUpdate = func([]llm.Message) {}
	}

	history, err := t.Begin(text)
	if err != nil {
		return "", err
	}
	defer t.End()
	onUpdate(history)

	stream, err := sender.SendConversation(ctx, history)
	if err != nil {
		return "", fail(t, err, onUpdate)
	}

	for snapshot, err := range stream.Snapshots() {
		if err != nil {
			return stream.Last(), fail(t, err, onUpdate)
		}
		onUpdate(t.Merge(snapshot))
	}

	return stream.Last(), nil
}

func fail(t *Transcript, err error, onUpdate UpdateFunc) error {
	if !errors.Is(err, ErrCanceled) {
		onUpdate(t.Fail(DefaultApology))
	}
	return err
}
