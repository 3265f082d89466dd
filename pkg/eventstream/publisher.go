// Package eventstream publishes gateway events (completed chats, received
// submissions) to an event stream backend.
package eventstream

import "context"

// Publisher publishes events to an event stream backend.
type Publisher interface {
	PublishChat(ctx context.Context, event *ChatCompletedEvent) error
	PublishSubmission(ctx context.Context, event *SubmissionReceivedEvent) error
	Close() error
}
