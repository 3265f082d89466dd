package testutils

import (
	"context"
	"sync"

	"github.com/studybuddyai/buddy/pkg/eventstream"
)

// RecordingPublisher is an eventstream.Publisher that keeps every event it
// is given.
type RecordingPublisher struct {
	mu          sync.Mutex
	chats       []*eventstream.ChatCompletedEvent
	submissions []*eventstream.SubmissionReceivedEvent

	// Err, when set, is returned by every publish call.
	Err error
}

// NewRecordingPublisher creates an empty recording publisher.
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (p *RecordingPublisher) PublishChat(_ context.Context, event *eventstream.ChatCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.chats = append(p.chats, event)
	return nil
}

func (p *RecordingPublisher) PublishSubmission(_ context.Context, event *eventstream.SubmissionReceivedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.submissions = append(p.submissions, event)
	return nil
}

// Chats returns the chat events published so far.
func (p *RecordingPublisher) Chats() []*eventstream.ChatCompletedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.ChatCompletedEvent(nil), p.chats...)
}

// Submissions returns the submission events published so far.
func (p *RecordingPublisher) Submissions() []*eventstream.SubmissionReceivedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.SubmissionReceivedEvent(nil), p.submissions...)
}

func (p *RecordingPublisher) Close() error {
	return nil
}
