package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/studybuddyai/buddy/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeChatCompleted is emitted after a relayed chat stream ends and
	// its transcript is persisted.
	EventTypeChatCompleted = "buddy.chat.completed"

	// EventTypeSubmissionReceived is emitted after a contact submission is
	// stored.
	EventTypeSubmissionReceived = "buddy.submission.received"
)

// Envelope holds the fields shared by every event.
type Envelope struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
}

func newEnvelope(eventType string) Envelope {
	return Envelope{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
	}
}

// ChatCompletedEvent describes one relayed chat stream. It carries sizes
// rather than content.
type ChatCompletedEvent struct {
	Envelope

	TranscriptID string      `json:"transcript_id"`
	Model        string      `json:"model"`
	MessageCount int         `json:"message_count"`
	AnswerBytes  int         `json:"answer_bytes"`
	RequestMeta  RequestMeta `json:"request_meta"`
}

// RequestMeta captures request lifecycle metadata for a chat event.
type RequestMeta struct {
	Path        string    `json:"path,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	HTTPStatus  int       `json:"http_status"`

	// Done reports whether the upstream sent its [DONE] sentinel.
	Done bool `json:"done"`
}

// NewChatCompletedEvent builds the event for a persisted transcript.
func NewChatCompletedEvent(t *storage.Transcript, meta RequestMeta) *ChatCompletedEvent {
	meta.DurationMs = meta.CompletedAt.Sub(meta.StartedAt).Milliseconds()
	return &ChatCompletedEvent{
		Envelope:     newEnvelope(EventTypeChatCompleted),
		TranscriptID: t.ID,
		Model:        t.Model,
		MessageCount: len(t.Messages),
		AnswerBytes:  len(t.Answer),
		RequestMeta:  meta,
	}
}

// SubmissionReceivedEvent announces a stored contact submission.
type SubmissionReceivedEvent struct {
	Envelope

	SubmissionID string `json:"submission_id"`
	SchoolName   string `json:"school_name"`
}

// NewSubmissionReceivedEvent builds the event for a stored submission.
func NewSubmissionReceivedEvent(s *storage.Submission) *SubmissionReceivedEvent {
	return &SubmissionReceivedEvent{
		Envelope:     newEnvelope(EventTypeSubmissionReceived),
		SubmissionID: s.ID,
		SchoolName:   s.SchoolName,
	}
}
