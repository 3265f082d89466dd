// Package storage persists completed chat transcripts and contact form
// submissions. Driver is implemented by the inmemory, sqlite and postgres
// packages.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studybuddyai/buddy/pkg/llm"
)

// Driver defines the interface for persisting and retrieving transcripts and
// submissions in a storage backend.
type Driver interface {
	// PutTranscript stores a transcript. Returns true if it was newly
	// inserted, false if a transcript with the same ID already exists, in
	// which case this is a no-op.
	PutTranscript(ctx context.Context, t *Transcript) (bool, error)

	// GetTranscript retrieves a transcript by ID.
	GetTranscript(ctx context.Context, id string) (*Transcript, error)

	// ListTranscripts returns at most limit transcripts, newest first.
	// A limit <= 0 returns all of them.
	ListTranscripts(ctx context.Context, limit int) ([]*Transcript, error)

	// PutSubmission stores a submission with the same semantics as
	// PutTranscript.
	PutSubmission(ctx context.Context, s *Submission) (bool, error)

	// GetSubmission retrieves a submission by ID.
	GetSubmission(ctx context.Context, id string) (*Submission, error)

	// ListSubmissions returns every submission, newest first.
	ListSubmissions(ctx context.Context) ([]*Submission, error)

	// Close closes the store and releases any resources.
	Close() error
}

// Transcript is one completed exchange relayed by the gateway: the history
// the client sent and the answer streamed back.
type Transcript struct {
	ID        string        `json:"id"`
	Model     string        `json:"model"`
	Messages  []llm.Message `json:"messages"`
	Answer    string        `json:"answer"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewTranscript returns a transcript with a fresh ID and creation time.
func NewTranscript(model string, messages []llm.Message, answer string) *Transcript {
	return &Transcript{
		ID:        uuid.NewString(),
		Model:     model,
		Messages:  llm.CloneMessages(messages),
		Answer:    answer,
		CreatedAt: time.Now().UTC(),
	}
}

// Submission is a contact form entry left by a school.
type Submission struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SchoolName string    `json:"school_name"`
	Email      string    `json:"email"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// ErrInvalidSubmission is returned by Submission.Validate.
var ErrInvalidSubmission = errors.New("invalid submission")

// NewSubmission returns a submission with a fresh ID and creation time.
func NewSubmission(name, schoolName, email, message string) *Submission {
	return &Submission{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(name),
		SchoolName: strings.TrimSpace(schoolName),
		Email:      strings.TrimSpace(email),
		Message:    strings.TrimSpace(message),
		CreatedAt:  time.Now().UTC(),
	}
}

// Validate checks that the required fields are present.
func (s *Submission) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidSubmission)
	case s.SchoolName == "":
		return fmt.Errorf("%w: school_name is required", ErrInvalidSubmission)
	case s.Email == "":
		return fmt.Errorf("%w: email is required", ErrInvalidSubmission)
	}
	return nil
}

// CheckID is used by drivers to reject records that were not created with
// NewTranscript or NewSubmission.
func CheckID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("cannot store %s without an id", kind)
	}
	return nil
}
