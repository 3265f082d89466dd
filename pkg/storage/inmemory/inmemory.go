// Package inmemory provides a map-backed storage.Driver for tests and for
// running the gateway without a database.
package inmemory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/studybuddyai/buddy/pkg/llm"
	"github.com/studybuddyai/buddy/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards every map below
	mu sync.RWMutex

	transcripts map[string]*storage.Transcript
	submissions map[string]*storage.Submission

	// seq orders records inserted within the same clock tick
	seq   uint64
	order map[string]uint64
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		transcripts: make(map[string]*storage.Transcript),
		submissions: make(map[string]*storage.Submission),
		order:       make(map[string]uint64),
	}
}

// PutTranscript stores a copy of t.
func (d *Driver) PutTranscript(_ context.Context, t *storage.Transcript) (bool, error) {
	if t == nil {
		return false, errors.New("cannot store nil transcript")
	}
	if err := storage.CheckID("transcript", t.ID); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.transcripts[t.ID]; ok {
		return false, nil
	}

	d.transcripts[t.ID] = copyTranscript(t)
	d.stamp("t:" + t.ID)
	return true, nil
}

// GetTranscript retrieves a transcript by ID.
func (d *Driver) GetTranscript(_ context.Context, id string) (*storage.Transcript, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.transcripts[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: "transcript", ID: id}
	}
	return copyTranscript(t), nil
}

// ListTranscripts returns transcripts newest first.
func (d *Driver) ListTranscripts(_ context.Context, limit int) ([]*storage.Transcript, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*storage.Transcript, 0, len(d.transcripts))
	for _, t := range d.transcripts {
		out = append(out, copyTranscript(t))
	}

	slices.SortFunc(out, func(a, b *storage.Transcript) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(d.order["t:"+b.ID], d.order["t:"+a.ID])
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PutSubmission stores a copy of s.
func (d *Driver) PutSubmission(_ context.Context, s *storage.Submission) (bool, error) {
	if s == nil {
		return false, errors.New("cannot store nil submission")
	}
	if err := storage.CheckID("submission", s.ID); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.submissions[s.ID]; ok {
		return false, nil
	}

	cp := *s
	d.submissions[s.ID] = &cp
	d.stamp("s:" + s.ID)
	return true, nil
}

// GetSubmission retrieves a submission by ID.
func (d *Driver) GetSubmission(_ context.Context, id string) (*storage.Submission, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.submissions[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: "submission", ID: id}
	}
	cp := *s
	return &cp, nil
}

// ListSubmissions returns submissions newest first.
func (d *Driver) ListSubmissions(_ context.Context) ([]*storage.Submission, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*storage.Submission, 0, len(d.submissions))
	for _, s := range d.submissions {
		cp := *s
		out = append(out, &cp)
	}

	slices.SortFunc(out, func(a, b *storage.Submission) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(d.order["s:"+b.ID], d.order["s:"+a.ID])
	})
	return out, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

func (d *Driver) stamp(key string) {
	d.seq++
	d.order[key] = d.seq
}

func copyTranscript(t *storage.Transcript) *storage.Transcript {
	cp := *t
	cp.Messages = llm.CloneMessages(t.Messages)
	return &cp
}
