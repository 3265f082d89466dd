// Package sqldb implements storage.Driver on top of ent's SQL dialect driver.
// Queries are built with the ent SQL builder for the driver's dialect and the
// schema is created with ent's auto-migration. It is embedded by the sqlite
// and postgres drivers.
package sqldb

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"

	"github.com/studybuddyai/buddy/pkg/storage"
)

// Driver provides storage operations over an ent SQL driver.
type Driver struct {
	drv *entsql.Driver
}

// New wraps drv. Call Migrate before use.
func New(drv *entsql.Driver) *Driver {
	return &Driver{drv: drv}
}

// DB returns the underlying database handle.
func (d *Driver) DB() *stdsql.DB {
	return d.drv.DB()
}

// Migrate creates or updates the schema. Only additive changes (new tables,
// columns, indexes) are ever made.
func (d *Driver) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(d.drv)
	if err != nil {
		return fmt.Errorf("failed to prepare migration: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (d *Driver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(d.drv.Dialect())
}

// PutTranscript stores a transcript. Returns true if it was newly inserted.
func (d *Driver) PutTranscript(ctx context.Context, t *storage.Transcript) (bool, error) {
	if t == nil {
		return false, errors.New("cannot store nil transcript")
	}
	if err := storage.CheckID("transcript", t.ID); err != nil {
		return false, err
	}

	messages, err := json.Marshal(t.Messages)
	if err != nil {
		return false, fmt.Errorf("failed to marshal messages: %w", err)
	}

	query, args := d.builder().
		Insert(transcriptsTable).
		Columns(transcriptColumns...).
		Values(t.ID, t.Model, string(messages), t.Answer, t.CreatedAt.UTC()).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing()).
		Query()

	return d.insert(ctx, query, args)
}

// GetTranscript retrieves a transcript by ID.
func (d *Driver) GetTranscript(ctx context.Context, id string) (*storage.Transcript, error) {
	query, args := d.builder().
		Select(transcriptColumns...).
		From(entsql.Table(transcriptsTable)).
		Where(entsql.EQ("id", id)).
		Query()

	list, err := d.queryTranscripts(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, storage.NotFoundError{Kind: "transcript", ID: id}
	}
	return list[0], nil
}

// ListTranscripts returns transcripts newest first. A limit of zero or less
// returns all of them.
func (d *Driver) ListTranscripts(ctx context.Context, limit int) ([]*storage.Transcript, error) {
	selector := d.builder().
		Select(transcriptColumns...).
		From(entsql.Table(transcriptsTable)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))
	if limit > 0 {
		selector.Limit(limit)
	}

	query, args := selector.Query()
	return d.queryTranscripts(ctx, query, args)
}

// PutSubmission stores a submission. Returns true if it was newly inserted.
func (d *Driver) PutSubmission(ctx context.Context, s *storage.Submission) (bool, error) {
	if s == nil {
		return false, errors.New("cannot store nil submission")
	}
	if err := storage.CheckID("submission", s.ID); err != nil {
		return false, err
	}

	query, args := d.builder().
		Insert(submissionsTable).
		Columns(submissionColumns...).
		Values(s.ID, s.Name, s.SchoolName, s.Email, s.Message, s.CreatedAt.UTC()).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing()).
		Query()

	return d.insert(ctx, query, args)
}

// GetSubmission retrieves a submission by ID.
func (d *Driver) GetSubmission(ctx context.Context, id string) (*storage.Submission, error) {
	query, args := d.builder().
		Select(submissionColumns...).
		From(entsql.Table(submissionsTable)).
		Where(entsql.EQ("id", id)).
		Query()

	list, err := d.querySubmissions(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, storage.NotFoundError{Kind: "submission", ID: id}
	}
	return list[0], nil
}

// ListSubmissions returns submissions newest first.
func (d *Driver) ListSubmissions(ctx context.Context) ([]*storage.Submission, error) {
	query, args := d.builder().
		Select(submissionColumns...).
		From(entsql.Table(submissionsTable)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Query()

	return d.querySubmissions(ctx, query, args)
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.drv.Close()
}

func (d *Driver) insert(ctx context.Context, query string, args []any) (bool, error) {
	var res stdsql.Result
	if err := d.drv.Exec(ctx, query, args, &res); err != nil {
		return false, fmt.Errorf("failed to insert: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (d *Driver) queryTranscripts(ctx context.Context, query string, args []any) ([]*storage.Transcript, error) {
	rows := &entsql.Rows{}
	if err := d.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer rows.Close()

	var out []*storage.Transcript
	for rows.Next() {
		var (
			t        storage.Transcript
			messages string
			created  time.Time
		)
		if err := rows.Scan(&t.ID, &t.Model, &messages, &t.Answer, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(messages), &t.Messages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal messages of %s: %w", t.ID, err)
		}
		t.CreatedAt = created.UTC()
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (d *Driver) querySubmissions(ctx context.Context, query string, args []any) ([]*storage.Submission, error) {
	rows := &entsql.Rows{}
	if err := d.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var out []*storage.Submission
	for rows.Next() {
		var (
			s       storage.Submission
			created time.Time
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.SchoolName, &s.Email, &s.Message, &created); err != nil {
			return nil, err
		}
		s.CreatedAt = created.UTC()
		out = append(out, &s)
	}
	return out, rows.Err()
}
