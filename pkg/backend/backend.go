// Package backend opens the storage driver and event publisher selected by
// configuration. It is shared by the serve commands.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/studybuddyai/buddy/pkg/cliui"
	"github.com/studybuddyai/buddy/pkg/eventstream"
	"github.com/studybuddyai/buddy/pkg/eventstream/kafka"
	"github.com/studybuddyai/buddy/pkg/eventstream/nop"
	"github.com/studybuddyai/buddy/pkg/logger"
	"github.com/studybuddyai/buddy/pkg/storage"
	"github.com/studybuddyai/buddy/pkg/storage/inmemory"
	"github.com/studybuddyai/buddy/pkg/storage/postgres"
	"github.com/studybuddyai/buddy/pkg/storage/sqlite"
)

// Driver names.
const (
	DriverInMemory = "inmemory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Publisher names.
const (
	PublisherNone  = "none"
	PublisherKafka = "kafka"
)

// StorageOptions selects and configures a storage driver.
type StorageOptions struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// EventsOptions selects and configures an event publisher.
type EventsOptions struct {
	Provider string
	Brokers  []string
	Topic    string
}

// OpenDriver opens the configured storage driver. An empty driver name
// selects in-memory storage.
func OpenDriver(ctx context.Context, opts StorageOptions, l *slog.Logger) (storage.Driver, error) {
	if l == nil {
		l = logger.Nop()
	}

	switch opts.Driver {
	case "", DriverInMemory:
		l.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case DriverSQLite:
		if opts.SQLitePath == "" {
			return nil, errors.New("sqlite storage requires a database path")
		}
		driver, err := sqlite.NewDriver(ctx, opts.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		l.Info("using SQLite storage", "path", opts.SQLitePath)
		return driver, nil

	case DriverPostgres:
		if opts.PostgresDSN == "" {
			return nil, errors.New("postgres storage requires a connection string")
		}
		driver, err := postgres.NewDriver(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		l.Info("using PostgreSQL storage")
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// OpenPublisher creates the configured event publisher. An empty provider
// selects the no-op publisher.
func OpenPublisher(opts EventsOptions, l *slog.Logger) (eventstream.Publisher, error) {
	if l == nil {
		l = logger.Nop()
	}

	switch opts.Provider {
	case "", PublisherNone:
		return nop.NewPublisher(), nil

	case PublisherKafka:
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: opts.Brokers,
			Topic:   opts.Topic,
			Logger:  l,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		l.Info("publishing events to kafka", "brokers", opts.Brokers, "topic", opts.Topic)
		return p, nil

	default:
		return nil, fmt.Errorf("unknown events provider %q", opts.Provider)
	}
}

// Open opens the storage driver and then the event publisher. When progress
// is non-nil each stage is shown there as a step with a ✓ or ✗ mark, and the
// stages' own log lines are suppressed so they do not tear the spinner line.
// The driver is closed again if the publisher cannot be opened.
func Open(ctx context.Context, progress io.Writer, so StorageOptions, eo EventsOptions, l *slog.Logger) (storage.Driver, eventstream.Publisher, error) {
	step := func(_ string, fn func() error) error { return fn() }
	if progress != nil {
		step = func(msg string, fn func() error) error { return cliui.Step(progress, msg, fn) }
		l = logger.Nop()
	}

	var driver storage.Driver
	err := step(fmt.Sprintf("Opening %s storage", driverName(so.Driver)), func() error {
		var err error
		driver, err = OpenDriver(ctx, so, l)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	var publisher eventstream.Publisher
	err = step(fmt.Sprintf("Starting %s event publisher", publisherName(eo.Provider)), func() error {
		var err error
		publisher, err = OpenPublisher(eo, l)
		return err
	})
	if err != nil {
		_ = driver.Close()
		return nil, nil, err
	}

	return driver, publisher, nil
}

func driverName(name string) string {
	if name == "" {
		return DriverInMemory
	}
	return name
}

func publisherName(name string) string {
	if name == "" {
		return PublisherNone
	}
	return name
}
