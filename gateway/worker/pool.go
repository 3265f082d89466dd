// Package worker provides an asynchronous worker pool for persisting relayed
// chat transcripts with the provided storage.Driver and announcing them on
// the provided eventstream.Publisher.
//
// The pool decouples storage operations from the gateway's HTTP hot path so
// that the client-gateway-upstream stream is never held up by persistence.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/studybuddyai/buddy/pkg/eventstream"
	"github.com/studybuddyai/buddy/pkg/eventstream/nop"
	"github.com/studybuddyai/buddy/pkg/logger"
	"github.com/studybuddyai/buddy/pkg/storage"
)

var (
	defaultNumWorkers    uint = 3
	defaultJobQueueSize  uint = 256
	defaultStoreAttempts uint = 3
	defaultRetryBackoff       = 200 * time.Millisecond

	publishTimeout = 10 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Transcript *storage.Transcript
	Meta       eventstream.RequestMeta
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting transcripts.
	Driver storage.Driver

	// Publisher receives a chat event for every newly stored transcript.
	// Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// StoreAttempts is how many times a failed PutTranscript is tried before
	// the transcript is dropped (defaults to 3).
	StoreAttempts uint

	// RetryBackoff is the wait before the second attempt. It doubles after
	// each further failure (defaults to 200ms).
	RetryBackoff time.Duration

	Logger *slog.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu orders Enqueue against Close so that nothing is sent on a closed queue
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, errors.New("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.StoreAttempts == 0 {
		c.StoreAttempts = defaultStoreAttempts
	}

	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger.With("component", "worker-pool"),
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	if job.Transcript == nil {
		p.logger.Warn("job without transcript dropped")
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed, job dropped",
			"transcript_id", job.Transcript.ID,
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"transcript_id", job.Transcript.ID,
			"model", job.Transcript.Model,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"transcript_id", job.Transcript.ID,
			"model", job.Transcript.Model,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the gateway HTTP server has
// stopped. Close is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", "worker_id", id)
}

// processJob stores the transcript and, when it is new, publishes its
// completion event. Publishing failures are logged, not retried.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()
	t := job.Transcript

	inserted, err := p.store(ctx, t)
	if err != nil {
		p.logger.Error("async transcript storage failed",
			"transcript_id", t.ID,
			"attempts", p.config.StoreAttempts,
			"error", err,
		)
		return
	}

	if !inserted {
		p.logger.Debug("transcript already stored", "transcript_id", t.ID)
		return
	}

	p.logger.Info("transcript stored",
		"transcript_id", t.ID,
		"model", t.Model,
		"message_count", len(t.Messages),
	)

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	event := eventstream.NewChatCompletedEvent(t, job.Meta)
	if err := p.config.Publisher.PublishChat(pubCtx, event); err != nil {
		p.logger.Warn("failed to publish chat event",
			"transcript_id", t.ID,
			"event_id", event.EventID,
			"error", err,
		)
	}
}

// store puts t, retrying failures with exponential backoff.
func (p *Pool) store(ctx context.Context, t *storage.Transcript) (bool, error) {
	backoff := p.config.RetryBackoff

	var lastErr error
	for attempt := range p.config.StoreAttempts {
		if attempt > 0 {
			p.logger.Warn("retrying transcript storage",
				"transcript_id", t.ID,
				"attempt", attempt+1,
				"backoff", backoff,
				"error", lastErr,
			)
			time.Sleep(backoff)
			backoff *= 2
		}

		inserted, err := p.config.Driver.PutTranscript(ctx, t)
		if err == nil {
			return inserted, nil
		}
		lastErr = err
	}

	return false, lastErr
}
