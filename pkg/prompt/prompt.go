// Package prompt provides the system prompt the gateway prepends to every
// conversation. The prompt is either built in or read from a file that is
// reloaded whenever it changes on disk.
package prompt

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/studybuddyai/buddy/pkg/logger"
)

//go:embed default.md
var defaultPrompt string

// Default returns the built-in system prompt.
func Default() string {
	return strings.TrimSpace(defaultPrompt)
}

// ErrEmptyPrompt is returned when a prompt file holds only whitespace.
var ErrEmptyPrompt = errors.New("prompt file is empty")

// Store holds the current system prompt. It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	text string

	path   string
	logger *slog.Logger
}

// NewStore returns a store serving the file at path, or the built-in prompt
// when path is "".
func NewStore(path string, l *slog.Logger) (*Store, error) {
	if l == nil {
		l = logger.Nop()
	}

	s := &Store{
		text:   Default(),
		logger: l.With("component", "prompt"),
	}

	if path == "" {
		return s, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving prompt path: %w", err)
	}
	s.path = abs

	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the current prompt.
func (s *Store) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// Path returns the watched file, or "" for the built-in prompt.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the prompt file. On failure the previous prompt is kept.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading prompt file: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return fmt.Errorf("%w: %s", ErrEmptyPrompt, s.path)
	}

	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
	return nil
}

// Watch reloads the prompt whenever its file is written, created or renamed
// into place, until ctx is done. It returns nil at once for the built-in
// prompt. A failed reload is logged and the previous prompt kept.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating prompt watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch its directory
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watching prompt dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("keeping previous prompt", "error", err)
				continue
			}
			s.logger.Info("prompt reloaded", "path", s.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("prompt watcher error: %w", err)
		}
	}
}
