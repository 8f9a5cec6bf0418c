package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/example/go-sptok/internal/tokenizer"
)

// Pipeline bundles a loaded model with the encoder and decoder built on it.
type Pipeline struct {
	Model   *tokenizer.Model
	Encoder *tokenizer.Encoder
	Decoder *tokenizer.Decoder
}

// NewPipeline builds the encoder and decoder for m.
func NewPipeline(m *tokenizer.Model, encOpts tokenizer.EncoderOptions) (*Pipeline, error) {
	enc, err := tokenizer.NewEncoder(m, encOpts)
	if err != nil {
		return nil, err
	}

	return &Pipeline{Model: m, Encoder: enc, Decoder: tokenizer.NewDecoder(m)}, nil
}

// Source yields the pipeline a request should use.
type Source interface {
	Current() *Pipeline
}

// Store holds the active pipeline and swaps it atomically on reload.
type Store struct {
	cur atomic.Pointer[Pipeline]
}

func NewStore(p *Pipeline) *Store {
	s := &Store{}
	s.cur.Store(p)
	return s
}

func (s *Store) Current() *Pipeline { return s.cur.Load() }

// Swap installs p and returns the previous pipeline.
func (s *Store) Swap(p *Pipeline) *Pipeline { return s.cur.Swap(p) }

// reloadDelay coalesces the burst of events a single file write produces.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the pipeline with load whenever the file at path is written
// or replaced. A failed reload is logged and the current pipeline stays
// active. Watching stops when ctx is done.
func (s *Store) Watch(ctx context.Context, path string, load func() (*Pipeline, error), log *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create model watcher: %w", err)
	}

	// Editors and downloaders replace files by rename, which drops a watch
	// on the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go s.watchLoop(ctx, watcher, filepath.Base(path), load, log)

	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, base string, load func() (*Pipeline, error), log *slog.Logger) {
	defer func() { _ = watcher.Close() }()

	timer := time.NewTimer(reloadDelay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != base {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			timer.Reset(reloadDelay)

		case <-timer.C:
			next, err := load()
			if err != nil {
				log.WarnContext(ctx, "model reload failed; keeping current model",
					slog.String("file", base),
					slog.String("error", err.Error()),
				)

				continue
			}

			s.Swap(next)
			log.InfoContext(ctx, "model reloaded",
				slog.String("file", base),
				slog.Int("vocabulary_size", next.Model.VocabularySize()),
			)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}

			log.WarnContext(ctx, "model watcher error", slog.String("error", err.Error()))
		}
	}
}
