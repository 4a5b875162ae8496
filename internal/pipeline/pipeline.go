// Package pipeline renames one detected screenshot: it waits for the write to
// settle, asks the caption provider for a description, turns that into a safe
// stem and moves the file to a free name next to it.
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/shotnamer/internal/caption"
	"github.com/thebtf/shotnamer/internal/naming"
	"github.com/thebtf/shotnamer/pkg/models"
)

// DefaultDebounce is how long to wait after detection before reading the file.
const DefaultDebounce = time.Second

// Config holds the per-run settings of a Pipeline.
type Config struct {
	Language string
	Debounce time.Duration
}

// Recorder receives the outcome of every run.
type Recorder interface {
	Record(models.Outcome)
}

// Pipeline processes screenshot events one at a time.
type Pipeline struct {
	provider caption.Provider
	recorder Recorder
	language string
	debounce time.Duration

	readFile func(string) ([]byte, error)
	rename   func(src, dst string) error
}

// New creates a Pipeline. recorder may be nil.
func New(provider caption.Provider, cfg Config, recorder Recorder) *Pipeline {
	if cfg.Language == "" {
		cfg.Language = caption.DefaultLanguage
	}
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}
	return &Pipeline{
		provider: provider,
		recorder: recorder,
		language: cfg.Language,
		debounce: cfg.Debounce,
		readFile: os.ReadFile,
		rename:   renameNoReplace,
	}
}

// Process runs the pipeline for ev and reports how it ended.
// Failures are logged and recorded; the source file is left untouched.
func (p *Pipeline) Process(ctx context.Context, ev models.ScreenshotEvent) models.Outcome {
	start := time.Now()
	plan, text, err := p.run(ctx, ev)

	outcome := models.Outcome{
		EventID:    ev.ID,
		Source:     ev.Path,
		Caption:    text,
		Stage:      models.StageDone,
		Duration:   time.Since(start),
		FinishedAt: time.Now(),
	}

	if err != nil {
		outcome.Error = err.Error()
		outcome.Code = string(CodeOf(err))
		var pErr *Error
		if errors.As(err, &pErr) {
			outcome.Stage = pErr.Stage
		}

		event := log.Warn()
		if Is(err, CodeAbandoned) {
			event = log.Info()
		}
		event.
			Err(err).
			Str("event_id", ev.ID).
			Str("path", ev.Path).
			Str("stage", string(outcome.Stage)).
			Str("code", outcome.Code).
			Msg("Screenshot left unchanged")
	} else {
		outcome.Target = plan.Target
		log.Info().
			Str("event_id", ev.ID).
			Str("from", filepath.Base(plan.Source)).
			Str("to", filepath.Base(plan.Target)).
			Dur("elapsed", outcome.Duration).
			Msg("Screenshot renamed")
	}

	if p.recorder != nil {
		p.recorder.Record(outcome)
	}
	return outcome
}

func (p *Pipeline) run(ctx context.Context, ev models.ScreenshotEvent) (models.RenamePlan, string, error) {
	plan := models.RenamePlan{Source: ev.Path}

	if err := p.wait(ctx); err != nil {
		return plan, "", NewAbandoned(models.StageDebouncing, ev.Path, err)
	}

	data, err := p.readFile(ev.Path)
	if err != nil {
		return plan, "", NewReadFailed(ev.Path, err)
	}

	log.Debug().
		Str("event_id", ev.ID).
		Str("path", ev.Path).
		Int("bytes", len(data)).
		Msg("Requesting caption")

	text, err := p.provider.Caption(ctx, data, p.language)
	if err != nil {
		if ctx.Err() != nil {
			return plan, "", NewAbandoned(models.StageAnalyzing, ev.Path, err)
		}
		return plan, "", NewCaptionFailed(ev.Path, err)
	}

	stem, err := naming.Sanitize(text)
	if err != nil {
		return plan, text, NewSanitizeFailed(ev.Path, text, err)
	}
	plan.Stem = stem

	ext := strings.ToLower(filepath.Ext(ev.Path))
	target, err := naming.Resolve(filepath.Dir(ev.Path), stem, ext)
	if err != nil {
		return plan, text, NewResolveFailed(ev.Path, err)
	}
	plan.Target = target

	if err := p.rename(plan.Source, plan.Target); err != nil {
		return plan, text, NewRenameFailed(ev.Path, err)
	}
	return plan, text, nil
}

// wait lets the producing process finish writing the file.
func (p *Pipeline) wait(ctx context.Context) error {
	if p.debounce == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.debounce)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
