// Package models contains domain models for shotnamer.
package models

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Stage identifies where in the rename pipeline an event ended.
type Stage string

const (
	StageDetected   Stage = "detected"
	StageDebouncing Stage = "debouncing"
	StageAnalyzing  Stage = "analyzing"
	StageRenaming   Stage = "renaming"
	StageDone       Stage = "done"
)

// ScreenshotEvent is a qualifying file creation observed by the watcher.
// It is consumed once by the pipeline and never persisted.
type ScreenshotEvent struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	DetectedAt time.Time `json:"detected_at"`
}

// NewScreenshotEvent creates an event for path stamped with the current time.
func NewScreenshotEvent(path string) ScreenshotEvent {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return ScreenshotEvent{
		ID:         uuid.NewString(),
		Path:       abs,
		DetectedAt: time.Now(),
	}
}

// RenamePlan describes a rename computed by the collision resolver.
// Target always lives in the same directory as Source.
type RenamePlan struct {
	Source string `json:"source"`
	Stem   string `json:"stem"`
	Target string `json:"target"`
}

// SameDir reports whether Source and Target share a parent directory.
func (p RenamePlan) SameDir() bool {
	return filepath.Dir(p.Source) == filepath.Dir(p.Target)
}

// Outcome is the terminal record of one pipeline run.
type Outcome struct {
	EventID    string        `json:"event_id"`
	Source     string        `json:"source"`
	Target     string        `json:"target,omitempty"`
	Caption    string        `json:"caption,omitempty"`
	Stage      Stage         `json:"stage"`
	Code       string        `json:"code,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Renamed reports whether the run ended with the file renamed.
func (o Outcome) Renamed() bool {
	return o.Stage == StageDone && o.Code == ""
}
