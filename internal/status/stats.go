// Package status keeps in-memory counters and recent rename outcomes and
// optionally serves them over HTTP.
package status

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thebtf/shotnamer/pkg/models"
)

// DefaultHistorySize is how many recent outcomes are kept.
const DefaultHistorySize = 100

const meterName = "github.com/thebtf/shotnamer"

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Uptime   string           `json:"uptime"`
	Detected int64            `json:"detected"`
	Skipped  int64            `json:"skipped"`
	Dropped  int64            `json:"dropped"`
	Renamed  int64            `json:"renamed"`
	Failed   int64            `json:"failed"`
	ByCode   map[string]int64 `json:"by_code"`
}

// Stats counts watcher and pipeline activity. Nothing is persisted.
type Stats struct {
	startTime time.Time
	detected  atomic.Int64
	skipped   atomic.Int64
	dropped   atomic.Int64
	renamed   atomic.Int64
	failed    atomic.Int64

	mu       sync.Mutex
	byCode   map[string]int64
	history  []models.Outcome
	next     int
	full     bool
	onRecord []func(models.Outcome)

	eventCounter   metric.Int64Counter
	outcomeCounter metric.Int64Counter
	durationHist   metric.Float64Histogram
}

// NewStats creates a tracker keeping up to historySize outcomes.
func NewStats(historySize int) *Stats {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	s := &Stats{
		startTime: time.Now(),
		byCode:    make(map[string]int64),
		history:   make([]models.Outcome, historySize),
	}

	meter := otel.Meter(meterName)
	var err error
	if s.eventCounter, err = meter.Int64Counter("shotnamer.events",
		metric.WithDescription("Filesystem creation events by disposition")); err != nil {
		log.Warn().Err(err).Msg("Failed to create events counter")
	}
	if s.outcomeCounter, err = meter.Int64Counter("shotnamer.outcomes",
		metric.WithDescription("Finished pipeline runs by result code")); err != nil {
		log.Warn().Err(err).Msg("Failed to create outcomes counter")
	}
	if s.durationHist, err = meter.Float64Histogram("shotnamer.pipeline.duration",
		metric.WithDescription("Pipeline run duration"), metric.WithUnit("s")); err != nil {
		log.Warn().Err(err).Msg("Failed to create duration histogram")
	}
	return s
}

// OnRecord registers fn to be called with every recorded outcome.
func (s *Stats) OnRecord(fn func(models.Outcome)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRecord = append(s.onRecord, fn)
}

// RecordDetected counts a screenshot accepted for processing.
func (s *Stats) RecordDetected() {
	s.detected.Add(1)
	s.addEvent("detected")
}

// RecordSkipped counts a created file that is not a screenshot.
func (s *Stats) RecordSkipped() {
	s.skipped.Add(1)
	s.addEvent("skipped")
}

// RecordDropped counts a screenshot that could not be queued.
func (s *Stats) RecordDropped() {
	s.dropped.Add(1)
	s.addEvent("dropped")
}

func (s *Stats) addEvent(disposition string) {
	if s.eventCounter != nil {
		s.eventCounter.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("disposition", disposition)))
	}
}

// Record stores a finished pipeline run.
func (s *Stats) Record(outcome models.Outcome) {
	code := outcome.Code
	if outcome.Renamed() {
		s.renamed.Add(1)
		code = "OK"
	} else {
		s.failed.Add(1)
	}

	if s.outcomeCounter != nil {
		s.outcomeCounter.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("code", code)))
	}
	if s.durationHist != nil {
		s.durationHist.Record(context.Background(), outcome.Duration.Seconds())
	}

	s.mu.Lock()
	s.byCode[code]++
	s.history[s.next] = outcome
	s.next = (s.next + 1) % len(s.history)
	if s.next == 0 {
		s.full = true
	}
	listeners := append([]func(models.Outcome){}, s.onRecord...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(outcome)
	}
}

// Recent returns up to limit outcomes, newest first.
// A limit of zero or less returns everything kept.
func (s *Stats) Recent(limit int) []models.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.next
	if s.full {
		size = len(s.history)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]models.Outcome, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.next - i + len(s.history)) % len(s.history)
		out = append(out, s.history[idx])
	}
	return out
}

// Capacity returns how many outcomes the history keeps.
func (s *Stats) Capacity() int {
	return len(s.history)
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	byCode := make(map[string]int64, len(s.byCode))
	for k, v := range s.byCode {
		byCode[k] = v
	}
	s.mu.Unlock()

	return Snapshot{
		Uptime:   time.Since(s.startTime).Round(time.Second).String(),
		Detected: s.detected.Load(),
		Skipped:  s.skipped.Load(),
		Dropped:  s.dropped.Load(),
		Renamed:  s.renamed.Load(),
		Failed:   s.failed.Load(),
		ByCode:   byCode,
	}
}
