// Package freshness decides whether a fetched snapshot is recent enough
// to publish. The gate only reports; the override policy lives with the
// orchestrator.
package freshness

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"validator-queue-etl/internal/domain"
)

// DefaultWindow is how far back the latest entry may be before the
// snapshot counts as stale.
const DefaultWindow = 7 * 24 * time.Hour

// ErrNoUsableDate is returned when a date column exists but no value in
// it parses, so the latest entry cannot be determined. This is fatal and
// distinct from a Stale outcome.
var ErrNoUsableDate = errors.New("cannot determine latest date")

// dateColumns lists accepted date fields in priority order.
var dateColumns = []string{"timestamp", "date"}

// dateLayouts lists accepted datetime layouts. Layouts without zone
// information are parsed as UTC; the value is never reinterpreted.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Kind tags a verification outcome.
type Kind int

const (
	// Pass means the latest entry is within the staleness window.
	Pass Kind = iota
	// Stale means the latest entry is older than the window allows.
	Stale
	// Skipped means the table has no date column to verify against.
	Skipped
)

// String returns the outcome tag name.
func (k Kind) String() string {
	switch k {
	case Pass:
		return "pass"
	case Stale:
		return "stale"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome is the result of verifying a table.
type Outcome struct {
	Kind      Kind
	Latest    time.Time // latest parsed entry, set for Pass and Stale
	Threshold time.Time // staleness cutoff, set for Pass and Stale
	Reason    string    // set for Skipped
}

// Gate verifies snapshot freshness.
type Gate struct {
	window time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// GateOption configures Gate.
type GateOption func(*Gate)

// WithWindow sets the staleness window.
func WithWindow(d time.Duration) GateOption {
	return func(g *Gate) {
		g.window = d
	}
}

// WithClock sets a custom clock function for deterministic verification.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		g.now = now
	}
}

// NewGate creates a freshness gate with a 7-day default window.
func NewGate(logger *zap.Logger, opts ...GateOption) *Gate {
	g := &Gate{
		window: DefaultWindow,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Verify inspects the table's date column and reports Pass, Stale, or
// Skipped. Values that fail to parse are ignored for the maximum; if
// none parse at all the gate fails with ErrNoUsableDate.
func (g *Gate) Verify(t *domain.Table) (Outcome, error) {
	col, ok := selectDateColumn(t)
	if !ok {
		g.logger.Info("freshness check skipped", zap.String("reason", "no date column"))
		return Outcome{Kind: Skipped, Reason: "no date column"}, nil
	}

	var latest time.Time
	var parsed int
	for _, row := range t.Rows {
		ts, ok := parseDate(row[col])
		if !ok {
			continue
		}
		parsed++
		if ts.After(latest) {
			latest = ts
		}
	}
	if parsed == 0 {
		return Outcome{}, fmt.Errorf("%w: column %q has no parseable values", ErrNoUsableDate, col)
	}

	threshold := g.now().UTC().Add(-g.window)
	if latest.Before(threshold) {
		g.logger.Warn("snapshot is stale",
			zap.String("column", col),
			zap.Time("latest", latest),
			zap.Time("threshold", threshold))
		return Outcome{Kind: Stale, Latest: latest, Threshold: threshold}, nil
	}

	g.logger.Info("snapshot is fresh",
		zap.String("column", col),
		zap.Time("latest", latest))
	return Outcome{Kind: Pass, Latest: latest, Threshold: threshold}, nil
}

// selectDateColumn picks the date field by priority: timestamp, then date.
func selectDateColumn(t *domain.Table) (string, bool) {
	for _, col := range dateColumns {
		if t.HasColumn(col) {
			return col, true
		}
	}
	return "", false
}

// parseDate parses a single feed value as a UTC datetime. Strings are
// tried against the accepted layouts; numbers are taken as Unix seconds.
func parseDate(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		for _, layout := range dateLayouts {
			if ts, err := time.ParseInLocation(layout, val, time.UTC); err == nil {
				return ts.UTC(), true
			}
		}
	case json.Number:
		if sec, err := val.Int64(); err == nil && sec > 0 {
			return time.Unix(sec, 0).UTC(), true
		}
	}
	return time.Time{}, false
}
