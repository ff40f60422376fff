// Package cleaning normalizes a fetched table into one that is complete
// and numeric on the required column set.
package cleaning

import (
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"validator-queue-etl/internal/domain"
)

// DefaultRequiredColumns is the column set every published row must be
// complete on.
var DefaultRequiredColumns = []string{
	"validators",
	"entry_queue",
	"entry_wait",
	"exit_queue",
	"exit_wait",
	"supply",
	"staked_amount",
	"staked_percent",
	"apr",
}

// DefaultOptionalColumns are coerced when the feed carries them but
// never cause a row to be dropped. Older feed versions include them,
// newer ones do not.
var DefaultOptionalColumns = []string{"churn", "entry_churn", "exit_churn"}

// Cleaner coerces column values to numeric and drops incomplete rows.
type Cleaner struct {
	required []string
	optional []string
	logger   *zap.Logger
}

// CleanerOption configures Cleaner.
type CleanerOption func(*Cleaner)

// WithRequiredColumns overrides the required column set.
func WithRequiredColumns(cols []string) CleanerOption {
	return func(c *Cleaner) {
		c.required = cols
	}
}

// WithOptionalColumns overrides the opportunistically coerced column set.
func WithOptionalColumns(cols []string) CleanerOption {
	return func(c *Cleaner) {
		c.optional = cols
	}
}

// NewCleaner creates a cleaner with the default column sets.
func NewCleaner(logger *zap.Logger, opts ...CleanerOption) *Cleaner {
	c := &Cleaner{
		required: DefaultRequiredColumns,
		optional: DefaultOptionalColumns,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean returns a new table where every required column value is a
// float64 and every row is complete on the required set. It never
// fails; at worst the result is empty. The input table is not modified.
//
// A required column absent from the table counts as missing for every
// row, so a non-empty table missing a required column cleans to empty.
func (c *Cleaner) Clean(t *domain.Table) *domain.Table {
	var absent []string
	for _, col := range c.required {
		if !t.HasColumn(col) {
			absent = append(absent, col)
		}
	}
	if len(absent) > 0 {
		c.logger.Warn("required columns absent from feed; all rows will be dropped",
			zap.Strings("columns", absent))
	}

	out := t.CloneSchema()
	for _, row := range t.Rows {
		cleaned, ok := c.cleanRow(row)
		if !ok {
			continue
		}
		out.Rows = append(out.Rows, cleaned)
	}

	retention := 100.0
	if t.Len() > 0 {
		retention = 100 * float64(out.Len()) / float64(t.Len())
	}
	c.logger.Info("table cleaned",
		zap.Int("rows_before", t.Len()),
		zap.Int("rows_after", out.Len()),
		zap.Float64("retention_pct", retention))
	return out
}

// cleanRow coerces one row. ok is false when any required column is
// missing or fails coercion.
func (c *Cleaner) cleanRow(row domain.Record) (domain.Record, bool) {
	cleaned := row.Clone()
	for _, col := range c.required {
		n, ok := coerceNumeric(row[col])
		if !ok {
			return nil, false
		}
		cleaned[col] = n
	}
	for _, col := range c.optional {
		v, present := row[col]
		if !present {
			continue
		}
		if n, ok := coerceNumeric(v); ok {
			cleaned[col] = n
		} else {
			cleaned[col] = nil
		}
	}
	return cleaned, true
}

// coerceNumeric converts a feed value to float64. Anything that does
// not parse, including nil and absent values, counts as missing.
func coerceNumeric(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
