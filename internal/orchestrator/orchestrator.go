// Package orchestrator sequences the ETL stages:
// fetch → verify → clean → publish.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"validator-queue-etl/internal/domain"
	"validator-queue-etl/internal/dune"
	"validator-queue-etl/internal/freshness"
)

// Stage names a pipeline stage.
type Stage string

// Pipeline stages in execution order, plus the terminal success stage.
const (
	StageFetching   Stage = "fetching"
	StageVerifying  Stage = "verifying"
	StageCleaning   Stage = "cleaning"
	StagePublishing Stage = "publishing"
	StageDone       Stage = "done"
)

// ErrStale is returned when the snapshot is stale and the override flag
// is not set.
var ErrStale = errors.New("snapshot is stale")

// StageError records which stage a run failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves the raw snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (*domain.Table, error)
}

// Gate verifies snapshot freshness.
type Gate interface {
	Verify(t *domain.Table) (freshness.Outcome, error)
}

// Cleaner narrows the table to complete numeric rows.
type Cleaner interface {
	Clean(t *domain.Table) *domain.Table
}

// Publisher uploads the cleaned table.
type Publisher interface {
	Publish(ctx context.Context, t *domain.Table) (dune.UploadResult, error)
}

// Options for creating an Orchestrator.
type Options struct {
	Fetcher   Fetcher
	Gate      Gate
	Cleaner   Cleaner
	Publisher Publisher

	// AllowStale downgrades a Stale outcome to a warning.
	AllowStale bool
	// DryRun stops after cleaning instead of publishing.
	DryRun bool

	Logger *zap.Logger
}

// Orchestrator owns the single in-flight table and moves it through the
// stages. No state survives a run.
type Orchestrator struct {
	fetcher    Fetcher
	gate       Gate
	cleaner    Cleaner
	publisher  Publisher
	allowStale bool
	dryRun     bool
	logger     *zap.Logger
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		fetcher:    opts.Fetcher,
		gate:       opts.Gate,
		cleaner:    opts.Cleaner,
		publisher:  opts.Publisher,
		allowStale: opts.AllowStale,
		dryRun:     opts.DryRun,
		logger:     opts.Logger,
	}
}

// RunResult summarizes a completed run.
type RunResult struct {
	RowsFetched int
	RowsKept    int
	TableName   string
	Stage       Stage
}

// Run executes one full pipeline pass. Any error carries the stage it
// occurred in via *StageError.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}

	o.logger.Info("stage started", zap.String("stage", string(StageFetching)))
	table, err := o.fetcher.Fetch(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageFetching, Err: err}
	}
	result.RowsFetched = table.Len()

	o.logger.Info("stage started", zap.String("stage", string(StageVerifying)))
	outcome, err := o.gate.Verify(table)
	if err != nil {
		return nil, &StageError{Stage: StageVerifying, Err: err}
	}
	switch outcome.Kind {
	case freshness.Pass:
	case freshness.Skipped:
		o.logger.Warn("freshness not verified", zap.String("reason", outcome.Reason))
	case freshness.Stale:
		if !o.allowStale {
			return nil, &StageError{
				Stage: StageVerifying,
				Err: fmt.Errorf("%w: latest entry %s is older than threshold %s",
					ErrStale, outcome.Latest.Format("2006-01-02"), outcome.Threshold.Format("2006-01-02")),
			}
		}
		o.logger.Warn("publishing stale snapshot on operator override",
			zap.Time("latest", outcome.Latest),
			zap.Time("threshold", outcome.Threshold))
	}

	o.logger.Info("stage started", zap.String("stage", string(StageCleaning)))
	cleaned := o.cleaner.Clean(table)
	result.RowsKept = cleaned.Len()

	if o.dryRun {
		o.logger.Info("dry run: skipping upload", zap.Int("rows", cleaned.Len()))
		result.Stage = StageDone
		return result, nil
	}

	o.logger.Info("stage started", zap.String("stage", string(StagePublishing)))
	upload, err := o.publisher.Publish(ctx, cleaned)
	if err != nil {
		return nil, &StageError{Stage: StagePublishing, Err: err}
	}
	result.TableName = upload.TableName

	result.Stage = StageDone
	o.logger.Info("pipeline completed",
		zap.Int("rows_fetched", result.RowsFetched),
		zap.Int("rows_kept", result.RowsKept),
		zap.String("table", result.TableName))
	return result, nil
}
