// Package publisher serializes the cleaned table and hands it to the
// analytics sink.
package publisher

import (
	"context"

	"go.uber.org/zap"

	"validator-queue-etl/internal/domain"
	"validator-queue-etl/internal/dune"
	"validator-queue-etl/internal/reporting"
)

// Fixed destination metadata for the published table.
const (
	DefaultTableName   = "eth_validator_queue_metrics"
	DefaultDescription = "Ethereum validator queue metrics, sourced from validatorqueue.com"
)

// Sink uploads one CSV payload with its metadata.
type Sink interface {
	UploadCSV(ctx context.Context, req dune.UploadRequest) (dune.UploadResult, error)
}

// Publisher renders a table to CSV and uploads it.
type Publisher struct {
	sink        Sink
	tableName   string
	description string
	isPrivate   bool
	logger      *zap.Logger
}

// Option configures Publisher.
type Option func(*Publisher)

// WithTableName overrides the destination table name.
func WithTableName(name string) Option {
	return func(p *Publisher) {
		p.tableName = name
	}
}

// WithDescription overrides the table description.
func WithDescription(desc string) Option {
	return func(p *Publisher) {
		p.description = desc
	}
}

// New creates a publisher with the default destination metadata. The
// published table is not private.
func New(sink Sink, logger *zap.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		sink:        sink,
		tableName:   DefaultTableName,
		description: DefaultDescription,
		isPrivate:   false,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish serializes the table and performs exactly one upload. Repeat
// calls would append data again at the sink; the orchestrator calls this
// at most once per run.
func (p *Publisher) Publish(ctx context.Context, t *domain.Table) (dune.UploadResult, error) {
	data := reporting.RenderCSV(t)
	p.logger.Info("uploading table",
		zap.String("table", p.tableName),
		zap.Int("rows", t.Len()),
		zap.Int("bytes", len(data)))

	result, err := p.sink.UploadCSV(ctx, dune.UploadRequest{
		TableName:   p.tableName,
		Description: p.description,
		Data:        data,
		IsPrivate:   p.isPrivate,
	})
	if err != nil {
		return dune.UploadResult{}, err
	}

	if result.Confirmed {
		p.logger.Info("upload confirmed", zap.String("table", result.TableName))
	} else {
		p.logger.Warn("upload accepted without confirmation", zap.String("table", p.tableName))
	}
	return result, nil
}
