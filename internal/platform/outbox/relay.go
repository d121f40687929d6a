package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/hms/hms/internal/platform/telemetry"
)

// MessageWriter is the subset of *kafka.Writer the relay needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type RelayConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

// Relay moves committed outbox rows to Kafka and marks them published.
// Delivery is at-least-once: a crash between write and commit republishes
// the batch.
type Relay struct {
	pool      *pgxpool.Pool
	repo      *Repository
	logger    zerolog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
	newWriter func(brokers []string) MessageWriter
}

func NewRelay(pool *pgxpool.Pool, repo *Repository, logger zerolog.Logger, cfg RelayConfig) *Relay {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Relay{
		pool:      pool,
		repo:      repo,
		logger:    logger.With().Str("component", "outbox-relay").Logger(),
		brokers:   SplitBrokers(cfg.Brokers),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
		newWriter: func(brokers []string) MessageWriter {
			return &kafka.Writer{
				Addr:                   kafka.TCP(brokers...),
				Balancer:               &kafka.Hash{},
				RequiredAcks:           kafka.RequireAll,
				AllowAutoTopicCreation: true,
			}
		},
	}
}

// Run polls until ctx is cancelled. Without brokers it logs and returns.
func (p *Relay) Run(ctx context.Context) error {
	if len(p.brokers) == 0 {
		p.logger.Warn().Msg("outbox relay disabled (no kafka brokers configured)")
		return nil
	}

	writer := p.newWriter(p.brokers)
	defer writer.Close()

	p.logger.Info().Strs("brokers", p.brokers).Dur("poll_every", p.pollEvery).Msg("outbox relay started")

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("outbox relay stopped")
			return nil
		case <-ticker.C:
			n, err := p.publishBatch(ctx, writer)
			if err != nil {
				p.logger.Error().Err(err).Msg("outbox publish failed")
				continue
			}
			if n > 0 {
				p.logger.Debug().Int("count", n).Msg("outbox events published")
			}
		}
	}
}

func (p *Relay) publishBatch(ctx context.Context, writer MessageWriter) (int, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch unpublished: %w", err)
	}
	if len(records) == 0 {
		return 0, tx.Commit(ctx)
	}

	msgs := make([]kafka.Message, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, buildMessage(ctx, r))
		ids = append(ids, r.ID)
	}
	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("write messages: %w", err)
	}

	if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
		return 0, fmt.Errorf("mark published: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(records), nil
}

// buildMessage keys by aggregate so events of one slot or appointment stay
// ordered within a partition.
func buildMessage(ctx context.Context, r Record) kafka.Message {
	msgCtx := telemetry.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
	msg := kafka.Message{
		Topic: r.EventType,
		Key:   []byte(r.AggregateID),
		Value: r.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(r.EventID)},
			{Key: "event_type", Value: []byte(r.EventType)},
			{Key: "aggregate_type", Value: []byte(r.AggregateType)},
		},
	}
	msg.Headers = InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}
