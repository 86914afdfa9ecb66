package outbox

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/event-ticketing-payments/internal/adapters/postgres"
	"github.com/robertarktes/event-ticketing-payments/internal/observability"
)

const (
	batchSize      = 10
	publishRetries = 3
)

type store interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	ClaimUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]postgres.OutboxRecord, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID, publishedAt time.Time) error
	OldestUnpublishedAge(ctx context.Context) (time.Duration, error)
}

type broker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

// Publisher relays committed outbox rows to the broker. Delivery is
// at-least-once; consumers dedupe on MessageId.
type Publisher struct {
	repo      store
	rabbitPub broker
	logger    observability.Logger
	interval  time.Duration
	backoff   time.Duration
}

func NewPublisher(repo *postgres.Repository, rabbitPub broker, logger observability.Logger, interval time.Duration) *Publisher {
	return &Publisher{repo: repo, rabbitPub: rabbitPub, logger: logger, interval: interval, backoff: 200 * time.Millisecond}
}

func (p *Publisher) Run(ctx context.Context) {
	p.logger.WithField("interval", p.interval.String()).Info("outbox publisher started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				n, err := p.RelayOnce(ctx)
				if err != nil {
					p.logger.WithError(err).Error("outbox relay failed")
					break
				}
				if n < batchSize {
					break
				}
			}
			if lag, err := p.repo.OldestUnpublishedAge(ctx); err == nil {
				observability.OutboxLag.Set(lag.Seconds())
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many rows were marked published.
func (p *Publisher) RelayOnce(ctx context.Context) (int, error) {
	published := 0
	err := p.repo.WithTx(ctx, func(tx pgx.Tx) error {
		records, err := p.repo.ClaimUnpublished(ctx, tx, batchSize)
		if err != nil {
			return err
		}
		for _, rec := range records {
			msg := amqp.Publishing{
				MessageId:   rec.DedupeKey,
				ContentType: "application/json",
				Timestamp:   rec.CreatedAt,
				Type:        rec.EventType,
				Body:        rec.Payload,
			}
			if err := p.publishWithRetry(ctx, rec.EventType, msg); err != nil {
				// keep what was already sent; the rest stays NEW
				p.logger.WithError(err).WithField("outbox_id", rec.ID.String()).Error("publish outbox record")
				return nil
			}
			if err := p.repo.MarkPublished(ctx, tx, rec.ID, time.Now()); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "relay outbox batch")
	}
	return published, nil
}

func (p *Publisher) publishWithRetry(ctx context.Context, key string, msg amqp.Publishing) error {
	var err error
	for i := 0; i < publishRetries; i++ {
		if err = p.rabbitPub.Publish(ctx, key, msg); err == nil {
			return nil
		}
		observability.RabbitPublishRetries.Inc()
		timer := time.NewTimer(time.Duration(1<<i) * p.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return errors.Wrapf(err, "publish %s after %d attempts", key, publishRetries)
}
