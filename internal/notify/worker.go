package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
	"github.com/robertarktes/event-ticketing-payments/internal/observability"
	"golang.org/x/sync/errgroup"
)

type Sender interface {
	Send(ctx context.Context, payload []byte) error
}

// Deduper remembers message ids whose email was already sent. A key is
// marked only after a successful send, so a crash mid-send leads to a resend
// rather than a lost email.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	MarkDone(ctx context.Context, key string, ttl time.Duration) error
}

type Options struct {
	Timeout     time.Duration
	MaxAttempts int
	Concurrency int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	DedupeTTL   time.Duration
}

type Worker struct {
	sender Sender
	dedupe Deduper
	logger observability.Logger
	opts   Options
}

// NewWorker builds a notification worker. dedupe may be nil.
func NewWorker(sender Sender, dedupe Deduper, logger observability.Logger, opts Options) *Worker {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = 24 * time.Hour
	}
	return &Worker{sender: sender, dedupe: dedupe, logger: logger, opts: opts}
}

// Run drains deliveries with a fixed number of goroutines until ctx ends or
// the channel closes.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.opts.Concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case d, ok := <-deliveries:
					if !ok {
						return nil
					}
					w.Handle(gctx, d)
				}
			}
		})
	}
	return g.Wait()
}

// Handle settles exactly one delivery. It acks on success or duplicate and
// nacks without requeue once attempts are exhausted or the payload is unusable.
func (w *Worker) Handle(ctx context.Context, d amqp.Delivery) {
	log := w.logger.WithField("message_id", d.MessageId)

	var ev domain.BookingConfirmed
	if err := json.Unmarshal(d.Body, &ev); err != nil || ev.Record == nil {
		log.WithError(err).Error("undecodable notification payload")
		observability.Notifications.WithLabelValues("rejected").Inc()
		d.Nack(false, false)
		return
	}
	log = log.WithFields(map[string]interface{}{"booking_id": ev.Record.ID, "order_id": ev.Record.RazorpayOrderID})

	if w.dedupe != nil && d.MessageId != "" {
		seen, err := w.dedupe.Seen(ctx, d.MessageId)
		if err != nil {
			log.WithError(err).Warn("dedupe unavailable, sending anyway")
		} else if seen {
			log.Info("notification already sent, skipping")
			observability.Notifications.WithLabelValues("duplicate").Inc()
			d.Ack(false)
			return
		}
	}

	if err := w.deliver(ctx, log, d.Body); err != nil {
		if ctx.Err() != nil {
			log.Warn("shutting down, returning notification to queue")
			d.Nack(false, true)
			return
		}
		log.WithError(err).Error("email function invocation failed")
		observability.Notifications.WithLabelValues("failed").Inc()
		d.Nack(false, false)
		return
	}

	log.Info("email function invoked successfully")
	observability.Notifications.WithLabelValues("sent").Inc()
	if w.dedupe != nil && d.MessageId != "" {
		if err := w.dedupe.MarkDone(context.WithoutCancel(ctx), d.MessageId, w.opts.DedupeTTL); err != nil {
			log.WithError(err).Warn("failed to record sent notification")
		}
	}
	d.Ack(false)
}

type retryable interface {
	Retryable() bool
}

func (w *Worker) deliver(ctx context.Context, log observability.Logger, payload []byte) error {
	var err error
	for attempt := 1; attempt <= w.opts.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
		err = w.sender.Send(attemptCtx, payload)
		cancel()
		if err == nil {
			return nil
		}

		var r retryable
		if errors.As(err, &r) && !r.Retryable() {
			return err
		}
		if attempt == w.opts.MaxAttempts {
			break
		}

		wait := w.backoff(attempt)
		log.WithError(err).WithFields(map[string]interface{}{"attempt": attempt, "retry_in": wait.String()}).Warn("notification attempt failed")
		observability.Notifications.WithLabelValues("retry").Inc()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.CombineErrors(err, ctx.Err())
		case <-timer.C:
		}
	}
	return errors.Wrapf(err, "giving up after %d attempts", w.opts.MaxAttempts)
}

func (w *Worker) backoff(attempt int) time.Duration {
	d := w.opts.BaseBackoff << (attempt - 1)
	if d <= 0 || d > w.opts.MaxBackoff {
		return w.opts.MaxBackoff
	}
	return d
}
