package service

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/AdamBeresnev/op-arena/internal/config"
	"github.com/AdamBeresnev/op-arena/internal/db"
	"github.com/AdamBeresnev/op-arena/internal/logging"
	"github.com/AdamBeresnev/op-arena/internal/metrics"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RatingLookup returns the current rating used as an entry's seed.
type RatingLookup interface {
	UserRatingTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (int, error)
	TeamRatingTx(ctx context.Context, tx *sqlx.Tx, teamID uuid.UUID) (int, error)
}

// RankLookup reports whether a user holds a recorded rank for a game.
type RankLookup interface {
	HasRankTx(ctx context.Context, tx *sqlx.Tx, userID, gameID uuid.UUID) (bool, error)
}

// EventPublisher receives events after a transaction commits. Failures are
// logged by the caller and never undo the committed work.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// RandomSource picks a uniform int in [0, n). *rand.Rand from math/rand/v2 fits.
type RandomSource interface {
	IntN(n int) int
}

type globalRandom struct{}

func (globalRandom) IntN(n int) int { return rand.IntN(n) }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }

type Option func(*options)

type options struct {
	logger  *logging.Logger
	events  EventPublisher
	metrics *metrics.Metrics
	now     func() time.Time
	retry   config.RetryConfig
	random  RandomSource
}

func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithEvents(p EventPublisher) Option {
	return func(o *options) { o.events = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithRetry(r config.RetryConfig) Option {
	return func(o *options) { o.retry = r }
}

func WithRandom(r RandomSource) Option {
	return func(o *options) { o.random = r }
}

func newOptions(opts []Option) options {
	o := options{
		logger: logging.Default(),
		events: nopPublisher{},
		now:    time.Now,
		retry: config.RetryConfig{
			MaxAttempts:     5,
			InitialInterval: 20 * time.Millisecond,
			MaxInterval:     500 * time.Millisecond,
		},
		random: globalRandom{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	if o.events == nil {
		o.events = nopPublisher{}
	}
	if o.retry.MaxAttempts < 1 {
		o.retry.MaxAttempts = 1
	}
	return o
}

func (o *options) publish(ctx context.Context, topic string, payload any) {
	if err := o.events.Publish(ctx, topic, payload); err != nil {
		o.logger.WarnContext(ctx, "event publish failed", "topic", topic, "error", err)
	}
}

// withRetry re-runs op from scratch while it fails with a transient store
// error, up to MaxAttempts runs. Any other error stops immediately.
func withRetry[T any](ctx context.Context, cfg config.RetryConfig, op func() (T, error)) (T, int, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.InitialInterval
	policy.MaxInterval = cfg.MaxInterval
	policy.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(cfg.MaxAttempts-1)), ctx)

	retries := 0
	res, err := backoff.RetryNotifyWithData(func() (T, error) {
		v, err := op()
		if err != nil && !db.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, b, func(error, time.Duration) {
		retries++
	})
	return res, retries, err
}
