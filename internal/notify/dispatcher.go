package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AdamBeresnev/op-arena/internal/logging"
	"github.com/AdamBeresnev/op-arena/internal/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/panjf2000/ants/v2"
)

// Notification is one published event handed to a sink.
type Notification struct {
	ID          string
	Topic       string
	PublishedAt string
	Payload     []byte
}

// Sink delivers notifications to an outside channel (log, webhook, chat).
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

// Dispatcher drains bus topics and fans each message out to the sinks on a
// bounded worker pool. Delivery failures are logged and counted, never returned.
type Dispatcher struct {
	bus     *Bus
	pool    *ants.Pool
	sinks   []Sink
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.Metrics

	readers  sync.WaitGroup
	inflight sync.WaitGroup
}

func NewDispatcher(bus *Bus, workers int, timeout time.Duration, logger *logging.Logger, m *metrics.Metrics, sinks ...Sink) (*Dispatcher, error) {
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create notification pool: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		bus:     bus,
		pool:    pool,
		sinks:   sinks,
		timeout: timeout,
		logger:  logger.With("component", "notify"),
		metrics: m,
	}, nil
}

// Start subscribes to topics and returns once every subscription is live.
// Readers stop when ctx is cancelled or the bus is closed.
func (d *Dispatcher) Start(ctx context.Context, topics ...string) error {
	for _, topic := range topics {
		msgs, err := d.bus.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}

		d.readers.Add(1)
		go func() {
			defer d.readers.Done()
			for msg := range msgs {
				d.dispatch(msg)
			}
		}()
	}
	return nil
}

func (d *Dispatcher) dispatch(msg *message.Message) {
	n := Notification{
		ID:          msg.UUID,
		Topic:       msg.Metadata.Get(metadataTopic),
		PublishedAt: msg.Metadata.Get(metadataPublishedAt),
		Payload:     msg.Payload,
	}
	// Best-effort: ack before delivery so a slow sink never stalls the bus
	msg.Ack()

	for _, sink := range d.sinks {
		d.inflight.Add(1)
		err := d.pool.Submit(func() {
			defer d.inflight.Done()
			d.deliver(sink, n)
		})
		if err != nil {
			d.inflight.Done()
			d.metrics.ObserveNotification(sink.Name(), "dropped")
			d.logger.Warn("notification dropped", "sink", sink.Name(), "topic", n.Topic, "error", err)
		}
	}
}

func (d *Dispatcher) deliver(sink Sink, n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := sink.Deliver(ctx, n); err != nil {
		d.metrics.ObserveNotification(sink.Name(), "failed")
		d.logger.Warn("notification delivery failed", "sink", sink.Name(), "topic", n.Topic, "message_id", n.ID, "error", err)
		return
	}
	d.metrics.ObserveNotification(sink.Name(), "delivered")
}

// Close waits for readers to drain (the bus must be closed or the Start
// context cancelled first), then for in-flight deliveries, then frees the pool.
func (d *Dispatcher) Close() {
	d.readers.Wait()
	d.inflight.Wait()
	d.pool.Release()
}
