package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pump-signals/internal/domain"
	"pump-signals/internal/enrichment"
	"pump-signals/internal/observability"
)

const (
	defaultQueueSize  = 64
	defaultMaxRetries = 3
	retryBaseDelay    = time.Second
)

// Enricher looks up the best DEX pair for a migrated token. Satisfied by
// the Dexscreener client.
type Enricher interface {
	BestVenuePair(ctx context.Context, token string) (*enrichment.Pair, error)
}

// Dispatcher decouples the ingestion loop from notification delivery. It
// queues notifications onto a bounded channel and drains it from a single
// worker with bounded retries; a full queue drops the notification rather
// than block the caller.
type Dispatcher struct {
	notifier   Notifier
	enricher   Enricher
	queue      chan Notification
	maxRetries int
	metrics    *observability.Metrics
	log        zerolog.Logger

	stop     chan struct{}
	done     sync.WaitGroup
	stopOnce sync.Once
}

func NewDispatcher(notifier Notifier, metrics *observability.Metrics, log zerolog.Logger) *Dispatcher {
	return newDispatcher(notifier, metrics, log, defaultMaxRetries)
}

// WithEnricher attaches a DEX pair lookup applied to migration
// notifications before delivery. Must be called before any enqueue.
func (d *Dispatcher) WithEnricher(e Enricher) *Dispatcher {
	d.enricher = e
	return d
}

func newDispatcher(notifier Notifier, metrics *observability.Metrics, log zerolog.Logger, maxRetries int) *Dispatcher {
	d := &Dispatcher{
		notifier:   notifier,
		queue:      make(chan Notification, defaultQueueSize),
		maxRetries: maxRetries,
		metrics:    metrics,
		log:        log.With().Str("component", "notify_dispatcher").Logger(),
		stop:       make(chan struct{}),
	}
	d.done.Add(1)
	go d.run()
	return d
}

// SignalCreated queues a creation notification.
func (d *Dispatcher) SignalCreated(sig *domain.Signal) {
	d.enqueue(Notification{Kind: KindSignalCreated, Signal: sig})
}

// SignalMigrated queues a migration notification.
func (d *Dispatcher) SignalMigrated(sig *domain.Signal) {
	d.enqueue(Notification{Kind: KindSignalMigrated, Signal: sig})
}

// Close stops the worker after draining what is already queued.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() { close(d.stop) })
	d.done.Wait()
}

func (d *Dispatcher) enqueue(n Notification) {
	select {
	case d.queue <- n:
	default:
		if d.metrics != nil {
			d.metrics.NotificationsDropped.Inc()
		}
		d.log.Warn().
			Str("kind", string(n.Kind)).
			Str("token", n.Signal.SubjectToken).
			Msg("notification queue full, dropping")
	}
}

func (d *Dispatcher) run() {
	defer d.done.Done()
	for {
		select {
		case n := <-d.queue:
			d.deliver(n)
		case <-d.stop:
			// Drain anything already queued before exiting.
			for {
				select {
				case n := <-d.queue:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(n Notification) {
	if d.enricher != nil && n.Kind == KindSignalMigrated {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pair, err := d.enricher.BestVenuePair(ctx, n.Signal.SubjectToken)
		cancel()
		if err != nil {
			d.log.Warn().
				Err(err).
				Str("token", n.Signal.SubjectToken).
				Msg("pair lookup failed, sending without enrichment")
		} else {
			n.Pair = pair
		}
	}

	for attempt := 0; attempt < d.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryBaseDelay << (attempt - 1))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := d.notifier.Notify(ctx, n)
		cancel()
		if err == nil {
			if d.metrics != nil {
				d.metrics.NotificationsSent.WithLabelValues(string(n.Kind)).Inc()
			}
			return
		}

		d.log.Warn().
			Err(err).
			Str("kind", string(n.Kind)).
			Int("attempt", attempt+1).
			Msg("notification delivery failed")
	}

	if d.metrics != nil {
		d.metrics.NotificationsDropped.Inc()
	}
	d.log.Error().
		Str("kind", string(n.Kind)).
		Str("token", n.Signal.SubjectToken).
		Msg("notification dropped after retries")
}
