// Package pipeline runs the ingestion flow: dedup, classify, filter,
// generate, track. A batch is processed sequentially and deterministically;
// concurrent batches are safe because every stateful collaborator
// serializes its own access.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pump-signals/internal/classifier"
	"pump-signals/internal/dedup"
	"pump-signals/internal/domain"
	"pump-signals/internal/filter"
	"pump-signals/internal/observability"
	"pump-signals/internal/signalgen"
	"pump-signals/internal/tracker"
)

// Notifier receives lifecycle notifications. Implementations must not
// block; delivery happens outside the ingestion critical path.
type Notifier interface {
	SignalCreated(sig *domain.Signal)
	SignalMigrated(sig *domain.Signal)
}

// Summary reports what happened to one batch.
type Summary struct {
	Processed  int `json:"processed"`
	Duplicates int `json:"duplicates"`
	Events     int `json:"events"`
	Rejected   int `json:"rejected"`
	Signals    int `json:"signals"`
	Migrations int `json:"migrations"`
	Errors     int `json:"errors"`
}

// Processor wires the pipeline stages together.
type Processor struct {
	dedup      *dedup.Cache
	classifier *classifier.Classifier
	chain      *filter.Chain
	generator  *signalgen.Generator
	tracker    *tracker.Tracker
	notifier   Notifier
	metrics    *observability.Metrics
	log        zerolog.Logger
}

// Config carries the processor's collaborators. Notifier and Metrics may be
// nil; both are optional.
type Config struct {
	Dedup      *dedup.Cache
	Classifier *classifier.Classifier
	Chain      *filter.Chain
	Generator  *signalgen.Generator
	Tracker    *tracker.Tracker
	Notifier   Notifier
	Metrics    *observability.Metrics
	Logger     zerolog.Logger
}

func NewProcessor(cfg Config) *Processor {
	return &Processor{
		dedup:      cfg.Dedup,
		classifier: cfg.Classifier,
		chain:      cfg.Chain,
		generator:  cfg.Generator,
		tracker:    cfg.Tracker,
		notifier:   cfg.Notifier,
		metrics:    cfg.Metrics,
		log:        cfg.Logger,
	}
}

// ProcessBatch runs every transaction in order through the pipeline.
// Failures are isolated per item; the batch always runs to completion.
func (p *Processor) ProcessBatch(ctx context.Context, txs []classifier.RawTransaction) Summary {
	start := time.Now()
	var sum Summary

	for _, tx := range txs {
		p.processOne(ctx, tx, &sum)
	}

	if p.metrics != nil {
		p.metrics.BatchSize.Observe(float64(len(txs)))
		p.metrics.BatchDuration.Observe(time.Since(start).Seconds())
		p.metrics.DedupCacheSize.Set(float64(p.dedup.Len()))
		p.metrics.LastBatchProcessed.SetToCurrentTime()
	}

	p.log.Debug().
		Int("processed", sum.Processed).
		Int("duplicates", sum.Duplicates).
		Int("events", sum.Events).
		Int("signals", sum.Signals).
		Int("migrations", sum.Migrations).
		Int("errors", sum.Errors).
		Msg("batch processed")

	return sum
}

func (p *Processor) processOne(ctx context.Context, tx classifier.RawTransaction, sum *Summary) {
	if p.metrics != nil {
		p.metrics.TransactionsReceived.Inc()
	}

	if tx.Signature != "" {
		// One atomic check-and-mark: two batches racing on the same
		// signature must not both observe it as new.
		if p.dedup.CheckAndMark(tx.Signature) {
			sum.Duplicates++
			if p.metrics != nil {
				p.metrics.DuplicatesSkipped.Inc()
			}
			p.log.Debug().Str("tx_signature", tx.Signature).Msg("duplicate transaction")
			return
		}
	}
	sum.Processed++

	ev := p.classifier.Classify(tx)
	if ev == nil {
		if p.metrics != nil {
			p.metrics.ClassifierDiscards.Inc()
		}
		return
	}
	sum.Events++
	if p.metrics != nil {
		p.metrics.EventsClassified.WithLabelValues(string(ev.Kind())).Inc()
		if tx.Slot > 0 {
			p.metrics.HighestSlotSeen.Set(float64(tx.Slot))
		}
	}

	switch e := ev.(type) {
	case domain.TokenCreatedEvent:
		p.evaluate(ctx, e, sum)
	case domain.CurveProgressEvent:
		// Progress both tracks open signals and may open a new one.
		if _, err := p.tracker.HandleCurveProgress(ctx, e); err != nil {
			p.itemError(err, e.Signature(), "track", sum)
		}
		p.evaluate(ctx, e, sum)
	case domain.MigrationEvent:
		sig, err := p.tracker.HandleMigration(ctx, e)
		if err != nil {
			p.itemError(err, e.Signature(), "migrate", sum)
			return
		}
		if sig != nil {
			sum.Migrations++
			if p.metrics != nil {
				p.metrics.SignalsMigrated.Inc()
			}
			if p.notifier != nil {
				p.notifier.SignalMigrated(sig)
			}
		}
	}
}

// evaluate runs the filter chain and, on acceptance, the generator.
func (p *Processor) evaluate(ctx context.Context, ev domain.Event, sum *Summary) {
	if res := p.chain.Evaluate(ev); !res.Passed {
		sum.Rejected++
		if p.metrics != nil {
			p.metrics.FilterRejections.WithLabelValues(rejectingFilter(res.Reason)).Inc()
		}
		p.log.Debug().
			Str("token", ev.Token()).
			Str("reason", res.Reason).
			Msg("event rejected")
		return
	}

	sig, err := p.generator.Generate(ctx, ev)
	if err != nil {
		p.itemError(err, ev.Signature(), "generate", sum)
		return
	}
	if sig != nil {
		sum.Signals++
		if p.metrics != nil {
			p.metrics.SignalsGenerated.Inc()
		}
		if p.notifier != nil {
			p.notifier.SignalCreated(sig)
		}
	}
}

func (p *Processor) itemError(err error, txSignature, stage string, sum *Summary) {
	sum.Errors++
	if p.metrics != nil {
		p.metrics.ProcessingErrors.WithLabelValues(stage).Inc()
	}
	p.log.Error().
		Err(err).
		Str("tx_signature", txSignature).
		Str("stage", stage).
		Msg("transaction processing failed")
}

// rejectingFilter extracts the filter name from a chain rejection reason.
func rejectingFilter(reason string) string {
	if i := strings.Index(reason, ":"); i > 0 {
		return reason[:i]
	}
	return "unknown"
}
