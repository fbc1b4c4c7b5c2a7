// Package app aggregates configuration and shared dependencies for the
// CLI commands and wires the processing pipeline together.
package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pump-signals/internal/classifier"
	"pump-signals/internal/config"
	"pump-signals/internal/dedup"
	"pump-signals/internal/enrichment"
	"pump-signals/internal/filter"
	"pump-signals/internal/ingest"
	"pump-signals/internal/notify"
	"pump-signals/internal/observability"
	"pump-signals/internal/pipeline"
	"pump-signals/internal/scheduler"
	"pump-signals/internal/signalgen"
	"pump-signals/internal/storage"
	"pump-signals/internal/storage/memory"
	"pump-signals/internal/storage/migrations"
	"pump-signals/internal/storage/postgres"
	"pump-signals/internal/tracker"
	"pump-signals/internal/webhook"
)

// App is the shared handle behind every CLI command.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// openStore returns the configured signal store. Without a database DSN it
// falls back to the in-memory store, which is sufficient for dry runs.
func (a *App) openStore(ctx context.Context) (storage.SignalStore, func(), error) {
	if a.Config.Database.DSN == "" {
		a.Logger.Warn().Msg("database.dsn not configured; using in-memory store")
		return memory.NewSignalStore(), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, a.Config.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return postgres.NewSignalStore(pool), pool.Close, nil
}

func (a *App) newNotifier() notify.Notifier {
	tg := a.Config.Notify.Telegram
	if tg.Enabled {
		return notify.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.APIBase, 10*time.Second, a.Logger)
	}
	return notify.NewLogNotifier(a.Logger)
}

// newProcessor assembles the full pipeline over the given store.
func (a *App) newProcessor(store storage.SignalStore, dispatcher *notify.Dispatcher, metrics *observability.Metrics) (*pipeline.Processor, *tracker.Tracker) {
	chain := filter.DefaultChain(filter.Thresholds{
		MinLiquidity:   decimal.NewFromFloat(a.Config.Filters.MinLiquiditySOL),
		MinProgressPct: a.Config.Filters.MinProgressPct,
		MaxProgressPct: a.Config.Filters.MaxProgressPct,
	})
	buy := decimal.NewFromFloat(a.Config.Signals.SimulatedBuySOL)
	trk := tracker.New(store, a.Config.Signals.Expiry, a.Logger)

	var notifier pipeline.Notifier
	if dispatcher != nil {
		notifier = dispatcher
	}

	proc := pipeline.NewProcessor(pipeline.Config{
		Dedup:      dedup.New(a.Config.Signals.DedupCapacity),
		Classifier: classifier.New(a.Logger),
		Chain:      chain,
		Generator:  signalgen.New(store, buy, a.Logger),
		Tracker:    trk,
		Notifier:   notifier,
		Metrics:    metrics,
		Logger:     a.Logger,
	})
	return proc, trk
}

// Run executes the long-running ingestion service: webhook listener,
// expiry sweep, optional metrics endpoint and optional websocket stream.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var metrics *observability.Metrics
	if a.Config.Metrics.Enabled {
		metrics = observability.NewMetrics("")
	}

	dispatcher := notify.NewDispatcher(a.newNotifier(), metrics, a.Logger).
		WithEnricher(enrichment.NewClient(a.Logger))
	defer dispatcher.Close()

	proc, trk := a.newProcessor(store, dispatcher, metrics)

	errCh := make(chan error, 4)

	srv := &http.Server{
		Addr:    a.Config.Server.Addr,
		Handler: webhook.NewServer(proc, a.Config.Server.AuthSecret, a.Config.App.Mode, a.Logger).Handler(),
	}
	go func() {
		a.Logger.Info().Str("addr", srv.Addr).Str("mode", a.Config.App.Mode).Msg("webhook server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var metricsSrv *http.Server
	if metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		metricsSrv = &http.Server{Addr: a.Config.Metrics.Addr, Handler: mux}
		go func() {
			a.Logger.Info().Str("addr", metricsSrv.Addr).Msg("metrics endpoint listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)
	go func() {
		err := sched.Run(ctx, func(ctx context.Context, now time.Time) error {
			expired, err := trk.ExpireStale(ctx)
			if err != nil {
				return err
			}
			if metrics != nil {
				metrics.LastExpirySweep.SetToCurrentTime()
				metrics.SignalsExpired.Add(float64(expired))
			}
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	if a.Config.Helius.WSEndpoint != "" {
		src := ingest.NewSource(ingest.DefaultConfig(a.Config.Helius.WSEndpoint), proc, a.Logger)
		go func() {
			if err := src.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		a.Logger.Error().Err(runErr).Msg("service component failed")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	a.Logger.Info().Msg("service stopped")
	return runErr
}
