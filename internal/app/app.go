// Package app wires all speakdrill subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP gateway and the status feed until the
// context is cancelled, and Shutdown tears everything down in reverse-init
// order.
//
// For testing, inject mock implementations via functional options
// (WithStores, WithBlobStore, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Tavasya/speakdrill/internal/api"
	"github.com/Tavasya/speakdrill/internal/config"
	"github.com/Tavasya/speakdrill/internal/health"
	"github.com/Tavasya/speakdrill/internal/improve"
	"github.com/Tavasya/speakdrill/internal/observe"
	"github.com/Tavasya/speakdrill/internal/resilience"
	"github.com/Tavasya/speakdrill/internal/statusfeed"
	"github.com/Tavasya/speakdrill/internal/uploader"
	"github.com/Tavasya/speakdrill/pkg/blob"
	blobs3 "github.com/Tavasya/speakdrill/pkg/blob/s3"
	"github.com/Tavasya/speakdrill/pkg/provider/assess"
	"github.com/Tavasya/speakdrill/pkg/provider/stt"
	"github.com/Tavasya/speakdrill/pkg/provider/tts"
	"github.com/Tavasya/speakdrill/pkg/store"
	storepg "github.com/Tavasya/speakdrill/pkg/store/postgres"
	voicews "github.com/Tavasya/speakdrill/pkg/voicechan/ws"
)

// shutdownGrace caps how long the HTTP server drains in-flight requests
// during Run teardown.
const shutdownGrace = 10 * time.Second

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured; the matching endpoints respond 503. Populated
// by main.go via the config registry.
type Providers struct {
	Assess    assess.Provider
	TTS       tts.Provider
	STT       stt.Provider
	Completer improve.Completer
}

// App owns all subsystem lifetimes and serves the speakdrill practice gateway.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	subs      store.SubmissionStore
	practices store.PracticeStore
	watcher   store.Watcher
	blobs     blob.Store
	feed      *statusfeed.Feed
	improver  *improve.Service
	gateway   *api.Server
	metrics   *observe.Metrics
	httpSrv   *http.Server

	// pool is the real Postgres store when one was created from config;
	// nil when stores were injected. Used for the database health check.
	pool *storepg.Store

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStores injects record stores instead of connecting to Postgres.
func WithStores(subs store.SubmissionStore, practices store.PracticeStore, watcher store.Watcher) Option {
	return func(a *App) {
		a.subs = subs
		a.practices = practices
		a.watcher = watcher
	}
}

// WithBlobStore injects a blob store instead of creating an S3 client.
func WithBlobStore(b blob.Store) Option {
	return func(a *App) { a.blobs = b }
}

// WithMetrics injects a metrics instance instead of the global default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: store connection and
// migration, blob client construction, status feed, improvement service, and
// the HTTP gateway.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	p := *providers
	a := &App{
		cfg:       cfg,
		providers: &p,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStores(ctx); err != nil {
		return nil, fmt.Errorf("app: init stores: %w", err)
	}
	if err := a.initBlobs(); err != nil {
		return nil, fmt.Errorf("app: init blob store: %w", err)
	}

	a.feed = statusfeed.New(a.watcher)
	a.hardenProviders()

	if a.providers.Completer != nil {
		a.improver = improve.NewService(improve.New(a.providers.Completer), a.practices)
	}

	a.initGateway()
	return a, nil
}

// initStores connects to Postgres and migrates, or keeps injected stores.
func (a *App) initStores(ctx context.Context) error {
	if a.subs != nil && a.practices != nil && a.watcher != nil {
		return nil // injected
	}

	dsn := a.cfg.Storage.PostgresDSN
	if dsn == "" {
		return errors.New("storage.postgres_dsn is required when stores are not injected")
	}

	pg, err := storepg.New(ctx, dsn)
	if err != nil {
		return err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	a.pool = pg
	a.subs = pg
	a.practices = pg
	a.watcher = pg
	a.closers = append(a.closers, pg.Close)

	slog.Info("connected to record store")
	return nil
}

// initBlobs creates the S3 client when no blob store was injected.
func (a *App) initBlobs() error {
	if a.blobs != nil {
		return nil
	}

	var opts []blobs3.Option
	if a.cfg.Blob.Prefix != "" {
		opts = append(opts, blobs3.WithPrefix(a.cfg.Blob.Prefix))
	}
	s3Store, err := blobs3.New(a.cfg.Blob.Region, a.cfg.Blob.Bucket, opts...)
	if err != nil {
		return err
	}
	a.blobs = s3Store

	slog.Info("blob store ready", "bucket", a.cfg.Blob.Bucket, "region", a.cfg.Blob.Region)
	return nil
}

// hardenProviders wraps each configured provider in a fallback group so that
// repeated collaborator failures open a circuit breaker instead of hammering
// the remote service on every drill.
func (a *App) hardenProviders() {
	var fc resilience.FallbackConfig
	if a.providers.Assess != nil {
		a.providers.Assess = resilience.NewAssessFallback(
			a.providers.Assess, a.cfg.Providers.Assess.Name, fc)
	}
	if a.providers.TTS != nil {
		a.providers.TTS = resilience.NewTTSFallback(
			a.providers.TTS, a.cfg.Providers.TTS.Name, fc)
	}
	if a.providers.STT != nil {
		a.providers.STT = resilience.NewSTTFallback(
			a.providers.STT, a.cfg.Providers.STT.Name, fc)
	}
	if a.providers.Completer != nil {
		a.providers.Completer = resilience.NewCompleterFallback(
			a.providers.Completer, a.cfg.Providers.Improve.Name, fc)
	}
}

// initGateway assembles the HTTP surface: gateway routes, health endpoints,
// and the Prometheus scrape handler behind the observability middleware.
func (a *App) initGateway() {
	apiOpts := []api.Option{api.WithMetrics(a.metrics), api.WithBlobStore(a.blobs)}
	if a.providers.Assess != nil {
		apiOpts = append(apiOpts, api.WithAssess(a.providers.Assess))
	}
	if a.providers.TTS != nil {
		apiOpts = append(apiOpts, api.WithTTS(a.providers.TTS))
	}
	if a.providers.STT != nil {
		apiOpts = append(apiOpts, api.WithSTT(a.providers.STT))
	}
	if a.improver != nil {
		apiOpts = append(apiOpts, api.WithImprover(a.improver))
	}
	if a.cfg.Practice.VoiceAgentURL != "" {
		apiOpts = append(apiOpts, api.WithVoiceAgent(voicews.Dialer{}, a.cfg.Practice.VoiceAgentURL))
	}

	a.gateway = api.New(
		a.subs,
		a.practices,
		uploader.New(a.blobs, a.subs),
		uploader.NewPractice(a.blobs, a.practices),
		a.feed,
		apiOpts...,
	)

	checkers := []health.Checker{health.BlobStore(a.blobs)}
	if a.pool != nil {
		checkers = append(checkers, health.Database(a.pool.Pool()))
	}
	healthHandler := health.New(checkers...)

	mux := http.NewServeMux()
	a.gateway.Register(mux)
	healthHandler.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.httpSrv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run serves the HTTP gateway and the status feed until ctx is cancelled,
// then drains in-flight requests and returns ctx's error.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.feed.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		slog.Info("gateway listening", "addr", a.cfg.Server.ListenAddr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := a.httpSrv.Shutdown(drainCtx); err != nil {
			slog.Warn("gateway drain error", "err", err)
		}
		return ctx.Err()
	})

	return g.Wait()
}

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		// Let detached improvement runs land before the stores close.
		if a.improver != nil {
			a.improver.Wait()
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
