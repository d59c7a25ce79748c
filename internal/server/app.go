// Package server builds the PromoForge dependency graph and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/promoforge/internal/api"
	"github.com/JakeFAU/promoforge/internal/cache/redis"
	"github.com/JakeFAU/promoforge/internal/clock/system"
	"github.com/JakeFAU/promoforge/internal/config"
	"github.com/JakeFAU/promoforge/internal/creatomate"
	"github.com/JakeFAU/promoforge/internal/id/uuid"
	"github.com/JakeFAU/promoforge/internal/logging"
	"github.com/JakeFAU/promoforge/internal/policy/ratelimit"
	"github.com/JakeFAU/promoforge/internal/promo"
	gcppublisher "github.com/JakeFAU/promoforge/internal/publisher/pubsub"
	"github.com/JakeFAU/promoforge/internal/render"
	"github.com/JakeFAU/promoforge/internal/scraper"
	"github.com/JakeFAU/promoforge/internal/shotstack"
	"github.com/JakeFAU/promoforge/internal/speech"
	gcsstorage "github.com/JakeFAU/promoforge/internal/storage/gcs"
	localstorage "github.com/JakeFAU/promoforge/internal/storage/local"
	memorystorage "github.com/JakeFAU/promoforge/internal/storage/memory"
	pgstore "github.com/JakeFAU/promoforge/internal/storage/postgres"
	"github.com/JakeFAU/promoforge/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg            *config.Config
	logger         *zap.Logger
	apiServer      *api.Server
	headless       *scraper.Headless
	storage        *storage.Client
	pubsubClient   *pubsub.Client
	publisher      *gcppublisher.Publisher
	renderLog      *pgstore.RenderLog
	scrapeCache    *redis.Cache
	tracerProvider *sdktrace.TracerProvider
	closed         bool
}

// Build creates the application's dependencies. Optional backends (Postgres, Pub/Sub, Redis)
// are only dialed when configured.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	logging.Startup(logger, *cfg)

	app := &App{cfg: cfg, logger: logger}
	if err := app.build(ctx); err != nil {
		app.closeInfrastructure(context.Background())
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	tp, err := telemetry.Init(ctx, a.cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("tracer init failed: %w", err)
	}
	a.tracerProvider = tp

	clock := system.New()

	blobs, media, err := a.setupStorage(ctx)
	if err != nil {
		return err
	}
	renderLog, err := a.setupDatabase(ctx)
	if err != nil {
		return err
	}
	publisher, err := a.setupPublisher(ctx)
	if err != nil {
		return err
	}
	scrapes, err := a.setupScraper(ctx, blobs, clock)
	if err != nil {
		return err
	}

	client := shotstack.NewClient(a.cfg.Shotstack.Credentials, &http.Client{
		Timeout:   a.cfg.ShotstackTimeout(),
		Transport: telemetry.Transport(nil),
	})
	if _, err := a.cfg.Shotstack.Credentials(); err != nil {
		a.logger.Warn("rendering service credentials invalid; render routes will fail until fixed", zap.Error(err))
	}
	workflow := render.New(client, publisher, renderLog, clock, render.Config{
		Interval:    a.cfg.Render.Status.Interval(),
		MaxAttempts: a.cfg.Render.Status.MaxAttempts,
		Topic:       a.cfg.PubSub.TopicName,
	}, a.logger.Named("render"))
	fullFlow := workflow.WithPolling(a.cfg.Render.FullFlow.Interval(), a.cfg.Render.FullFlow.MaxAttempts)

	voice := speech.NewService(
		speech.NewElevenLabs(speech.Config{
			APIKey:  a.cfg.Speech.APIKey,
			BaseURL: a.cfg.Speech.BaseURL,
			ModelID: a.cfg.Speech.ModelID,
			Timeout: time.Duration(a.cfg.Speech.TimeoutSeconds) * time.Second,
		}, &http.Client{Transport: telemetry.Transport(nil)}),
		blobs,
		uuid.New(),
		clock,
		a.cfg.Speech.DefaultVoice,
		a.logger.Named("speech"),
	)

	deps := api.Deps{
		Renderer: workflow,
		FullFlow: fullFlow,
		Raw:      client,
		Scraper:  scrapes,
		Speech:   voice,
		Blobs:    blobs,
		Clock:    clock,
	}
	if a.cfg.Render.Provider == config.ProviderCreatomate {
		deps.Templates = creatomate.NewClient(creatomate.Config{
			APIKey:  a.cfg.Creatomate.APIKey,
			BaseURL: a.cfg.Creatomate.BaseURL,
		}, &http.Client{
			Timeout:   time.Duration(a.cfg.Creatomate.TimeoutSeconds) * time.Second,
			Transport: telemetry.Transport(nil),
		})
		if a.cfg.Creatomate.APIKey == "" {
			a.logger.Warn("slideshow provider is creatomate but CREATOMATE_API_KEY is not set")
		}
	}
	if media != nil {
		deps.Media = media
	}
	a.apiServer = api.NewServer(deps, *a.cfg, a.logger.Named("api"))
	return nil
}

// Handler returns the traced HTTP handler.
func (a *App) Handler() http.Handler {
	return telemetry.Handler(a.apiServer.Handler())
}

// Run starts the HTTP server and blocks until ctx is canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close(shutdownCtx)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases every backend. It is safe to call more than once.
func (a *App) Close(ctx context.Context) {
	if a.closed {
		return
	}
	a.closed = true
	a.closeInfrastructure(ctx)
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
}

func (a *App) closeInfrastructure(_ context.Context) {
	if a.headless != nil {
		a.headless.Close()
	}
	if a.publisher != nil {
		a.publisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.renderLog != nil {
		a.renderLog.Close()
	}
	if a.scrapeCache != nil {
		if err := a.scrapeCache.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// setupStorage returns the blob store and, for backends this process serves itself, the
// reader behind /media.
func (a *App) setupStorage(ctx context.Context) (promo.BlobStore, api.MediaReader, error) {
	cfg := a.cfg.Storage
	switch cfg.Backend {
	case "gcs":
		a.logger.Info("using GCS storage backend", zap.String("bucket", cfg.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.storage = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.Bucket, PublicBaseURL: cfg.PublicBaseURL})
		if err != nil {
			return nil, nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobs, nil, nil
	case "local":
		a.logger.Info("using local storage backend", zap.String("path", cfg.LocalDir))
		blobs, err := localstorage.New(localstorage.Config{BaseDir: cfg.LocalDir, PublicBaseURL: cfg.PublicBaseURL})
		if err != nil {
			return nil, nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobs, blobs, nil
	default:
		a.logger.Info("using in-memory storage backend")
		blobs := memorystorage.NewBlobStore(cfg.PublicBaseURL)
		return blobs, blobs, nil
	}
}

func (a *App) setupDatabase(ctx context.Context) (promo.RenderLog, error) {
	if a.cfg.Database.DSN == "" {
		a.logger.Info("no database DSN configured, render audit log disabled")
		return nil, nil
	}
	log, err := pgstore.NewRenderLog(ctx, pgstore.Config{
		DSN:             a.cfg.Database.DSN,
		Table:           a.cfg.Database.Table,
		MaxConns:        a.cfg.Database.MaxConns,
		MinConns:        a.cfg.Database.MinConns,
		MaxConnLifetime: a.cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("render log init failed: %w", err)
	}
	a.renderLog = log
	a.logger.Info("render log initialized", zap.String("table", a.cfg.Database.Table))
	return log, nil
}

func (a *App) setupPublisher(ctx context.Context) (promo.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Info("no Pub/Sub topic configured, render notifications disabled")
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.publisher = gcppublisher.New(client.Publisher(a.cfg.PubSub.TopicName))
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return a.publisher, nil
}

func (a *App) setupScraper(ctx context.Context, blobs promo.BlobStore, clock promo.Clock) (*scraper.Service, error) {
	cfg := a.cfg.Scraper
	var engine scraper.Engine
	if cfg.Headless {
		headless, err := scraper.NewHeadless(scraper.HeadlessConfig{
			MaxParallel:       cfg.MaxParallel,
			UserAgent:         cfg.UserAgent,
			NavigationTimeout: time.Duration(cfg.NavTimeoutSeconds) * time.Second,
			ViewportWidth:     cfg.ViewportWidth,
			ViewportHeight:    cfg.ViewportHeight,
			Settle:            time.Duration(cfg.SettleMs) * time.Millisecond,
			ScrollDelay:       time.Duration(cfg.ScrollDelayMs) * time.Millisecond,
			JPEGQuality:       cfg.JPEGQuality,
		}, blobs, uuid.New(), clock)
		if err != nil {
			a.logger.Warn("headless scraper init failed, falling back to static", zap.Error(err))
		} else {
			a.headless = headless
			engine = headless
			a.logger.Info("using headless scraper", zap.Int("max_parallel", cfg.MaxParallel))
		}
	}
	if engine == nil {
		engine = scraper.NewStatic(scraper.StaticConfig{
			UserAgent: cfg.UserAgent,
			Timeout:   time.Duration(cfg.NavTimeoutSeconds) * time.Second,
		}, clock)
		a.logger.Info("using static scraper")
	}

	var opts []scraper.Option
	if a.cfg.RateLimit.Enabled {
		opts = append(opts, scraper.WithThrottle(ratelimit.New(ratelimit.Config{
			DefaultRPS:   a.cfg.RateLimit.DefaultRPS,
			DefaultBurst: a.cfg.RateLimit.DefaultBurst,
		})))
		a.logger.Info("scrape rate limiter enabled",
			zap.Float64("default_rps", a.cfg.RateLimit.DefaultRPS),
			zap.Int("default_burst", a.cfg.RateLimit.DefaultBurst),
		)
	}
	if a.cfg.Redis.Addr != "" {
		client, err := redis.Dial(ctx, redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Username: a.cfg.Redis.Username,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
			UseTLS:   a.cfg.Redis.UseTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("scrape cache init failed: %w", err)
		}
		a.scrapeCache = redis.New(client, time.Duration(cfg.CacheTTLSeconds)*time.Second)
		opts = append(opts, scraper.WithCache(a.scrapeCache, redis.Key))
		a.logger.Info("scrape cache enabled", zap.String("addr", a.cfg.Redis.Addr))
	}
	return scraper.NewService(engine, a.logger.Named("scraper"), opts...), nil
}
