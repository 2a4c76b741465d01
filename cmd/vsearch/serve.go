package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oscara1796/vecsearch/internal/analytics"
	analyticsstore "github.com/oscara1796/vecsearch/internal/analytics/store"
	"github.com/oscara1796/vecsearch/internal/corpus"
	"github.com/oscara1796/vecsearch/internal/indexer"
	"github.com/oscara1796/vecsearch/internal/searcher/cache"
	"github.com/oscara1796/vecsearch/internal/searcher/executor"
	"github.com/oscara1796/vecsearch/internal/searcher/handler"
	"github.com/oscara1796/vecsearch/internal/searcher/server"
	"github.com/oscara1796/vecsearch/pkg/config"
	"github.com/oscara1796/vecsearch/pkg/database"
	"github.com/oscara1796/vecsearch/pkg/health"
	"github.com/oscara1796/vecsearch/pkg/kafka"
	"github.com/oscara1796/vecsearch/pkg/logger"
	"github.com/oscara1796/vecsearch/pkg/metrics"
	"github.com/oscara1796/vecsearch/pkg/middleware"
	pkgredis "github.com/oscara1796/vecsearch/pkg/redis"
)

func newServeCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP search service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	if cfg.Metrics.Enabled {
		shutdownMetrics := svc.metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	srv := server.New(cfg.Server, svc.handler)
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()
	if err := srv.ListenAndServe(); err != nil {
		return err
	}
	slog.Info("search service stopped")
	return nil
}

// service is the wired search service minus its listeners.
type service struct {
	engine    *indexer.Engine
	metrics   *metrics.Metrics
	collector *analytics.Collector
	handler   http.Handler
	closers   []func()
}

func (s *service) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// newService wires the corpus source, engine, cache, analytics and router,
// then builds the first snapshot. A failed first build is logged and leaves
// the service running but not ready. Background work stops with ctx.
func newService(ctx context.Context, cfg *config.Config) (_ *service, err error) {
	log := logger.WithComponent("vsearch")
	svc := &service{metrics: metrics.New(nil)}
	defer func() {
		if err != nil {
			svc.close()
		}
	}()

	src, closeSrc, err := corpus.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	svc.closers = append(svc.closers, func() { _ = closeSrc() })

	engine := indexer.NewEngine(src, cfg.Index, cfg.Corpus.LoadTimeout, svc.metrics)
	svc.engine = engine
	exec := executor.New(engine, cfg.Search, svc.metrics)

	checker := health.NewChecker()
	checker.Register("index", health.Ready(engine.Ready, "no index snapshot yet"))

	var store cache.Store = cache.NewMemoryStore()
	if cfg.Redis.Enabled {
		rc, rerr := pkgredis.NewClient(ctx, cfg.Redis)
		if rerr != nil {
			log.Warn("redis unavailable, caching in memory", "addr", cfg.Redis.Addr, "error", rerr)
		} else {
			store = rc
			svc.closers = append(svc.closers, func() { _ = rc.Close() })
			checker.Register("redis", health.Ping(rc.Ping, false))
			log.Info("redis query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	queryCache := cache.New(store, exec, cfg.Redis.CacheTTL, svc.metrics)
	engine.OnSwap(queryCache.OnSwap)

	var analyticsHandler *analytics.Handler
	if cfg.Analytics.Enabled {
		analyticsHandler, err = svc.wireAnalytics(ctx, cfg, checker)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Corpus.Watch {
		if fs, ok := src.(*corpus.FileSource); ok {
			w := corpus.NewWatcher(fs.Path(), func() {
				if _, rerr := engine.Reload(ctx); rerr != nil {
					log.Error("reload after corpus change failed", "error", rerr)
				}
			})
			if err = w.Start(ctx); err != nil {
				return nil, err
			}
			svc.closers = append(svc.closers, w.Stop)
		} else {
			log.Warn("corpus.watch ignored for non-file source", "source", src.Name())
		}
	}

	var limiter *middleware.Limiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
		go limiter.Cleanup(ctx, time.Minute)
	}

	svc.handler = server.NewRouter(server.Routes{
		Search:         handler.New(engine, exec, queryCache, svc.collector),
		Analytics:      analyticsHandler,
		Health:         checker,
		Metrics:        svc.metrics,
		Limiter:        limiter,
		RequestTimeout: cfg.Server.WriteTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
	})

	if _, rerr := engine.Reload(ctx); rerr != nil {
		log.Error("initial index build failed; serving without an index", "error", rerr)
	}
	return svc, nil
}

// wireAnalytics routes search events through Kafka when it is enabled and
// straight into the in-process aggregate otherwise.
func (s *service) wireAnalytics(ctx context.Context, cfg *config.Config, checker *health.Checker) (*analytics.Handler, error) {
	log := logger.WithComponent("vsearch")
	agg := analytics.NewAggregator(cfg.Analytics.TopN)

	var publisher analytics.Publisher = agg
	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.Topics.AnalyticsEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		s.closers = append(s.closers, func() { _ = producer.Close() })
		publisher = producer

		consumer := kafka.NewConsumer(cfg.Kafka, topic, agg.HandleMessage)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error("analytics consumer stopped", "error", err)
			}
		}()
		log.Info("analytics routed through kafka", "topic", topic, "brokers", cfg.Kafka.Brokers)
	}

	if cfg.Analytics.Persist {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("opening analytics database: %w", err)
		}
		s.closers = append(s.closers, func() { _ = db.Close() })
		checker.Register("analytics_db", health.Ping(db.Ping, false))

		st := analyticsstore.New(db)
		if err := st.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		latest, err := st.Latest(ctx)
		if err != nil {
			log.Warn("could not restore analytics snapshot", "error", err)
		} else if latest != nil {
			agg.Restore(*latest)
		}
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			st.Run(runCtx, agg, cfg.Analytics.SnapshotInterval)
		}()
		s.closers = append(s.closers, func() {
			cancel()
			<-done
		})
	}

	collector := analytics.NewCollector(publisher, cfg.Analytics, s.metrics)
	collector.Start(ctx)
	s.collector = collector
	s.closers = append(s.closers, collector.Close)

	s.engine.OnSwap(func(snap *indexer.Snapshot) {
		stats := snap.Index.Stats()
		collector.TrackReload(analytics.ReloadEvent{
			Version:   snap.Version,
			Source:    snap.Source,
			Documents: stats.Documents,
			Terms:     stats.Terms,
			Tokens:    stats.Tokens,
		})
	})
	return analytics.NewHandler(agg), nil
}
