package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/cardscan/internal/auth"
	"github.com/mmynk/cardscan/internal/billing"
	"github.com/mmynk/cardscan/internal/classifier"
	"github.com/mmynk/cardscan/internal/config"
	"github.com/mmynk/cardscan/internal/dedupe"
	"github.com/mmynk/cardscan/internal/metrics"
	"github.com/mmynk/cardscan/internal/middleware"
	"github.com/mmynk/cardscan/internal/quota"
	"github.com/mmynk/cardscan/internal/service"
	"github.com/mmynk/cardscan/internal/storage"
	"github.com/mmynk/cardscan/internal/storage/postgres"
	"github.com/mmynk/cardscan/internal/storage/sqlite"
	"github.com/mmynk/cardscan/pkg/api/cardscanv1/cardscanv1connect"
	"github.com/mmynk/cardscan/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadEnv(os.Getenv("ENV_FILE")); err != nil {
		slog.Error("Failed to load env file", "error", err)
		os.Exit(1)
	}
	logging.Setup()

	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	cls, err := classifier.NewClient(ctx, cfg.ClassifierURL, cfg.ClassifierAPIKey,
		classifier.WithModel(cfg.ClassifierModel),
		classifier.WithMetrics(m),
	)
	if err != nil {
		return err
	}
	matcher := dedupe.NewMatcher(store,
		dedupe.WithScanLimit(cfg.DuplicateScanLimit),
		dedupe.WithMetrics(m),
	)
	gate, err := quota.New(store,
		quota.WithWarnPercent(cfg.QuotaWarnPercent),
		quota.WithCycleLength(cfg.QuotaCycle),
		quota.WithMetrics(m),
	)
	if err != nil {
		return err
	}
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	mux := http.NewServeMux()

	// Register Connect services
	scanPath, scanHandler := cardscanv1connect.NewScanServiceHandler(
		service.NewScanService(store, cls, matcher, gate),
		connect.WithInterceptors(middleware.RequireAuth(jwtManager), middleware.LoggingInterceptor()),
	)
	mux.Handle(scanPath, scanHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(middleware.LogRequests(corsMiddleware(mux)), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var consumer *billing.Consumer
	if cfg.NATSURL != "" {
		conn, err := billing.Connect(cfg.NATSURL, cfg.NATSToken)
		if err != nil {
			return err
		}
		defer conn.Close()
		consumer = billing.NewConsumer(conn, billing.NewHandler(store))
	} else {
		slog.Info("NATS_URL not set, billing consumer disabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Connect server starting", "address", cfg.Addr, "db_driver", cfg.DBDriver)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("Shutting down server")
		return server.Shutdown(shutdownCtx)
	})

	if consumer != nil {
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Server) (storage.Store, error) {
	if cfg.DBDriver == "postgres" {
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", "postgres")
		return store, nil
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Info("Storage initialized", "driver", "sqlite", "database", cfg.DBPath)
	return store, nil
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
