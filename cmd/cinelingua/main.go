// cinelingua-service/cmd/cinelingua/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	httpAPI "cinelingua-service/internal/api"
	"cinelingua-service/internal/cache"
	"cinelingua-service/internal/config"
	grpcServer "cinelingua-service/internal/grpc"
	"cinelingua-service/internal/metrics"
	"cinelingua-service/internal/recommend"
	"cinelingua-service/internal/service"
	"cinelingua-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	if err := run(cfg, logger); err != nil {
		logger.Error("Cinelingua service stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()
	m := metrics.New()

	// --- Хранилище каталога ---
	catalog, closeDB, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	if cfg.Breaker.Enabled {
		catalog = store.NewBreakerCatalogStore(catalog, store.BreakerSettings{
			Name:         "catalog",
			MaxRequests:  cfg.Breaker.MaxRequests,
			Interval:     cfg.Breaker.Interval,
			Timeout:      cfg.Breaker.Timeout,
			MinRequests:  cfg.Breaker.MinRequests,
			FailureRatio: cfg.Breaker.FailureRatio,
		}, logger, m)
	}

	// --- Ядро рекомендаций ---
	ranker := recommend.NewRanker(catalog, recommend.NewScorer(cfg.Recommend.Weights), cfg.Recommend.Pool, logger, m)
	curated := recommend.DefaultCuratedConfig()
	curated.Target = cfg.Curated.Target
	if len(cfg.Curated.Buckets) > 0 {
		curated.Buckets = cfg.Curated.Buckets
	}
	aggCache := cache.New(cfg.Cache.TTL, cache.WithMetrics(m))
	logger.Info("Aggregate cache ready", slog.Duration("ttl", aggCache.TTL()))
	svc := service.NewCatalogService(
		catalog,
		aggCache,
		ranker,
		service.CuratedOptions{PoolSize: cfg.Curated.PoolSize, MinRating: cfg.Curated.MinRating, Selector: curated},
		logger,
	)

	serveErr := make(chan error, 2)

	// --- gRPC сервер ---
	var grpcSrv *grpc.Server
	if cfg.GRPC.Enabled {
		lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
		if err != nil {
			return fmt.Errorf("failed to listen for gRPC on port %s: %w", cfg.GRPC.Port, err)
		}
		grpcSrv = grpc.NewServer(grpc.UnaryInterceptor(grpcServer.LoggingInterceptor(logger, m)))
		grpcServer.Register(grpcSrv, grpcServer.NewServer(svc, logger))
		reflection.Register(grpcSrv)

		go func() {
			logger.Info("Cinelingua gRPC server starting", slog.String("port", cfg.GRPC.Port))
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				serveErr <- fmt.Errorf("gRPC server failed: %w", err)
			}
		}()
	}

	// --- HTTP сервер ---
	handler := httpAPI.NewHandler(svc, logger, m)
	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      httpAPI.NewRouter(handler),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("Cinelingua HTTP server starting", slog.String("port", cfg.HTTP.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	runErr := waitForShutdown(quit, serveErr, logger)

	ctxHTTP, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctxHTTP); err != nil {
		logger.Error("Cinelingua HTTP server shutdown failed", slog.String("error", err.Error()))
	} else {
		logger.Info("Cinelingua HTTP server gracefully stopped.")
	}

	if grpcSrv != nil {
		grpcSrv.GracefulStop()
		logger.Info("Cinelingua gRPC server gracefully stopped.")
	}
	stats := aggCache.Stats()
	logger.Info("Aggregate cache totals",
		slog.Int64("hits", stats.Hits), slog.Int64("misses", stats.Misses), slog.Int("keys", stats.Keys))
	return runErr
}

// waitForShutdown ждет сигнала остановки или первой ошибки сервера.
// Сигнал - штатная остановка; ошибка сервера возвращается, и процесс
// завершается с ненулевым кодом.
func waitForShutdown(quit <-chan os.Signal, serveErr <-chan error, logger *slog.Logger) error {
	select {
	case sig := <-quit:
		logger.Info("Cinelingua service shutting down...", slog.String("signal", sig.String()))
		return nil
	case err := <-serveErr:
		logger.Error("Cinelingua server failed, shutting down", slog.String("error", err.Error()))
		return err
	}
}

// openCatalog создает настроенное хранилище каталога и возвращает функцию закрытия.
func openCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.CatalogStore, func(), error) {
	if cfg.Database.Driver == "memory" {
		mem := store.NewMockCatalogStore(logger)
		if cfg.Database.SeedFile == "" {
			logger.Warn("Using an empty in-memory catalog; all results will be empty")
			return mem, func() {}, nil
		}
		f, err := os.Open(cfg.Database.SeedFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open catalog seed: %w", err)
		}
		defer f.Close()
		if _, err := mem.LoadJSON(f, cfg.Database.ImageBase); err != nil {
			return nil, nil, err
		}
		return mem, func() {}, nil
	}

	db, err := store.Connect(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, logger)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		logger.Info("Closing catalog database connection...")
		if err := db.Close(); err != nil {
			logger.Error("Failed to close catalog database connection", slog.String("error", err.Error()))
		}
	}

	pg, err := store.NewPostgresCatalogStore(db, logger, cfg.Database.Table, cfg.Database.ImageBase)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to initialize catalog store: %w", err)
	}
	logger.Info("PostgreSQL catalog store initialized", slog.String("table", cfg.Database.Table))
	return pg, closeDB, nil
}
