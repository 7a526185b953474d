package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"awaydesk/backend/internal/authz"
	"awaydesk/backend/internal/config"
	"awaydesk/backend/internal/domain"
	"awaydesk/backend/internal/logging"
	"awaydesk/backend/internal/metrics"
	"awaydesk/backend/internal/notify"
	"awaydesk/backend/internal/service/outofoffice"
	"awaydesk/backend/internal/store/postgres"
	grpcTransport "awaydesk/backend/internal/transport/grpc"
	"awaydesk/backend/internal/webhooks"
)

const serviceName = "awaydesk-server"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		return 1
	}

	log, zl, err := logging.New(serviceName, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		slog.Error("logger init failed", slog.Any("err", err))
		return 1
	}
	defer func() {
		_ = zl.Sync()
	}()
	slog.SetDefault(log)

	log.Info("starting", slog.String("grpc_addr", cfg.GRPCAddr()), slog.String("log_level", cfg.LogLevel))

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Error("auth.jwt_secret is required")
		return 1
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return 1
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	var sender notify.Sender = notify.NewLogSender(log)
	if cfg.RedisAddr != "" {
		rdb, err := notify.OpenRedis(notify.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Error("redis connection failed", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
			return 1
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("redis close failed", slog.Any("err", err))
			}
		}()
		sender = notify.NewStreamSender(rdb, cfg.NotifyStream)
		log.Info("notices go to redis stream", slog.String("stream", cfg.NotifyStream))
	} else {
		log.Warn("redis not configured; notices are only logged")
	}

	az, err := authz.New(authz.DefaultPolicies())
	if err != nil {
		log.Error("authorization policy load failed", slog.Any("err", err))
		return 1
	}

	svc := outofoffice.NewService(outofoffice.Deps{
		Entries:    postgres.NewEntryRepo(db),
		Directory:  postgres.NewDirectoryRepo(db),
		Webhooks:   postgres.NewWebhookRepo(db),
		Authz:      az,
		Notifier:   sender,
		Dispatcher: webhooks.NewDispatcher(log, webhooks.Options{Timeout: cfg.WebhookTimeout, MaxConcurrency: cfg.WebhookMaxConcurrency}),
		Log:        log,
	}, outofoffice.Options{
		RedirectGuard:      domain.RedirectGuard{MaxDepth: cfg.RedirectMaxDepth},
		SideEffectsTimeout: cfg.SideEffectsTimeout,
	})

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			defaultRequestTimeoutInterceptor(cfg.GRPCRequestTimeout),
			grpcTransport.MetricsInterceptor(),
			grpcTransport.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer).UnaryInterceptor(),
		),
	)
	grpcTransport.RegisterOutOfOfficeServiceServer(grpcServer, grpcTransport.NewOutOfOfficeServer(svc, log))

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		log.Info("metrics server started", slog.String("metrics_addr", cfg.MetricsAddr))
	}

	code := 0
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("server stopped with error", slog.Any("err", err))
			code = 1
		}
	}

	shutdown(log, grpcServer, metricsServer, cfg.ShutdownTimeout)

	log.Info("waiting for pending side effects", slog.Duration("timeout", cfg.SideEffectsTimeout))
	svc.Wait()
	return code
}

func defaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

func shutdown(log *slog.Logger, s *grpc.Server, metricsServer *http.Server, timeout time.Duration) {
	log.Info("shutting down", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Warn("metrics server shutdown failed", slog.Any("err", err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
