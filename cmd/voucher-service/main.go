package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/webbangiay/voucher-service/internal/api"
	"github.com/webbangiay/voucher-service/internal/cache"
	"github.com/webbangiay/voucher-service/internal/config"
	"github.com/webbangiay/voucher-service/internal/engine"
	"github.com/webbangiay/voucher-service/internal/repository"
	"github.com/webbangiay/voucher-service/internal/service"
	"github.com/webbangiay/voucher-service/pkg/db"
	"github.com/webbangiay/voucher-service/pkg/goosemigrate"
	"github.com/webbangiay/voucher-service/pkg/log"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		panic(err)
	}

	log.Init(cfg.Env)
	defer func() { _ = log.Sync() }()

	if err := goosemigrate.New(cfg.PostgresURL(), cfg.Postgres.MigrationsPath).Up(); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}

	conn, err := db.Open(cfg.PostgresURL())
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	defer conn.Close()

	voucherRepo := repository.NewVoucherRepo(conn)
	usageRepo := repository.NewUsageRepo(conn)
	historyRepo := repository.NewOrderHistoryRepo(conn)
	voucherCache := cache.NewVoucherCache(cfg.Cache.TTL)
	evaluator := engine.New(cfg.Currency.MinorUnitPlaces)

	svc := service.New(conn, voucherRepo, usageRepo, historyRepo, voucherCache, evaluator)

	handler := api.NewRouter(api.Deps{
		Service:   svc,
		Vouchers:  voucherRepo,
		Usage:     usageRepo,
		Evaluator: evaluator,
		Cache:     voucherCache,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// graceful shutdown
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("HTTP server shutdown", zap.Error(err))
		}
		close(idleConnsClosed)
	}()

	log.Info("starting voucher-service", zap.String("addr", cfg.HTTP.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("listen failed", zap.Error(err))
	}

	<-idleConnsClosed
	log.Info("server stopped")
}
