package main

import (
	"context"
	"ecare/cmd/internal/apiclient"
	"ecare/cmd/internal/config"
	"ecare/cmd/internal/localapi"
	"ecare/cmd/internal/localstore"
	"ecare/cmd/internal/metrics"
	"ecare/cmd/internal/syncer"
	"ecare/cmd/internal/utils/validators"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", err)
	}

	store, err := localstore.Open(cfg.Sync.LocalDBPath)
	if err != nil {
		log.Fatal("failed to open local store", err)
	}
	defer store.Close()

	validate := validator.New()
	validators.Register(validate)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	syncMetrics := metrics.NewSyncMetrics(reg)

	client := apiclient.NewClient(cfg.Sync.APIBaseURL,
		apiclient.WithToken(cfg.Sync.APIToken),
		apiclient.WithTimeout(cfg.Sync.RequestLimit),
	)
	worker := syncer.NewWorker(store, client, syncMetrics, apiclient.IsNotFound)
	manager := syncer.NewManager(worker).
		WithInterval(cfg.Sync.Interval).
		WithBackoff(cfg.Sync.Backoff).
		WithConnectivity(syncer.HTTPConnectivity(cfg.Sync.HealthURL, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Server.ReadHeaderTimeout = 5 * time.Second
	localapi.NewLocalDefault(store, manager, validate).Register(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	go func() {
		if err := e.Start(cfg.Sync.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("failed to serve local api: %v", err)
		}
	}()

	// SIGUSR1 asks for a sync right away.
	wake := make(chan os.Signal, 1)
	signal.Notify(wake, syscall.SIGUSR1)
	go func() {
		for range wake {
			log.Info("immediate sync requested")
			manager.RequestImmediate()
		}
	}()

	manager.Start(ctx)
	log.Infof("sync agent started on %s, pushing to %s every %s", cfg.Sync.ListenAddr, cfg.Sync.APIBaseURL, cfg.Sync.Interval)

	<-manager.Done()
	signal.Stop(wake)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("failed to stop local api: %v", err)
	}
	log.Info("sync agent stopped")
}
