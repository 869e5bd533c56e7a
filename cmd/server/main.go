package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TimurManjosov/goruled/internal/actions"
	"github.com/TimurManjosov/goruled/internal/api"
	"github.com/TimurManjosov/goruled/internal/bus"
	"github.com/TimurManjosov/goruled/internal/conditions"
	"github.com/TimurManjosov/goruled/internal/config"
	"github.com/TimurManjosov/goruled/internal/engine"
	"github.com/TimurManjosov/goruled/internal/entities"
	"github.com/TimurManjosov/goruled/internal/logging"
	"github.com/TimurManjosov/goruled/internal/mailer"
	"github.com/TimurManjosov/goruled/internal/rules"
	"github.com/TimurManjosov/goruled/internal/signals"
	"github.com/TimurManjosov/goruled/internal/store"
	"github.com/TimurManjosov/goruled/internal/telemetry"
	"github.com/TimurManjosov/goruled/internal/templates"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.AppEnv)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	telemetry.Init()

	ctx := context.Background()
	st, err := store.NewStore(ctx, cfg.StoreType, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("creating store")
	}
	defer st.Close()

	catalog := templates.NewCatalog(cfg.TemplatesDir)

	var sender mailer.Sender = mailer.NewLogSender(log)
	if len(cfg.NotifyURLs) > 0 {
		s, err := mailer.NewShoutrrrSender(cfg.NotifyURLs)
		if err != nil {
			log.Fatal().Err(err).Msg("creating notification sender")
		}
		sender = s
	}

	condReg := conditions.NewBuiltinRegistry()
	actReg := actions.NewBuiltinRegistry(log, catalog, sender, nil)
	validator := rules.NewValidator(condReg, actReg)

	entReg := entities.NewRegistry(cfg.EntityTypes...)
	source := entities.NewMemorySource()

	eventBus := bus.New(log)
	manager := signals.NewManager(eventBus, condReg, actReg, st, log)
	if err := manager.ResubscribeAll(ctx); err != nil {
		log.Fatal().Err(err).Msg("rebuilding signal subscriptions")
	}

	scanner := engine.NewScanner(st, condReg, actReg, source, log)
	scanner.Guard = engine.GuardPolicy(cfg.CronGuardPolicy)

	apiSrv := api.NewServer(api.Deps{
		Store:          st,
		Conditions:     condReg,
		Actions:        actReg,
		Validator:      validator,
		Signals:        manager,
		Scanner:        scanner,
		Entities:       entReg,
		Templates:      catalog,
		Log:            log,
		AdminAPIKey:    cfg.AdminAPIKey,
		RateLimitPerIP: cfg.RateLimitPerIP,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      apiSrv.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("metrics server")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShut)
	_ = metricsSrv.Shutdown(ctxShut)
	log.Info().Msg("stopped")
}
