package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"sogif-site/internal/alerting"
	"sogif-site/internal/leads"
	"sogif-site/internal/metrics"
	"sogif-site/internal/scheduler"
	"sogif-site/internal/server"
)

// Serve runs the HTTP API and, when enabled, the cache warmer.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; leads will not be persisted")
	}
	if closeStore != nil {
		defer closeStore()
	}

	l, closeLoader, err := a.newLoader(store)
	if err != nil {
		return err
	}
	defer closeLoader()

	var reg *metrics.Registry
	if a.Config.Metrics.Enabled {
		reg = metrics.New()
	}
	constantsCache := a.newCache(l, reg)
	notifier := a.newNotifier()

	var leadSvc server.LeadSubmitter
	if a.Config.Leads.Enabled {
		var leadStore leads.Store
		if store != nil {
			leadStore = store
		}
		leadSvc = a.newLeadService(leadStore, notifier, reg)
	}

	cfg := a.Config.Server
	srv, err := server.New(constantsCache, leadSvc, reg, server.Options{
		Addr:            cfg.Addr,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		AllowedOrigins:  cfg.AllowedOrigins,
		TrustedProxies:  cfg.TrustedProxies,
		ReleaseMode:     a.Config.App.Environment == "production",
	}, a.Logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })

	if warm := a.Config.Constants.Warm; warm.Enabled {
		warmer := scheduler.NewWarmer(constantsCache, notifier, scheduler.Options{
			Interval:     warm.Interval,
			AlignToStart: warm.AlignToStart,
			StartupDelay: warm.StartupDelay,
			WarmOnStart:  true,
			AlertAfter:   warm.AlertAfter,
		}, a.Logger)
		g.Go(func() error { return warmer.Run(gctx) })
	}

	a.Logger.Info().Str("addr", cfg.Addr).Msg("starting site api")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("site api terminated with error")
		return err
	}

	a.Logger.Info().Msg("site api stopped")
	return nil
}

func (a *App) newLeadService(store leads.Store, notifier alerting.Notifier, reg *metrics.Registry) *leads.Service {
	cfg := a.Config.Leads
	var verifier leads.Verifier
	if cfg.Turnstile.Enabled {
		verifier = leads.NewTurnstile(cfg.Turnstile.Secret, cfg.Turnstile.VerifyURL, cfg.Turnstile.RequestTimeout, a.Logger)
	}
	return leads.NewService(store, verifier, notifier, leads.Options{
		IPSalt:           cfg.IPSalt,
		RatePerHour:      cfg.RatePerHour,
		Burst:            cfg.Burst,
		RequireTurnstile: cfg.Turnstile.Required,
		Metrics:          reg,
	}, a.Logger)
}
