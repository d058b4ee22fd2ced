package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"sogif-site/internal/alerting"
	"sogif-site/internal/cache"
	"sogif-site/internal/config"
	"sogif-site/internal/loader"
	"sogif-site/internal/metrics"
	"sogif-site/internal/storage"
	"sogif-site/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives human-readable command output.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.RequestTimeout, a.Logger)
	}
	return alerting.Nop{}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	store, err := storage.Open(ctx, a.Config.Database, a.Config.App.Name)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// newLoader assembles the configured source, wrapped by the circuit breaker and
// the Redis mirror when enabled. The returned closer releases the Redis client.
func (a *App) newLoader(store *storage.Store) (loader.Loader, func(), error) {
	cfg := a.Config.Constants

	var source loader.Loader
	remote := true
	switch cfg.Source {
	case config.SourceHTTP:
		source = loader.NewHTTP(loader.HTTPOptions{
			BaseURL:   cfg.HTTP.BaseURL,
			Path:      cfg.HTTP.Path,
			Token:     cfg.HTTP.Token,
			Timeout:   cfg.HTTP.RequestTimeout,
			UserAgent: userAgent(cfg.HTTP.UserAgent),
		}, a.Logger)
	case config.SourceFile:
		source = loader.NewFile(cfg.File.Path, a.Logger)
		remote = false
	case config.SourcePostgres:
		if store == nil {
			return nil, nil, fmt.Errorf("constants.source %q needs database.dsn", cfg.Source)
		}
		source = loader.NewStore(store, a.Logger)
	default:
		return nil, nil, fmt.Errorf("unknown constants source %q", cfg.Source)
	}

	if remote && cfg.Breaker.Enabled {
		source = loader.NewBreaker(source, loader.BreakerOptions{
			MaxFailures: cfg.Breaker.MaxFailures,
			OpenTimeout: cfg.Breaker.OpenTimeout,
		}, a.Logger)
	}

	closer := func() {}
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		source = loader.NewMirror(source, client, loader.MirrorOptions{Key: cfg.Redis.Key, TTL: cfg.Redis.TTL}, a.Logger)
		closer = func() {
			if err := client.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("close redis client")
			}
		}
	}

	a.Logger.Info().Str("source", cfg.Source).Bool("breaker", remote && cfg.Breaker.Enabled).Bool("redis_mirror", cfg.Redis.Enabled).Msg("constants loader configured")
	return source, closer, nil
}

func userAgent(configured string) string {
	if configured != "" {
		return configured
	}
	return version.UserAgent()
}

func (a *App) newCache(l loader.Loader, reg *metrics.Registry) *cache.Cache {
	return cache.New(l, cache.Options{Revalidate: a.Config.Constants.Revalidate, Metrics: reg}, a.Logger)
}

// ExportOptions hold parameters for exporting the performance series.
type ExportOptions struct {
	Dir     string
	CSVPath string
	PNGPath string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit     int
	Snapshots bool
}

// PublishOptions configure the publish command.
type PublishOptions struct {
	File   string
	Source string
	DryRun bool
}
