package main

import (
	"context"

	"github.com/genricoloni/navicord/internal/artwork"
	"github.com/genricoloni/navicord/internal/cache"
	"github.com/genricoloni/navicord/internal/config"
	"github.com/genricoloni/navicord/internal/domain"
	"github.com/genricoloni/navicord/internal/engine"
	"github.com/genricoloni/navicord/internal/fetcher"
	"github.com/genricoloni/navicord/internal/gateway"
	"github.com/genricoloni/navicord/internal/monitor"
	"github.com/genricoloni/navicord/internal/poller"
	"github.com/genricoloni/navicord/internal/processor"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// cliFlags carries command line flags into the graph
type cliFlags struct {
	ConfigFile string
	Debug      bool
}

// AppOptions is the application graph. The caller supplies cliFlags.
var AppOptions = fx.Options(
	fx.Provide(
		newLogger,
		newViper,
		config.NewAppConfig,
		func(c *config.AppConfig) domain.Config { return c },
		newCache,
		fx.Annotate(fetcher.NewHTTPFetcher, fx.As(new(domain.Fetcher))),
		fx.Annotate(processor.NewCoverProcessor, fx.As(new(domain.ImageProcessor))),
		newSubsonicClient,
		newArtworkProviders,
		newArtworkResolver,
		newPoller,
		newSession,
		func(s *gateway.Session) domain.PresenceSink { return s },
		engine.NewEngine,
	),
	fx.Invoke(registerHooks),
)

// newLogger creates a new zap logger instance
func newLogger(flags cliFlags) (*zap.Logger, error) {
	if flags.Debug {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func newViper(flags cliFlags) (*viper.Viper, error) {
	return config.NewViper(flags.ConfigFile)
}

func newCache(logger *zap.Logger, cfg *config.AppConfig) *cache.Store {
	store := cache.NewStore(logger, cfg.Cache.Path, cfg.Cache.TTL)
	logger.Info("Artwork cache", zap.String("path", store.Path()), zap.Duration("ttl", cfg.Cache.TTL))
	return store
}

// newSubsonicClient returns nil unless the Subsonic source is configured
func newSubsonicClient(cfg *config.AppConfig) *poller.SubsonicClient {
	if cfg.Source != config.SourceSubsonic {
		return nil
	}
	return poller.NewSubsonicClient(cfg.Subsonic.Server, cfg.Subsonic.Username, cfg.Subsonic.Password)
}

// newArtworkProviders orders providers from cheapest to most expensive
func newArtworkProviders(
	logger *zap.Logger,
	cfg *config.AppConfig,
	client *poller.SubsonicClient,
	fetch domain.Fetcher,
	proc domain.ImageProcessor,
) []domain.ArtworkProvider {
	var providers []domain.ArtworkProvider

	if cfg.LastFM.APIKey != "" {
		providers = append(providers, artwork.NewLastFM(logger, "", cfg.LastFM.APIKey))
	}
	if cfg.Upload.Enabled && client != nil {
		providers = append(providers, artwork.NewUploadProvider(logger, client, fetch, proc, artwork.NewLitterbox("")))
	}

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	logger.Info("Artwork providers", zap.Strings("providers", names))

	return providers
}

func newArtworkResolver(logger *zap.Logger, store *cache.Store, providers []domain.ArtworkProvider) domain.ArtworkResolver {
	return artwork.NewResolver(logger, store, providers...)
}

func newPoller(
	logger *zap.Logger,
	cfg *config.AppConfig,
	client *poller.SubsonicClient,
	resolver domain.ArtworkResolver,
) domain.Poller {
	if cfg.Source == config.SourceMPRIS {
		return monitor.NewMprisPoller(logger, resolver)
	}
	return poller.NewSubsonicPoller(logger, client, resolver)
}

func newSession(logger *zap.Logger, cfg *config.AppConfig) *gateway.Session {
	return gateway.NewSession(logger, gateway.Options{
		Token:         cfg.Discord.Token,
		ApplicationID: cfg.Discord.ClientID,
		Status:        cfg.Discord.Status,
		DiscoveryURL:  cfg.Discord.DiscoveryURL,
		APIBaseURL:    cfg.Discord.APIURL,
		Backoff:       cfg.Discord.ReconnectBackoff,
	})
}

// registerHooks sets up application lifecycle hooks.
// Hooks stop in reverse order: the engine stops polling before the session clears presence.
func registerHooks(lc fx.Lifecycle, logger *zap.Logger, session *gateway.Session, eng *engine.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Navicord daemon started")
			return session.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			return session.Shutdown(ctx)
		},
	})
	lc.Append(fx.Hook{
		OnStart: eng.Start,
		OnStop:  eng.Stop,
	})
}
