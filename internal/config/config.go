package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/genricoloni/navicord/internal/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	envPrefix = "NAVICORD"

	SourceSubsonic = "subsonic"
	SourceMPRIS    = "mpris"

	defaultPollInterval = time.Second
	defaultStatus       = "dnd"
	defaultBackoff      = 5 * time.Second
	defaultCacheTTL     = 72 * time.Hour
)

// keys are bound to NAVICORD_* environment variables (dots become underscores)
var keys = []string{
	"source",
	"subsonic.server",
	"subsonic.username",
	"subsonic.password",
	"discord.token",
	"discord.client_id",
	"discord.status",
	"discord.discovery_url",
	"discord.api_url",
	"discord.reconnect_backoff",
	"lastfm.api_key",
	"upload.enabled",
	"poll_interval",
	"activity_name",
	"cache.path",
	"cache.ttl",
}

type SubsonicConfig struct {
	Server   string `mapstructure:"server"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// DiscordConfig holds gateway settings. DiscoveryURL and APIURL override the
// public endpoints when set.
type DiscordConfig struct {
	Token            string        `mapstructure:"token"`
	ClientID         string        `mapstructure:"client_id"`
	Status           string        `mapstructure:"status"`
	DiscoveryURL     string        `mapstructure:"discovery_url"`
	APIURL           string        `mapstructure:"api_url"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff"`
}

type LastFMConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type UploadConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type CacheConfig struct {
	Path string        `mapstructure:"path"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// AppConfig holds application configuration
type AppConfig struct {
	Source       string         `mapstructure:"source"`
	Subsonic     SubsonicConfig `mapstructure:"subsonic"`
	Discord      DiscordConfig  `mapstructure:"discord"`
	LastFM       LastFMConfig   `mapstructure:"lastfm"`
	Upload       UploadConfig   `mapstructure:"upload"`
	PollInterval time.Duration  `mapstructure:"poll_interval"`
	ActivityName string         `mapstructure:"activity_name"`
	Cache        CacheConfig    `mapstructure:"cache"`
}

var _ domain.Config = (*AppConfig)(nil)

// NewViper creates a viper instance reading NAVICORD_* environment variables
// and, when configFile is set, that file. Environment variables take precedence.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("source", SourceSubsonic)
	v.SetDefault("discord.status", defaultStatus)
	v.SetDefault("discord.reconnect_backoff", defaultBackoff)
	v.SetDefault("upload.enabled", false)
	v.SetDefault("poll_interval", defaultPollInterval)
	v.SetDefault("activity_name", string(domain.DisplayArtist))
	v.SetDefault("cache.ttl", defaultCacheTTL)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("could not bind %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(expandHome(configFile))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
	}

	return v, nil
}

// NewAppConfig decodes and validates the configuration held by v
func NewAppConfig(logger *zap.Logger, v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))
	cfg.Cache.Path = expandHome(cfg.Cache.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		zap.String("source", cfg.Source),
		zap.String("server", cfg.Subsonic.Server),
		zap.String("user", cfg.Subsonic.Username),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("activity_name", cfg.ActivityName),
		zap.Bool("lastfm", cfg.LastFM.APIKey != ""),
		zap.Bool("upload", cfg.Upload.Enabled))

	return &cfg, nil
}

// Validate reports every missing or invalid setting at once
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.Source {
	case SourceSubsonic:
		if c.Subsonic.Server == "" {
			errs = append(errs, missing("subsonic.server"))
		}
		if c.Subsonic.Username == "" {
			errs = append(errs, missing("subsonic.username"))
		}
		if c.Subsonic.Password == "" {
			errs = append(errs, missing("subsonic.password"))
		}
	case SourceMPRIS:
		if c.Upload.Enabled {
			errs = append(errs, errors.New("upload.enabled requires source subsonic"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q (want %s or %s)", c.Source, SourceSubsonic, SourceMPRIS))
	}

	if c.Discord.Token == "" {
		errs = append(errs, missing("discord.token"))
	}
	if c.Discord.ClientID == "" {
		errs = append(errs, missing("discord.client_id"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.Discord.ReconnectBackoff <= 0 {
		errs = append(errs, fmt.Errorf("discord.reconnect_backoff must be positive, got %s", c.Discord.ReconnectBackoff))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL))
	}
	if strings.TrimSpace(c.ActivityName) == "" {
		errs = append(errs, missing("activity_name"))
	}

	return errors.Join(errs...)
}

func missing(key string) error {
	return fmt.Errorf("missing required config field: %s", key)
}

// GetPollInterval returns how often the now-playing source is polled
func (c *AppConfig) GetPollInterval() time.Duration {
	return c.PollInterval
}

// GetDisplayMode returns the activity name display mode
func (c *AppConfig) GetDisplayMode() domain.DisplayMode {
	return domain.DisplayMode(c.ActivityName)
}

// GetClientID returns the gateway application id
func (c *AppConfig) GetClientID() string {
	return c.Discord.ClientID
}

func expandHome(path string) string {
	path = os.ExpandEnv(path)
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
