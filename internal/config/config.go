package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`
	ICEServers []string      `mapstructure:"ice_servers"`

	Playback  PlaybackConfig  `mapstructure:"playback"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Decoder   DecoderConfig   `mapstructure:"decoder"`
	Store     StoreConfig     `mapstructure:"store"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type PlaybackConfig struct {
	DisconnectTimeout  time.Duration `mapstructure:"disconnect_timeout"`
	HistorySize        int           `mapstructure:"history_size"`
	// Autoplay is the starting value for new sessions; rooms opt out with the autoplay command.
	Autoplay           bool          `mapstructure:"autoplay"`
	AutoplayCandidates int           `mapstructure:"autoplay_candidates"`
}

type ResolverConfig struct {
	Proxy         string        `mapstructure:"proxy"`
	DefaultSearch string        `mapstructure:"default_search"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type DecoderConfig struct {
	Binary       string        `mapstructure:"binary"`
	Bitrate      string        `mapstructure:"bitrate"`
	PageDuration time.Duration `mapstructure:"page_duration"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RateLimitConfig bounds signal commands per user and room. A limit of 0 disables it.
type RateLimitConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})

	v.SetDefault("playback.disconnect_timeout", "300s")
	v.SetDefault("playback.history_size", 15)
	v.SetDefault("playback.autoplay", true)
	v.SetDefault("playback.autoplay_candidates", 5)

	v.SetDefault("resolver.proxy", "")
	v.SetDefault("resolver.default_search", "ytsearch")
	v.SetDefault("resolver.timeout", "30s")

	v.SetDefault("decoder.binary", "ffmpeg")
	v.SetDefault("decoder.bitrate", "128k")
	v.SetDefault("decoder.page_duration", "20ms")

	v.SetDefault("store.path", "./data/jukebox.db")
	v.SetDefault("metrics.enabled", true)

	v.SetDefault("ratelimit.limit", 5)
	v.SetDefault("ratelimit.interval", "5s")
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default). Every key can
// be overridden from the environment, e.g. JUKEBOX_RESOLVER_PROXY.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("JUKEBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	logger := log.With().Str("module", "config").Str("file", fileName).Logger()
	if err := v.ReadInConfig(); err != nil {
		logger.Warn().Err(err).Msg("config file not loaded, using defaults")
	} else {
		logger.Info().Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	logger.Info().Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Str("store", cfg.Store.Path).Msg("config ready")
	return &cfg, nil
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
