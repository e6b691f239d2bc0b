// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Discord  DiscordConfig           `yaml:"discord"`
	Server   ServerConfig            `yaml:"server"`
	Admin    AdminConfig             `yaml:"admin"`
	Playback PlaybackConfig          `yaml:"playback"`
	Audio    AudioConfig             `yaml:"audio"`
	Sources  []SourceConfig          `yaml:"sources" validate:"required,min=1,dive"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Store    StoreConfig             `yaml:"store"`
	Messages MessagesConfig          `yaml:"messages"`
	Spotify  SpotifyConfig           `yaml:"spotify"`
}

// DiscordConfig represents chat gateway configuration.
type DiscordConfig struct {
	Token         string `yaml:"token" validate:"required"`
	DefaultPrefix string `yaml:"default_prefix" default:"~" validate:"required,max=8"`
	SelfDeaf      *bool  `yaml:"self_deaf" default:"true"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	ResolveTimeoutSec int     `yaml:"resolve_timeout_sec" default:"30" validate:"gte=1,lte=300"`
	EventBuffer       int     `yaml:"event_buffer" default:"64" validate:"gte=1"`
	NotifyTimeoutMs   int     `yaml:"notify_timeout_ms" default:"2000" validate:"gte=100,lte=30000"`
	NotifyRatePerSec  float64 `yaml:"notify_rate_per_sec" default:"5" validate:"gte=0"`
	LookupProxy       string  `yaml:"lookup_proxy"` // Proxy URL for yt-dlp lookups
}

// ResolveTimeout returns the per-song resolution timeout.
func (p PlaybackConfig) ResolveTimeout() time.Duration {
	return time.Duration(p.ResolveTimeoutSec) * time.Second
}

// NotifyTimeout returns the per-message send timeout.
func (p PlaybackConfig) NotifyTimeout() time.Duration {
	return time.Duration(p.NotifyTimeoutMs) * time.Millisecond
}

// AudioConfig represents audio pipeline configuration.
type AudioConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path" default:"ffmpeg"`
	BitrateKbps int    `yaml:"bitrate_kbps" default:"64" validate:"gte=8,lte=512"`
}

// SourceConfig represents a single track source configuration.
type SourceConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=youtube ytdlp spotify"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// StoreConfig represents persistent store configuration.
type StoreConfig struct {
	Path string `yaml:"path" default:"guildbox.db"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	DefaultError   string `yaml:"default_error" default:"Can't queue that right now"`
	QueueFull      string `yaml:"queue_full" default:"The queue is full"`
	UserPending    string `yaml:"user_pending" default:"You already have too many songs in the queue"`
	BlockedTerm    string `yaml:"blocked_term" default:"That request is not allowed here"`
	HostNotAllowed string `yaml:"host_not_allowed" default:"Links from that site are not allowed"`
	DuplicateTrack string `yaml:"duplicate_track" default:"That song is already in the queue"`
}

// SpotifyConfig represents Spotify API configuration.
// Credentials are only required when a spotify source is configured.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("GUILDBOX_DB_PATH"); v != "" {
		c.Store.Path = v
	}
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "queue_full":
		return c.Messages.QueueFull
	case "user_pending":
		return c.Messages.UserPending
	case "blocked_term":
		return c.Messages.BlockedTerm
	case "host_not_allowed":
		return c.Messages.HostNotAllowed
	case "duplicate_track":
		return c.Messages.DuplicateTrack
	default:
		return c.Messages.DefaultError
	}
}

// SelfDeafen reports whether the bot deafens itself in voice channels.
func (c *Config) SelfDeafen() bool {
	return c.Discord.SelfDeaf == nil || *c.Discord.SelfDeaf
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if err := c.validateSpotifyCredentials(); err != nil {
		return err
	}

	return nil
}

// validateSpotifyCredentials checks that credentials exist when a spotify source is used.
func (c *Config) validateSpotifyCredentials() error {
	if !c.HasSource("spotify") {
		return nil
	}
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return errors.New("spotify source requires spotify.client_id and spotify.client_secret")
	}
	return nil
}

// HasSource reports whether a source of the given type is configured.
func (c *Config) HasSource(sourceType string) bool {
	for _, s := range c.Sources {
		if s.Type == sourceType {
			return true
		}
	}
	return false
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}
