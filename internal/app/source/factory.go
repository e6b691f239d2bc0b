package source

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/infra/config"
)

// Backends are the lookup clients sources are built on.
// A nil backend makes the source types needing it unavailable.
type Backends struct {
	YouTube LinkResolver
	Ytdlp   interface {
		Searcher
		LinkResolver
	}
	Spotify QueryTranslator
}

// YouTubeConfig represents the settings of a youtube source.
type YouTubeConfig struct {
	Hosts []string `mapstructure:"hosts"`
}

// YtdlpConfig represents the settings of a ytdlp source.
type YtdlpConfig struct {
	Search *bool `mapstructure:"search" default:"true"`
	Links  *bool `mapstructure:"links" default:"true"`
}

// SpotifySourceConfig represents the settings of a spotify source.
type SpotifySourceConfig struct {
	Hosts []string `mapstructure:"hosts"`
}

var (
	defaultYouTubeHosts = []string{"youtube.com", "youtu.be"}
	defaultSpotifyHosts = []string{"open.spotify.com"}
)

// NewChainFromConfig creates a source chain from configuration.
func NewChainFromConfig(cfgs []config.SourceConfig, backends Backends) (*Chain, error) {
	if len(cfgs) == 0 {
		return nil, errors.New("no sources configured")
	}

	var sources []SourceWithMetadata

	for i, scfg := range cfgs {
		var src Source
		var err error
		zlog.Debug().Msgf("creating source: index=%d type=%s settings=%+v", i+1, scfg.Type, scfg.Settings)
		switch scfg.Type {
		case "youtube":
			src, err = newYouTubeSource(scfg.Settings, backends)

		case "ytdlp":
			src, err = newYtdlpSource(scfg.Settings, backends)

		case "spotify":
			src, err = newSpotifySource(scfg.Settings, backends)

		default:
			return nil, errors.Newf("unsupported source type: %s (source index %d)", scfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create source (index %d, type %s)", i, scfg.Type)
		}

		sources = append(sources, SourceWithMetadata{
			Source:      src,
			DisplayName: scfg.DisplayName,
		})

		zlog.Info().Msgf("registered source: index=%d type=%s display_name=%s", i+1, scfg.Type, scfg.DisplayName)
	}

	return NewChain(sources), nil
}

func newYouTubeSource(settings map[string]any, backends Backends) (Source, error) {
	if backends.YouTube == nil {
		return nil, errors.New("youtube client not available")
	}

	var cfg YouTubeConfig
	if err := decodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Hosts) == 0 {
		cfg.Hosts = defaultYouTubeHosts
	}
	return NewLinkSource("youtube", backends.YouTube, cfg.Hosts), nil
}

func newYtdlpSource(settings map[string]any, backends Backends) (Source, error) {
	if backends.Ytdlp == nil {
		return nil, errors.New("yt-dlp client not available")
	}

	var cfg YtdlpConfig
	if err := decodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	if !*cfg.Search && !*cfg.Links {
		return nil, errors.New("ytdlp source must enable search or links")
	}

	var searcher Searcher
	if *cfg.Search {
		searcher = backends.Ytdlp
	}
	var links LinkResolver
	if *cfg.Links {
		links = backends.Ytdlp
	}
	return NewSearchSource("ytdlp", searcher, links), nil
}

func newSpotifySource(settings map[string]any, backends Backends) (Source, error) {
	if backends.Spotify == nil {
		return nil, errors.New("spotify client not available")
	}
	if backends.Ytdlp == nil {
		return nil, errors.New("spotify source needs yt-dlp for searching")
	}

	var cfg SpotifySourceConfig
	if err := decodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Hosts) == 0 {
		cfg.Hosts = defaultSpotifyHosts
	}
	return NewTranslateSource("spotify", backends.Spotify, backends.Ytdlp, cfg.Hosts), nil
}

func decodeSettings(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
