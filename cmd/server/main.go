// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/guildbox/internal/api/httpapi"
	"github.com/osa030/guildbox/internal/app/command"
	"github.com/osa030/guildbox/internal/app/filter"
	"github.com/osa030/guildbox/internal/app/notification"
	"github.com/osa030/guildbox/internal/app/session"
	"github.com/osa030/guildbox/internal/app/source"
	"github.com/osa030/guildbox/internal/infra/audio"
	"github.com/osa030/guildbox/internal/infra/config"
	"github.com/osa030/guildbox/internal/infra/discord"
	"github.com/osa030/guildbox/internal/infra/logger"
	"github.com/osa030/guildbox/internal/infra/metrics"
	"github.com/osa030/guildbox/internal/infra/spotify"
	"github.com/osa030/guildbox/internal/infra/store"
	"github.com/osa030/guildbox/internal/infra/youtube"
	"github.com/osa030/guildbox/internal/infra/ytdlp"
)

var (
	app        = kingpin.New("guildbox-server", "guildbox music bot")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the bot (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	if cmd == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closeLog()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		closeLog()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	filterChain, err := filter.NewChainFromConfig(filterSettings(cfg))
	if err != nil {
		return fmt.Errorf("invalid filter config: %w", err)
	}

	sourceChain, err := newSourceChain(ctx, cfg)
	if err != nil {
		return fmt.Errorf("invalid source config: %w", err)
	}

	db, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			zlog.Error().Msgf("Failed to close store: %v", err)
		}
	}()

	gateway, err := discord.NewGateway(cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	player := audio.NewPlayer(audio.Config{
		FFmpegPath:  cfg.Audio.FFmpegPath,
		BitrateKbps: cfg.Audio.BitrateKbps,
	})
	voice := discord.NewVoiceManager(gateway.Session(), discord.AudioPlayer{Player: player}, cfg.SelfDeafen())

	notifier := notification.NewManager(gateway, notification.Config{
		Timeout:    cfg.Playback.NotifyTimeout(),
		RatePerSec: cfg.Playback.NotifyRatePerSec,
		Burst:      5,
	})
	recorder := metrics.NewRecorder()

	sessionMgr := session.NewManager(cfg, session.Deps{
		Source:   sourceChain,
		Notifier: notifier,
		Voice:    voice,
		Filters:  filterChain,
		Observer: recorder,
	})
	voice.SetOnLeave(sessionMgr.OnLeave)

	router := command.NewRouter(cfg, command.Deps{
		Sessions: sessionMgr,
		Prefixes: db,
		Voice:    gateway,
		Notifier: notifier,
	})
	gateway.SetHandler(router.HandleMessage)

	if err := gateway.Open(); err != nil {
		sessionMgr.Close()
		return fmt.Errorf("failed to connect to discord: %w", err)
	}

	adminService := httpapi.NewAdminService(sessionMgr, cfg)
	handler := httpapi.NewHandler(adminService, cfg, recorder.Handler())

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting admin server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		zlog.Info().Msgf("Received shutdown signal: signal=%s", sig)
	case err := <-serverErrCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Leave voice first so every guild is torn down before the gateway closes
	voice.Close(shutdownCtx)
	sessionMgr.Close()

	if err := gateway.Close(); err != nil {
		zlog.Error().Msgf("Failed to close gateway: %v", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// newSourceChain builds the lookup clients the configured sources need.
func newSourceChain(ctx context.Context, cfg *config.Config) (*source.Chain, error) {
	backends := source.Backends{
		YouTube: youtube.NewClient(cfg.Playback.ResolveTimeout()),
		Ytdlp:   ytdlp.NewClient(cfg.Playback.LookupProxy, cfg.Playback.ResolveTimeout()),
	}

	if cfg.HasSource("spotify") {
		spotifyClient, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Spotify client: %w", err)
		}
		backends.Spotify = spotifyClient
	}

	chain, err := source.NewChainFromConfig(cfg.Sources, backends)
	if err != nil {
		return nil, err
	}
	zlog.Info().Msgf("Track sources: %s", strings.Join(chain.Names(), ", "))
	return chain, nil
}

// filterSettings converts the configured filters.
func filterSettings(cfg *config.Config) map[string]filter.Settings {
	out := make(map[string]filter.Settings, len(cfg.Filters))
	for name, f := range cfg.Filters {
		out[name] = filter.Settings{Enabled: f.Enabled, Settings: f.Settings}
	}
	return out
}

// printFilters prints available filters.
func printFilters() {
	registered := filter.GetRegistered()
	names := make([]string, 0, len(registered))
	for name := range registered {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Available Filters:")
	for _, name := range names {
		f := registered[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
