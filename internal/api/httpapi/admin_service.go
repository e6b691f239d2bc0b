// Package httpapi provides the admin HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/infra/config"
)

// Sessions is the part of the session manager the admin API drives.
type Sessions interface {
	Snapshots() []playback.Snapshot
	Snapshot(guildID snowflake.ID) (playback.Snapshot, bool)
	Skip(guildID snowflake.ID, n int) (playback.SkipResult, error)
	Pause(guildID snowflake.ID) error
	Unpause(guildID snowflake.ID) error
	Stop(ctx context.Context, guildID snowflake.ID) error
}

// AdminService serves the guild admin endpoints.
type AdminService struct {
	sessions Sessions
	config   *config.Config
}

// NewAdminService creates a new AdminService.
func NewAdminService(sessions Sessions, cfg *config.Config) *AdminService {
	return &AdminService{
		sessions: sessions,
		config:   cfg,
	}
}

// NewHandler returns the HTTP handler for the admin API.
// metrics, if set, is served unauthenticated on /metrics.
func NewHandler(svc *AdminService, cfg *config.Config, metrics http.Handler) http.Handler {
	admin := http.NewServeMux()
	admin.HandleFunc("GET /v1/guilds", svc.ListGuilds)
	admin.HandleFunc("GET /v1/guilds/{id}", svc.GetGuild)
	admin.HandleFunc("POST /v1/guilds/{id}/skip", svc.Skip)
	admin.HandleFunc("POST /v1/guilds/{id}/pause", svc.Pause)
	admin.HandleFunc("POST /v1/guilds/{id}/resume", svc.Resume)
	admin.HandleFunc("POST /v1/guilds/{id}/stop", svc.Stop)

	mux := http.NewServeMux()
	mux.Handle("/v1/", NewAdminAuth(cfg, admin))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ActionResponse{Success: true, Message: "ok"})
	})
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return mux
}

// ListGuilds lists every guild with music state.
func (s *AdminService) ListGuilds(w http.ResponseWriter, r *http.Request) {
	snaps := s.sessions.Snapshots()
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].GuildID < snaps[j].GuildID })

	guilds := make([]GuildInfo, 0, len(snaps))
	for _, snap := range snaps {
		guilds = append(guilds, toGuildInfo(snap, false))
	}
	writeJSON(w, http.StatusOK, ListGuildsResponse{Guilds: guilds})
}

// GetGuild returns one guild including its queue.
func (s *AdminService) GetGuild(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildIDFrom(w, r)
	if !ok {
		return
	}

	snap, ok := s.sessions.Snapshot(guildID)
	if !ok {
		writeJSON(w, http.StatusNotFound, ActionResponse{Message: "guild not found"})
		return
	}
	writeJSON(w, http.StatusOK, toGuildInfo(snap, true))
}

// Skip skips n tracks (default 1).
func (s *AdminService) Skip(w http.ResponseWriter, r *http.Request) {
	guildID, ok := guildIDFrom(w, r)
	if !ok {
		return
	}

	n := 1
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, ActionResponse{Message: playback.ErrInvalidSkip.Error()})
			return
		}
		n = parsed
	}

	result, err := s.sessions.Skip(guildID, n)
	if err != nil {
		s.actionFailed(w, "skip", guildID, err)
		return
	}
	zlog.Info().Msgf("admin skip: guild=%s n=%d dropped=%d remaining=%d", guildID, n, result.Dropped, result.Remaining)
	writeJSON(w, http.StatusOK, ActionResponse{
		Success:   true,
		Message:   "Track skipped",
		Dropped:   result.Dropped,
		Remaining: result.Remaining,
	})
}

// Pause pauses the guild's active track.
func (s *AdminService) Pause(w http.ResponseWriter, r *http.Request) {
	s.runAction(w, r, "pause", "Track paused", func(guildID snowflake.ID) error {
		return s.sessions.Pause(guildID)
	})
}

// Resume resumes the guild's paused track.
func (s *AdminService) Resume(w http.ResponseWriter, r *http.Request) {
	s.runAction(w, r, "resume", "Track resumed", func(guildID snowflake.ID) error {
		return s.sessions.Unpause(guildID)
	})
}

// Stop disconnects the guild from voice.
func (s *AdminService) Stop(w http.ResponseWriter, r *http.Request) {
	s.runAction(w, r, "stop", "Guild stopped", func(guildID snowflake.ID) error {
		return s.sessions.Stop(r.Context(), guildID)
	})
}

func (s *AdminService) runAction(w http.ResponseWriter, r *http.Request, action, message string, fn func(snowflake.ID) error) {
	guildID, ok := guildIDFrom(w, r)
	if !ok {
		return
	}

	if err := fn(guildID); err != nil {
		s.actionFailed(w, action, guildID, err)
		return
	}
	zlog.Info().Msgf("admin %s: guild=%s", action, guildID)
	writeJSON(w, http.StatusOK, ActionResponse{Success: true, Message: message})
}

// actionFailed reports a rejected command. State errors are part of a
// normal response; anything else is a server error.
func (s *AdminService) actionFailed(w http.ResponseWriter, action string, guildID snowflake.ID, err error) {
	status := http.StatusOK
	switch {
	case errors.Is(err, playback.ErrNotPlaying),
		errors.Is(err, playback.ErrNotPaused),
		errors.Is(err, playback.ErrNotConnected):
	case errors.Is(err, playback.ErrInvalidSkip):
		status = http.StatusBadRequest
	default:
		zlog.Error().Msgf("admin %s failed: guild=%s error=%v", action, guildID, err)
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, ActionResponse{Success: false, Message: err.Error()})
}

func guildIDFrom(w http.ResponseWriter, r *http.Request) (snowflake.ID, bool) {
	guildID, err := snowflake.Parse(r.PathValue("id"))
	if err != nil || guildID == 0 {
		writeJSON(w, http.StatusBadRequest, ActionResponse{Message: "invalid guild id"})
		return 0, false
	}
	return guildID, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zlog.Debug().Msgf("failed to write response: error=%v", err)
	}
}
