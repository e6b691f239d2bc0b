package filter

import (
	"context"
	"regexp"
	"strings"
)

// DuplicateTrackFilter rejects a request that is already waiting in the queue.
// Queries are compared after normalization, so "Daft  Punk" and "daft punk"
// are the same request. The active song is not considered.
type DuplicateTrackFilter struct{}

var whitespaceRe = regexp.MustCompile(`\s+`)

func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

func (f *DuplicateTrackFilter) Description() string {
	return "Rejects requests identical to a song already in the queue"
}

func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *DuplicateTrackFilter) Check(ctx context.Context, req Request) Result {
	key := normalizeRequest(req.Song.Request.Value())
	for _, q := range req.Guild.Queue {
		if q.Request.Kind() == req.Song.Request.Kind() && normalizeRequest(q.Request.Value()) == key {
			return Reject("duplicate_track")
		}
	}
	return Accept()
}

// normalizeRequest lowercases and collapses whitespace.
func normalizeRequest(value string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), " ")
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return &DuplicateTrackFilter{}
	})
}
