package source

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/track"
)

// TranslateSource handles catalogue links that carry no audio themselves.
// The link is turned into a search query and handed to a searcher.
type TranslateSource struct {
	name       string
	translator QueryTranslator
	searcher   Searcher
	hosts      []string
}

// NewTranslateSource creates a translating source.
func NewTranslateSource(name string, translator QueryTranslator, searcher Searcher, hosts []string) *TranslateSource {
	return &TranslateSource{
		name:       name,
		translator: translator,
		searcher:   searcher,
		hosts:      normalizeHosts(hosts),
	}
}

func (s *TranslateSource) Name() string {
	return s.name
}

func (s *TranslateSource) Supports(req track.PlayRequest) bool {
	return req.IsLink() && matchHost(req.Host(), s.hosts)
}

func (s *TranslateSource) Resolve(ctx context.Context, req track.PlayRequest) (*track.Playable, error) {
	query, err := s.translator.SearchQuery(ctx, req.Value())
	if err != nil {
		return nil, errors.Wrapf(err, "%s: failed to read link", s.name)
	}
	zlog.Debug().Msgf("translated link to search: source=%s link=%s query=%q", s.name, req.Value(), query)

	p, err := s.searcher.Search(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: no match for %q", s.name, query)
	}
	p.Source = s.name
	return p, nil
}
