package filter

import (
	"context"
	"strings"
)

// BlockedTermsConfig represents the configuration for BlockedTermsFilter.
type BlockedTermsConfig struct {
	Terms []string `yaml:"terms" mapstructure:"terms" validate:"required,min=1,dive,required"`
}

// BlockedTermsFilter rejects requests containing a blocked term.
// Matching is case-insensitive.
type BlockedTermsFilter struct {
	terms []string
}

func (f *BlockedTermsFilter) Name() string {
	return "blocked_terms_filter"
}

func (f *BlockedTermsFilter) Description() string {
	return "Rejects requests whose query or link contains a blocked term"
}

func (f *BlockedTermsFilter) ReturnCodes() []string {
	return []string{"blocked_term"}
}

func (f *BlockedTermsFilter) ValidateConfig(settings map[string]any) error {
	var config BlockedTermsConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}

	f.terms = make([]string, 0, len(config.Terms))
	for _, term := range config.Terms {
		f.terms = append(f.terms, strings.ToLower(strings.TrimSpace(term)))
	}
	return nil
}

func (f *BlockedTermsFilter) Check(ctx context.Context, req Request) Result {
	value := strings.ToLower(req.Song.Request.Value())
	for _, term := range f.terms {
		if term != "" && strings.Contains(value, term) {
			return Reject("blocked_term")
		}
	}
	return Accept()
}

func init() {
	Register("blocked_terms_filter", func() Filter {
		return &BlockedTermsFilter{}
	})
}
