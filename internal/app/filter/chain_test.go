package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/guildbox/internal/domain/track"
)

type stubFilter struct {
	name   string
	result Result
	calls  int
}

func (f *stubFilter) Name() string                                 { return f.name }
func (f *stubFilter) Description() string                          { return "stub" }
func (f *stubFilter) ReturnCodes() []string                        { return []string{f.result.Code} }
func (f *stubFilter) ValidateConfig(settings map[string]any) error { return nil }
func (f *stubFilter) Check(ctx context.Context, req Request) Result {
	f.calls++
	return f.result
}

func TestChain_Execute(t *testing.T) {
	first := &stubFilter{name: "first", result: Accept()}
	second := &stubFilter{name: "second", result: Reject("nope")}
	third := &stubFilter{name: "third", result: Accept()}

	chain := NewChain()
	chain.Add(first)
	chain.Add(second)
	chain.Add(third)

	result := chain.Execute(context.Background(), newRequest(queued(1, track.NewSearch("x"))))
	assert.False(t, result.Accepted)
	assert.Equal(t, "nope", result.Code)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 0, third.calls, "chain stops at first rejection")
}

func TestChain_EmptyAccepts(t *testing.T) {
	result := NewChain().Execute(context.Background(), newRequest(queued(1, track.NewSearch("x"))))
	assert.True(t, result.Accepted)
}

func TestNewChainFromConfig(t *testing.T) {
	tests := []struct {
		name      string
		cfg       map[string]Settings
		wantNames []string
		wantErr   bool
	}{
		{
			name: "enabled filters in name order",
			cfg: map[string]Settings{
				"user_pending_filter": {Enabled: true},
				"queue_limit_filter":  {Enabled: true, Settings: map[string]any{"max_queue": 10}},
				"link_host_filter":    {Enabled: false},
			},
			wantNames: []string{"queue_limit_filter", "user_pending_filter"},
		},
		{
			name: "unknown filter",
			cfg: map[string]Settings{
				"no_such_filter": {Enabled: true},
			},
			wantErr: true,
		},
		{
			name: "invalid settings",
			cfg: map[string]Settings{
				"blocked_terms_filter": {Enabled: true},
			},
			wantErr: true,
		},
		{
			name: "unknown but disabled is ignored",
			cfg: map[string]Settings{
				"no_such_filter": {Enabled: false},
			},
			wantNames: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := NewChainFromConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			names := make([]string, 0)
			for _, f := range chain.Filters() {
				names = append(names, f.Name())
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}
