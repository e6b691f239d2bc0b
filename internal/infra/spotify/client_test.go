package spotify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTrackID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Spotify URI format",
			input:    "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Spotify URL format",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Spotify URL with query params",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc123",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Localized URL",
			input:    "https://open.spotify.com/intl-ja/track/abc123/",
			expected: "abc123",
		},
		{
			name:     "Playlist URL",
			input:    "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			expected: "",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractTrackID(tt.input)
			assert.Equal(t, tt.expected, result,
				"extractTrackID(%s) should return %s", tt.input, tt.expected)
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		artists  []string
		title    string
		expected string
	}{
		{
			name:     "single artist",
			artists:  []string{"Rick Astley"},
			title:    "Never Gonna Give You Up",
			expected: "Rick Astley - Never Gonna Give You Up",
		},
		{
			name:     "multiple artists",
			artists:  []string{"Daft Punk", " Pharrell Williams "},
			title:    "Get Lucky",
			expected: "Daft Punk, Pharrell Williams - Get Lucky",
		},
		{
			name:     "no artists",
			title:    "Untitled",
			expected: "Untitled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildQuery(tt.artists, tt.title))
		})
	}
}

func TestSearchQuery_RejectsNonTrackLinks(t *testing.T) {
	c := &Client{maxRetries: 1}
	_, err := c.SearchQuery(context.Background(), "https://open.spotify.com/album/xyz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrNotTrackLink.Error())
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{ClientID: "id"})
	assert.Error(t, err)

	c, err := New(context.Background(), Config{ClientID: "id", ClientSecret: "secret"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "succeeds first time",
			errs:      []error{nil},
			wantCalls: 1,
		},
		{
			name:      "retries server errors",
			errs:      []error{errors.New("503 Service Unavailable"), nil},
			wantCalls: 2,
		},
		{
			name:      "stops on client errors",
			errs:      []error{errors.New("404 not found")},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "gives up after max retries",
			errs:      []error{errors.New("429"), errors.New("429"), errors.New("429")},
			wantCalls: 3,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{maxRetries: 3, retryDelay: time.Millisecond}
			calls := 0
			err := c.retry(context.Background(), func() error {
				err := tt.errs[calls]
				calls++
				return err
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "rate limit error with 429",
			err:      errors.New("Error 429: rate limit exceeded"),
			expected: true,
		},
		{
			name:     "server error 500",
			err:      errors.New("Error 500: internal server error"),
			expected: true,
		},
		{
			name:     "server error 504",
			err:      errors.New("504 Gateway Timeout"),
			expected: true,
		},
		{
			name:     "client error 400",
			err:      errors.New("400 Bad Request"),
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRetryable(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}
