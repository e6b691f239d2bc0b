package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnauthenticated is returned when the server rejects the admin token.
var ErrUnauthenticated = errors.New("admin token rejected")

// Client calls the admin API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates an admin API client. A nil httpClient uses http.DefaultClient.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// ListGuilds lists every guild with music state.
func (c *Client) ListGuilds(ctx context.Context) ([]GuildInfo, error) {
	var resp ListGuildsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/guilds", &resp); err != nil {
		return nil, err
	}
	return resp.Guilds, nil
}

// GetGuild returns one guild including its queue.
func (c *Client) GetGuild(ctx context.Context, guildID string) (*GuildInfo, error) {
	var info GuildInfo
	if err := c.do(ctx, http.MethodGet, "/v1/guilds/"+url.PathEscape(guildID), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Skip skips n tracks in the guild.
func (c *Client) Skip(ctx context.Context, guildID string, n int) (*ActionResponse, error) {
	path := fmt.Sprintf("/v1/guilds/%s/skip?n=%s", url.PathEscape(guildID), strconv.Itoa(n))
	return c.action(ctx, path)
}

// Pause pauses the guild's active track.
func (c *Client) Pause(ctx context.Context, guildID string) (*ActionResponse, error) {
	return c.action(ctx, "/v1/guilds/"+url.PathEscape(guildID)+"/pause")
}

// Resume resumes the guild's paused track.
func (c *Client) Resume(ctx context.Context, guildID string) (*ActionResponse, error) {
	return c.action(ctx, "/v1/guilds/"+url.PathEscape(guildID)+"/resume")
}

// Stop disconnects the guild from voice.
func (c *Client) Stop(ctx context.Context, guildID string) (*ActionResponse, error) {
	return c.action(ctx, "/v1/guilds/"+url.PathEscape(guildID)+"/stop")
}

func (c *Client) action(ctx context.Context, path string) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.do(ctx, http.MethodPost, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends the request and decodes the body into out. Action responses
// with Success=false are returned as values, not errors.
func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set(AdminTokenHeader, c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s failed", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthenticated
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode response: status=%d", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		if ar, ok := out.(*ActionResponse); ok {
			return errors.Newf("%s (status %d)", ar.Message, resp.StatusCode)
		}
		return errors.Newf("request failed: status=%d", resp.StatusCode)
	}
	return nil
}
