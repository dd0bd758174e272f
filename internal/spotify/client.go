// Package spotify is a minimal Spotify Web API client for playback control.
// It authenticates with a long-lived refresh token, so once configured it
// never needs a browser again.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"airwave/internal/logging"
)

const (
	defaultAccountsURL = "https://accounts.spotify.com"
	defaultAPIURL      = "https://api.spotify.com/v1"

	// expirySlack refreshes the access token this long before it actually
	// expires.
	expirySlack = 30 * time.Second
)

// ErrNotConfigured is returned when credentials are missing.
var ErrNotConfigured = errors.New("spotify: credentials not configured")

// Credentials are the app credentials plus the user's refresh token.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Configured reports whether all three values are present.
func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// Client controls playback on the user's active device.
type Client struct {
	creds Credentials
	http  *http.Client
	log   *logging.Logger

	// AccountsURL and APIURL are overridable for tests.
	AccountsURL string
	APIURL      string

	mu          sync.Mutex
	accessToken string
	expiry      time.Time
	now         func() time.Time
}

// New returns a client. The credentials may be empty; calls then fail with
// ErrNotConfigured.
func New(creds Credentials) *Client {
	return &Client{
		creds:       creds,
		http:        &http.Client{Timeout: 5 * time.Second},
		log:         logging.Get(logging.CategorySpotify),
		AccountsURL: defaultAccountsURL,
		APIURL:      defaultAPIURL,
		now:         time.Now,
	}
}

// Warmup pre-fetches an access token so the first gesture does not pay the
// refresh round trip.
func (c *Client) Warmup(ctx context.Context) error {
	if !c.creds.Configured() {
		return ErrNotConfigured
	}
	_, err := c.token(ctx)
	return err
}

// token returns a valid access token, refreshing when needed.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.expiry) {
		return c.accessToken, nil
	}
	return c.refreshLocked(ctx)
}

// invalidate drops the cached token and fetches a fresh one (401 recovery).
func (c *Client) invalidate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	return c.refreshLocked(ctx)
}

func (c *Client) refreshLocked(ctx context.Context) (string, error) {
	if !c.creds.Configured() {
		return "", ErrNotConfigured
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.creds.RefreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.AccountsURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token refresh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return "", fmt.Errorf("token refresh: HTTP %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("token refresh: decode: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token refresh: empty access token")
	}

	expiresIn := time.Duration(payload.ExpiresIn) * time.Second
	if expiresIn <= expirySlack {
		expiresIn = expirySlack * 2
	}
	c.accessToken = payload.AccessToken
	c.expiry = c.now().Add(expiresIn - expirySlack)
	c.log.Debug("access token refreshed, valid %s", expiresIn-expirySlack)
	return c.accessToken, nil
}

// do sends an authenticated player request. Success is 200/202/204; a 401
// triggers one token refresh and retry.
func (c *Client) do(ctx context.Context, method, path string, params url.Values) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	send := func(token string) (*http.Response, error) {
		u := c.APIURL + path
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, method, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		return c.http.Do(req)
	}

	resp, err := send(token)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		c.log.Debug("401 on %s %s, refreshing token", method, path)
		if token, err = c.invalidate(ctx); err != nil {
			return err
		}
		if resp, err = send(token); err != nil {
			return fmt.Errorf("%s %s (retry): %w", method, path, err)
		}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	return fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, body)
}

// Play resumes playback on the active device.
func (c *Client) Play(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/me/player/play", nil)
}

// Pause pauses playback on the active device.
func (c *Client) Pause(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/me/player/pause", nil)
}

// NextTrack skips forward.
func (c *Client) NextTrack(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/me/player/next", nil)
}

// PreviousTrack skips backward.
func (c *Client) PreviousTrack(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/me/player/previous", nil)
}

// SetVolume sets the active device volume, clamped to 0-100.
func (c *Client) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	params := url.Values{"volume_percent": {strconv.Itoa(percent)}}
	return c.do(ctx, http.MethodPut, "/me/player/volume", params)
}

// PlaybackState is the subset of the player status the dashboard shows.
type PlaybackState struct {
	IsPlaying bool `json:"is_playing"`
	Device    struct {
		Name          string `json:"name"`
		VolumePercent int    `json:"volume_percent"`
	} `json:"device"`
	Item struct {
		Name string `json:"name"`
	} `json:"item"`
}

// Status fetches the current playback state. A 204 means nothing is playing
// and returns (nil, nil).
func (c *Client) Status(ctx context.Context) (*PlaybackState, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL+"/me/player", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("player status: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var state PlaybackState
		if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
			return nil, fmt.Errorf("player status: decode: %w", err)
		}
		return &state, nil
	case http.StatusNoContent:
		return nil, nil
	}
	return nil, fmt.Errorf("player status: HTTP %d", resp.StatusCode)
}
