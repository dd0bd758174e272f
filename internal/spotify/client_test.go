package spotify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{
	ClientID:     "client-id",
	ClientSecret: "client-secret",
	RefreshToken: "refresh-token",
}

// newTestServers returns a client wired to fake accounts and API servers.
func newTestServers(t *testing.T, api http.HandlerFunc) (*Client, *int32) {
	t.Helper()

	var refreshes int32
	accounts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/token", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok, "missing basic auth")
		require.Equal(t, testCreds.ClientID, user)
		require.Equal(t, testCreds.ClientSecret, pass)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))

		n := atomic.AddInt32(&refreshes, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "token-" + string(rune('0'+n)),
			"expires_in":   3600,
		})
	}))
	t.Cleanup(accounts.Close)

	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)

	c := New(testCreds)
	c.AccountsURL = accounts.URL
	c.APIURL = apiSrv.URL
	return c, &refreshes
}

func TestNotConfigured(t *testing.T) {
	c := New(Credentials{})
	err := c.Play(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, c.Warmup(context.Background()), ErrNotConfigured)
}

func TestPlaySendsBearerToken(t *testing.T) {
	var gotAuth, gotMethod, gotPath string
	c, _ := newTestServers(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Play(context.Background()))
	assert.Equal(t, "Bearer token-1", gotAuth)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/me/player/play", gotPath)
}

func TestTokenCachedAcrossCalls(t *testing.T) {
	c, refreshes := newTestServers(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.Background()
	require.NoError(t, c.Warmup(ctx))
	require.NoError(t, c.Play(ctx))
	require.NoError(t, c.Pause(ctx))
	require.NoError(t, c.NextTrack(ctx))
	assert.EqualValues(t, 1, atomic.LoadInt32(refreshes))
}

func TestTokenRefreshedAfterExpiry(t *testing.T) {
	c, refreshes := newTestServers(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	now := time.Now()
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Play(ctx))
	now = now.Add(2 * time.Hour)
	require.NoError(t, c.Play(ctx))
	assert.EqualValues(t, 2, atomic.LoadInt32(refreshes))
}

func TestRetryOnceOn401(t *testing.T) {
	var calls int32
	c, refreshes := newTestServers(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.PreviousTrack(context.Background()))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.EqualValues(t, 2, atomic.LoadInt32(refreshes))
}

func TestSetVolumeClampsAndEncodes(t *testing.T) {
	var gotVolume string
	c, _ := newTestServers(t, func(w http.ResponseWriter, r *http.Request) {
		gotVolume = r.URL.Query().Get("volume_percent")
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.SetVolume(context.Background(), 140))
	assert.Equal(t, "100", gotVolume)

	require.NoError(t, c.SetVolume(context.Background(), -5))
	assert.Equal(t, "0", gotVolume)
}

func TestStatus(t *testing.T) {
	c, _ := newTestServers(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/player" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"is_playing": true,
			"device":     map[string]interface{}{"name": "Pi Speaker", "volume_percent": 80},
			"item":       map[string]interface{}{"name": "Some Song"},
		})
	})

	state, err := c.Status(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.IsPlaying)
	assert.Equal(t, "Pi Speaker", state.Device.Name)
	assert.Equal(t, 80, state.Device.VolumePercent)
}

func TestStatusNoActivePlayback(t *testing.T) {
	c, _ := newTestServers(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	state, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestAPIErrorSurfacesStatus(t *testing.T) {
	c, _ := newTestServers(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"status":404,"message":"No active device"}}`, http.StatusNotFound)
	})

	err := c.Play(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
