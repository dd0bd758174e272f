package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MQTT_BROKER", "PI1_PASSWORD", "PI2_PASSWORD",
		"PI1_SCRIPT_PATH", "PI2_SCRIPT_PATH",
		"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "SPOTIFY_REFRESH_TOKEN",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.MQTTBroker)
	assert.Equal(t, "pi", cfg.Pi1.User)
	assert.Equal(t, 8080, cfg.Dashboard.Port)
	assert.Equal(t, 9001, cfg.Dashboard.WSPort)
	assert.False(t, cfg.Pi1.Enabled())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), FileName)

	cfg := DefaultConfig()
	cfg.MQTTBroker = "My-MacBook.local"
	cfg.Pi1.Host = "pi1.local"
	cfg.Pi1.ScriptPath = "/home/me/AirWave/pi1_agent.py"
	cfg.Pi2.Host = "pi2.local"
	cfg.Logging.DebugMode = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("config changed across save/load (-want +got):\n%s", diff)
	}
	assert.True(t, loaded.Pi1.Enabled())
}

func TestPasswordNeverPersisted(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), FileName)

	cfg := DefaultConfig()
	cfg.Pi1.Host = "pi1.local"
	cfg.Pi1.Password = "hunter2"
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, loaded.Pi1.Password)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), FileName)

	cfg := DefaultConfig()
	cfg.MQTTBroker = "from-file.local"
	require.NoError(t, cfg.Save(path))

	t.Setenv("MQTT_BROKER", "from-env.local")
	t.Setenv("PI1_PASSWORD", "secret1")
	t.Setenv("PI2_SCRIPT_PATH", "/opt/airwave/pi2_agent.py")
	t.Setenv("SPOTIFY_CLIENT_ID", "cid")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.local", loaded.MQTTBroker)
	assert.Equal(t, "secret1", loaded.Pi1.Password)
	assert.Equal(t, "/opt/airwave/pi2_agent.py", loaded.Pi2.ScriptPath)
	assert.Equal(t, "cid", loaded.Spotify.ClientID)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.MQTTBroker = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Pi1.Host = "pi1.local"
	cfg.Pi1.User = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Dashboard.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Logging.Level = "loud"
	assert.Error(t, cfg.Validate())
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	assert.False(t, Exists(path))
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
	assert.True(t, Exists(path))
}

func TestPiAddr(t *testing.T) {
	p := PiConfig{Host: "pi1.local", User: "pi"}
	assert.Equal(t, "pi@pi1.local", p.Addr())
}

func TestTimeoutFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeouts.SSHConnect = "bogus"
	assert.Equal(t, "5s", cfg.GetSSHConnectTimeout().String())

	cfg.Timeouts.MQTTConnect = "30s"
	assert.Equal(t, "30s", cfg.GetMQTTConnectTimeout().String())
}
