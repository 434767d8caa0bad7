package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestResolveStateDirEnvPriority(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()

	got := ResolveStateDir(envMap(map[string]string{
		"OPENCLAW_STATE_DIR": a,
		"MOLTBOT_STATE_DIR":  b,
	}))
	assert.Equal(t, a, got)

	got = ResolveStateDir(envMap(map[string]string{"CLAWDBOT_STATE_DIR": "  " + b + "  "}))
	assert.Equal(t, b, got)
}

func TestResolveStateDirHomeFallbacks(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	none := envMap(nil)

	assert.Equal(t, filepath.Join(home, ".openclaw"), ResolveStateDir(none))

	require.NoError(t, os.Mkdir(filepath.Join(home, ".moltbot"), 0o755))
	assert.Equal(t, filepath.Join(home, ".moltbot"), ResolveStateDir(none))

	require.NoError(t, os.Mkdir(filepath.Join(home, ".clawdbot"), 0o755))
	assert.Equal(t, filepath.Join(home, ".clawdbot"), ResolveStateDir(none))

	require.NoError(t, os.Mkdir(filepath.Join(home, ".openclaw"), 0o755))
	assert.Equal(t, filepath.Join(home, ".openclaw"), ResolveStateDir(none))
}

func TestResolveStateDirExpandsTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got := ResolveStateDir(envMap(map[string]string{"OPENCLAW_STATE_DIR": "~/state"}))
	assert.Equal(t, filepath.Join(home, "state"), got)
}

func TestSettingsPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/s", "openclaw-studio", "settings.json"), SettingsPath("/s"))
}

func TestLoadGatewayConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "openclaw.json"), []byte(`{
		"gateway": {
			"port": 19001,
			"auth": {"token": "tok",},
		},
	}`), 0o600))

	cfg, err := LoadGatewayConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:19001", cfg.URL)
	assert.Equal(t, "tok", cfg.Token)
}

func TestLoadGatewayConfigLegacyDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clawdbot.json"), []byte(`{"gateway": {"host": "10.0.0.2"}}`), 0o600))

	cfg, err := LoadGatewayConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "ws://10.0.0.2:18789", cfg.URL)
	assert.Empty(t, cfg.Token)
}

func TestLoadGatewayConfigMissing(t *testing.T) {
	_, err := LoadGatewayConfig(t.TempDir())
	assert.ErrorIs(t, err, ErrNoGatewayConfig)
}
