package studio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grp06/openclaw-studio/internal/gatewaytest"
	"github.com/grp06/openclaw-studio/settings"
)

func noEnv(string) string { return "" }

func envOf(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newConnection(t *testing.T, settingsPath, stateDir string, getenv func(string) string) *Connection {
	t.Helper()
	coord := settings.NewCoordinator(settings.NewFileStore(settingsPath), settings.CoordinatorConfig{Debounce: time.Hour})
	conn := NewConnection(ConnectionConfig{
		Client:   NewClient(Config{HandshakeTimeout: 2 * time.Second}),
		Settings: coord,
		StateDir: stateDir,
		Getenv:   getenv,
	})
	t.Cleanup(func() { conn.Close(context.Background()) })
	return conn
}

func TestConnectionUsesSavedSettings(t *testing.T) {
	srv := gatewaytest.New(t)
	srv.Token = "saved-token"
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	writeFile(t, path, fmt.Sprintf(`{"version":1,"gateway":{"url":%q,"token":"saved-token"}}`, srv.URL()))

	conn := newConnection(t, path, t.TempDir(), noEnv)
	require.NoError(t, conn.Start(context.Background()))

	st := conn.State()
	assert.Equal(t, StatusConnected, st.Status)
	assert.Equal(t, srv.URL(), st.GatewayURL)
	assert.True(t, st.HasToken())
	assert.True(t, st.SettingsLoaded)
	assert.False(t, st.SettingsLoadFailed)
	assert.Empty(t, st.Error)

	require.NoError(t, conn.Start(context.Background()))
	assert.Equal(t, 1, srv.Connects(), "start connects only once")
}

func TestConnectionFallsBackToLocalGatewayConfig(t *testing.T) {
	srv := gatewaytest.New(t)
	srv.Token = "local-token"
	port := srv.URL()[strings.LastIndex(srv.URL(), ":")+1:]

	stateDir := t.TempDir()
	writeFile(t, filepath.Join(stateDir, "openclaw.json"), `{
		// written by the gateway installer
		"gateway": {"port": `+port+`, "bind": "loopback", "auth": {"token": "local-token"}},
	}`)

	conn := newConnection(t, filepath.Join(t.TempDir(), "settings.json"), stateDir, noEnv)
	require.NoError(t, conn.Start(context.Background()))

	st := conn.State()
	assert.Equal(t, StatusConnected, st.Status)
	assert.Equal(t, "ws://127.0.0.1:"+port, st.GatewayURL)
	assert.Equal(t, "local-token", st.Token)
}

func TestConnectionFallsBackToEnvironment(t *testing.T) {
	srv := gatewaytest.New(t)
	srv.Token = "env-token"

	conn := newConnection(t, filepath.Join(t.TempDir(), "settings.json"), t.TempDir(), envOf(map[string]string{
		EnvGatewayURL:   srv.URL(),
		EnvGatewayToken: "env-token",
	}))
	require.NoError(t, conn.Start(context.Background()))
	assert.Equal(t, StatusConnected, conn.State().Status)
}

func TestConnectionReportsFormattedError(t *testing.T) {
	srv := gatewaytest.New(t)
	srv.Token = "right"

	conn := newConnection(t, filepath.Join(t.TempDir(), "settings.json"), t.TempDir(), envOf(map[string]string{
		EnvGatewayURL:   srv.URL(),
		EnvGatewayToken: "wrong",
	}))
	err := conn.Start(context.Background())
	require.Error(t, err)

	st := conn.State()
	assert.Equal(t, StatusDisconnected, st.Status)
	assert.Equal(t, "Gateway error (UNAUTHORIZED): invalid token", st.Error)

	conn.ClearError()
	assert.Empty(t, conn.State().Error)

	conn.SetToken("right")
	require.NoError(t, conn.Connect(context.Background()))
	assert.Equal(t, StatusConnected, conn.State().Status)
	assert.Empty(t, conn.State().Error)
}

func TestConnectionCorruptSettings(t *testing.T) {
	srv := gatewaytest.New(t)
	path := filepath.Join(t.TempDir(), "settings.json")
	writeFile(t, path, `{"gateway": [not json`)

	conn := newConnection(t, path, t.TempDir(), envOf(map[string]string{EnvGatewayURL: srv.URL()}))
	require.NoError(t, conn.Start(context.Background()))

	st := conn.State()
	assert.True(t, st.SettingsLoaded)
	assert.True(t, st.SettingsLoadFailed)
	assert.Equal(t, StatusConnected, st.Status)
}

func TestConnectionPersistsEditsOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	conn := newConnection(t, path, t.TempDir(), noEnv)

	conn.SetGatewayURL("ws://gateway.example:18789")
	conn.SetToken("tok")
	assert.Equal(t, "ws://gateway.example:18789", conn.State().GatewayURL)
	require.NoError(t, conn.Close(context.Background()))

	saved, err := settings.NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.NotNil(t, saved.Gateway)
	assert.Equal(t, "ws://gateway.example:18789", saved.Gateway.URL)
	assert.Equal(t, "tok", saved.Gateway.Token)
}

func TestConnectionOverridesWinPerField(t *testing.T) {
	srv := gatewaytest.New(t)
	srv.Token = "saved-token"
	path := filepath.Join(t.TempDir(), "settings.json")
	writeFile(t, path, `{"gateway":{"url":"ws://saved.invalid:1","token":"saved-token"}}`)

	coord := settings.NewCoordinator(settings.NewFileStore(path), settings.CoordinatorConfig{})
	conn := NewConnection(ConnectionConfig{
		Client:   NewClient(Config{}),
		Settings: coord,
		StateDir: t.TempDir(),
		Getenv:   noEnv,
		URL:      srv.URL(),
	})
	defer conn.Close(context.Background())

	require.NoError(t, conn.Start(context.Background()))
	st := conn.State()
	assert.Equal(t, srv.URL(), st.GatewayURL)
	assert.Equal(t, "saved-token", st.Token)
}
