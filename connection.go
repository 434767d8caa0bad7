package studio

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/grp06/openclaw-studio/settings"
)

// Environment fallbacks for the gateway address and token.
const (
	EnvGatewayURL   = "OPENCLAW_GATEWAY_URL"
	EnvGatewayToken = "OPENCLAW_GATEWAY_TOKEN"
)

// ConnectionConfig configures a Connection.
type ConnectionConfig struct {
	Client   *Client               // required
	Settings *settings.Coordinator // nil disables persistence

	// URL and Token, when set, take precedence over every other source.
	URL   string
	Token string

	// StateDir holds the local gateway config. Empty resolves it with
	// settings.ResolveStateDir.
	StateDir string

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	Logger *slog.Logger
}

// ConnectionState is a snapshot of a Connection.
type ConnectionState struct {
	Status             Status `json:"status"`
	GatewayURL         string `json:"gatewayUrl"`
	Token              string `json:"-"`
	Error              string `json:"error,omitempty"`
	SettingsLoaded     bool   `json:"settingsLoaded"`
	SettingsLoadFailed bool   `json:"settingsLoadFailed,omitempty"`
}

// HasToken reports whether a token is configured without exposing it.
func (s ConnectionState) HasToken() bool { return s.Token != "" }

// Connection brings a Client up the way the studio does on launch: it
// loads the saved gateway settings, connects once automatically and
// persists later address or token edits.
type Connection struct {
	client   *Client
	settings *settings.Coordinator
	stateDir string
	getenv   func(string) string
	log      *slog.Logger
	unsub    func()

	urlOverride, tokenOverride string

	mu          sync.Mutex
	state       ConnectionState
	started     bool
	autoConnect bool
}

// NewConnection wraps cfg.Client. Nothing happens until Start.
func NewConnection(cfg ConnectionConfig) *Connection {
	if cfg.Getenv == nil {
		cfg.Getenv = os.Getenv
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Connection{
		client:   cfg.Client,
		settings: cfg.Settings,
		stateDir: cfg.StateDir,
		getenv:   cfg.Getenv,
		log:      logger.With("component", "connection"),

		urlOverride:   strings.TrimSpace(cfg.URL),
		tokenOverride: strings.TrimSpace(cfg.Token),
		state: ConnectionState{
			Status:     cfg.Client.Status(),
			GatewayURL: DefaultURL,
		},
	}
	c.unsub = cfg.Client.OnStatus(c.onStatus)
	return c
}

// Client returns the wrapped client.
func (c *Connection) Client() *Client { return c.client }

func (c *Connection) onStatus(st Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Status = st
	if st != StatusConnecting {
		c.state.Error = ""
	}
}

// Start resolves the gateway address and token and connects once. A
// settings load failure is recorded in the state, never returned. Start
// returns the connect error, which is also kept in State().Error.
func (c *Connection) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	url, token, loadFailed := c.resolve(ctx)

	c.mu.Lock()
	c.state.GatewayURL = url
	c.state.Token = token
	c.state.SettingsLoaded = true
	c.state.SettingsLoadFailed = loadFailed
	if loadFailed {
		c.state.Error = "Failed to load gateway config."
	}
	auto := !c.autoConnect && strings.TrimSpace(url) != ""
	c.autoConnect = true
	c.mu.Unlock()

	if !auto {
		return nil
	}
	return c.Connect(ctx)
}

func (c *Connection) resolve(ctx context.Context) (url, token string, loadFailed bool) {
	url, token = c.urlOverride, c.tokenOverride
	if c.settings != nil && (url == "" || token == "") {
		s, err := c.settings.LoadSettings(ctx)
		if err != nil {
			c.log.Warn("failed to load studio settings", "error", err)
			loadFailed = true
		} else if s != nil && s.Gateway != nil {
			url = firstNonEmpty(url, strings.TrimSpace(s.Gateway.URL))
			token = firstNonEmpty(token, strings.TrimSpace(s.Gateway.Token))
		}
	}

	if url == "" || token == "" {
		dir := c.stateDir
		if dir == "" {
			dir = settings.ResolveStateDir(c.getenv)
		}
		gc, err := settings.LoadGatewayConfig(dir)
		switch {
		case err == nil:
			url = firstNonEmpty(url, gc.URL)
			token = firstNonEmpty(token, gc.Token)
		case !errors.Is(err, settings.ErrNoGatewayConfig):
			c.log.Warn("failed to read local gateway config", "error", err)
		}
	}

	url = firstNonEmpty(url, strings.TrimSpace(c.getenv(EnvGatewayURL)), DefaultURL)
	token = firstNonEmpty(token, strings.TrimSpace(c.getenv(EnvGatewayToken)))
	return url, token, loadFailed
}

// Connect connects with the current address and token. A failure is
// formatted into State().Error and returned.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.state.Error = ""
	url, token := c.state.GatewayURL, c.state.Token
	c.mu.Unlock()

	err := c.client.Connect(ctx, url, token)
	if err != nil {
		c.mu.Lock()
		c.state.Error = FormatError(err)
		c.mu.Unlock()
	}
	return err
}

// Disconnect clears the error and disconnects the client.
func (c *Connection) Disconnect() {
	c.ClearError()
	c.client.Disconnect()
}

// SetGatewayURL changes the address used by the next Connect and schedules
// it to be saved.
func (c *Connection) SetGatewayURL(url string) {
	c.mu.Lock()
	c.state.GatewayURL = url
	c.mu.Unlock()
	if c.settings != nil {
		c.settings.SchedulePatch(settings.Patch{Gateway: &settings.GatewayPatch{URL: settings.String(url)}}, 0)
	}
}

// SetToken changes the token used by the next Connect and schedules it to
// be saved.
func (c *Connection) SetToken(token string) {
	c.mu.Lock()
	c.state.Token = token
	c.mu.Unlock()
	if c.settings != nil {
		c.settings.SchedulePatch(settings.Patch{Gateway: &settings.GatewayPatch{Token: settings.String(token)}}, 0)
	}
}

// State returns a snapshot of the connection.
func (c *Connection) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ClearError dismisses the last error.
func (c *Connection) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Error = ""
}

// Close flushes pending settings edits and disconnects.
func (c *Connection) Close(ctx context.Context) error {
	c.unsub()
	var err error
	if c.settings != nil {
		err = c.settings.Close(ctx)
	}
	c.client.Disconnect()
	return err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
