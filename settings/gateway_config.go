package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
)

const (
	defaultGatewayHost = "127.0.0.1"
	defaultGatewayPort = 18789
)

// configFileNames are the gateway config files, newest name first.
var configFileNames = []string{"openclaw.json", "clawdbot.json", "moltbot.json"}

// ErrNoGatewayConfig is returned when no gateway config file exists.
var ErrNoGatewayConfig = errors.New("settings: no gateway config found")

// GatewayConfig is what the studio reads from a locally installed
// gateway's own config file.
type GatewayConfig struct {
	Path  string
	URL   string
	Token string
}

// LoadGatewayConfig reads the local gateway config in stateDir. The file is
// parsed loosely: comments and trailing commas are accepted.
func LoadGatewayConfig(stateDir string) (*GatewayConfig, error) {
	for _, name := range configFileNames {
		path := filepath.Join(stateDir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read gateway config: %w", err)
		}
		return parseGatewayConfig(path, data)
	}
	return nil, ErrNoGatewayConfig
}

func parseGatewayConfig(path string, data []byte) (*GatewayConfig, error) {
	var doc struct {
		Gateway struct {
			Port json.Number `json:"port"`
			Host string      `json:"host"`
			Bind string      `json:"bind"`
			Auth struct {
				Token string `json:"token"`
			} `json:"auth"`
		} `json:"gateway"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, fmt.Errorf("parse gateway config %s: %w", path, err)
	}

	port := defaultGatewayPort
	if n, err := strconv.Atoi(doc.Gateway.Port.String()); err == nil && n > 0 {
		port = n
	}
	host := strings.TrimSpace(doc.Gateway.Host)
	if host == "" {
		host = bindHost(doc.Gateway.Bind)
	}
	return &GatewayConfig{
		Path:  path,
		URL:   "ws://" + host + ":" + strconv.Itoa(port),
		Token: doc.Gateway.Auth.Token,
	}, nil
}

// bindHost maps a gateway bind mode to an address the studio can dial.
func bindHost(bind string) string {
	switch b := strings.TrimSpace(bind); b {
	case "", "loopback", "lan", "auto", "tailnet", "0.0.0.0":
		return defaultGatewayHost
	default:
		return b
	}
}
