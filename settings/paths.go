package settings

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	stateDirName = ".openclaw"
	appDirName   = "openclaw-studio"
	settingsFile = "settings.json"
)

var legacyStateDirNames = []string{".clawdbot", ".moltbot"}

// stateDirEnv lists the environment overrides in priority order.
var stateDirEnv = []string{"OPENCLAW_STATE_DIR", "MOLTBOT_STATE_DIR", "CLAWDBOT_STATE_DIR"}

// ResolveStateDir returns the OpenClaw state directory: the first env
// override, else ~/.openclaw, else an existing legacy directory, else
// ~/.openclaw. getenv defaults to os.Getenv.
func ResolveStateDir(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, key := range stateDirEnv {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return expandUser(v)
		}
	}

	home := homeDir()
	dir := filepath.Join(home, stateDirName)
	if exists(dir) {
		return dir
	}
	for _, name := range legacyStateDirNames {
		if legacy := filepath.Join(home, name); exists(legacy) {
			return legacy
		}
	}
	return dir
}

// SettingsPath returns <stateDir>/openclaw-studio/settings.json.
func SettingsPath(stateDir string) string {
	return filepath.Join(stateDir, appDirName, settingsFile)
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil && exists(home) {
		return home
	}
	return os.TempDir()
}

func expandUser(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		p = filepath.Join(homeDir(), p[1:])
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
