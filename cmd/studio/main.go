// Command studio is a terminal companion for an OpenClaw gateway. It tails
// the observe and activity views, records event logs for later replay and
// wraps the gateway's session, cron and agent file methods.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	studio "github.com/grp06/openclaw-studio"
	"github.com/grp06/openclaw-studio/settings"
)

// version is stamped at build time.
var version = "dev"

type globalFlags struct {
	url      string
	token    string
	stateDir string
	logLevel string
	output   string
	timeout  time.Duration
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:           "studio",
	Short:         "Operate an OpenClaw gateway from the terminal",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(flags.logLevel)
		switch flags.output {
		case "text", "json", "yaml":
			return nil
		default:
			return fmt.Errorf("unknown output format %q (want text, json or yaml)", flags.output)
		}
	},
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags(), &flags)
}

func addGlobalFlags(fs *pflag.FlagSet, f *globalFlags) {
	fs.StringVar(&f.url, "url", "", "gateway WebSocket URL (default: saved settings, local gateway config, $"+studio.EnvGatewayURL+")")
	fs.StringVar(&f.token, "token", "", "gateway token (default: saved settings, local gateway config, $"+studio.EnvGatewayToken+")")
	fs.StringVar(&f.stateDir, "state-dir", "", "OpenClaw state directory (default: $OPENCLAW_STATE_DIR or ~/.openclaw)")
	fs.StringVar(&f.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	fs.StringVarP(&f.output, "output", "o", "text", "output format: text, json or yaml")
	fs.DurationVar(&f.timeout, "timeout", 30*time.Second, "per call timeout")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", studio.FormatError(err))
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func stateDir() string {
	if flags.stateDir != "" {
		return flags.stateDir
	}
	return settings.ResolveStateDir(os.Getenv)
}

func settingsStore() *settings.FileStore {
	return settings.NewFileStore(settings.SettingsPath(stateDir()))
}

// openConnection resolves the gateway address the way the studio does on
// launch, with --url and --token taking precedence, and connects.
func openConnection(ctx context.Context) (*studio.Connection, error) {
	client := studio.NewClient(studio.Config{
		CallTimeout:   flags.timeout,
		ClientVersion: version,
		Mode:          "cli",
	})
	coord := settings.NewCoordinator(settingsStore(), settings.CoordinatorConfig{})
	conn := studio.NewConnection(studio.ConnectionConfig{
		Client:   client,
		Settings: coord,
		StateDir: stateDir(),
		URL:      flags.url,
		Token:    flags.token,
	})
	if err := conn.Start(ctx); err != nil {
		conn.Close(context.Background())
		return nil, err
	}
	return conn, nil
}

// withClient connects, runs fn and disconnects.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *studio.Client) error) error {
	ctx := cmd.Context()
	conn, err := openConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())
	return fn(ctx, conn.Client())
}

// render writes v in the selected output format. text falls back to
// indented JSON for values without a dedicated text form.
func render(w io.Writer, v any) error {
	switch flags.output {
	case "yaml":
		generic, err := toGeneric(v)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// toGeneric round-trips v through JSON so YAML output uses the same field
// names as the JSON form.
func toGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func textOutput() bool { return flags.output == "text" }
