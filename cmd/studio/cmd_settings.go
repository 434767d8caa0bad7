package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	studio "github.com/grp06/openclaw-studio"
	"github.com/grp06/openclaw-studio/settings"
)

var settingsSetFlags struct {
	url   string
	token string
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)

	settingsSetCmd.Flags().StringVar(&settingsSetFlags.url, "gateway-url", "", "gateway WebSocket URL to save")
	settingsSetCmd.Flags().StringVar(&settingsSetFlags.token, "gateway-token", "", "gateway token to save")
	settingsSetCmd.MarkFlagsOneRequired("gateway-url", "gateway-token")
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the saved gateway settings",
}

type settingsView struct {
	Path        string `json:"path"`
	SavedURL    string `json:"savedUrl,omitempty"`
	SavedToken  bool   `json:"savedToken"`
	LocalConfig string `json:"localConfig,omitempty"`
	LocalURL    string `json:"localUrl,omitempty"`
	LocalToken  bool   `json:"localToken"`
	EnvURL      string `json:"envUrl,omitempty"`
	EnvToken    bool   `json:"envToken"`
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show every source the gateway address and token can come from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := settingsStore()
		view := settingsView{
			Path:     store.Path(),
			EnvURL:   os.Getenv(studio.EnvGatewayURL),
			EnvToken: os.Getenv(studio.EnvGatewayToken) != "",
		}

		saved, err := store.Load(cmd.Context())
		if err != nil {
			return err
		}
		if saved != nil && saved.Gateway != nil {
			view.SavedURL = saved.Gateway.URL
			view.SavedToken = strings.TrimSpace(saved.Gateway.Token) != ""
		}

		local, err := settings.LoadGatewayConfig(stateDir())
		switch {
		case err == nil:
			view.LocalConfig, view.LocalURL, view.LocalToken = local.Path, local.URL, local.Token != ""
		case !errors.Is(err, settings.ErrNoGatewayConfig):
			return err
		}

		if !textOutput() {
			return render(os.Stdout, view)
		}
		fmt.Fprintf(os.Stdout, "settings file:  %s\n", view.Path)
		fmt.Fprintf(os.Stdout, "  url:          %s\n", orDash(view.SavedURL))
		fmt.Fprintf(os.Stdout, "  token:        %s\n", tokenState(view.SavedToken))
		fmt.Fprintf(os.Stdout, "gateway config: %s\n", orDash(view.LocalConfig))
		fmt.Fprintf(os.Stdout, "  url:          %s\n", orDash(view.LocalURL))
		fmt.Fprintf(os.Stdout, "  token:        %s\n", tokenState(view.LocalToken))
		fmt.Fprintf(os.Stdout, "environment:\n")
		fmt.Fprintf(os.Stdout, "  url:          %s\n", orDash(view.EnvURL))
		fmt.Fprintf(os.Stdout, "  token:        %s\n", tokenState(view.EnvToken))
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save the gateway URL or token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch settings.Patch
		patch.Gateway = &settings.GatewayPatch{}
		if cmd.Flags().Changed("gateway-url") {
			patch.Gateway.URL = settings.String(strings.TrimSpace(settingsSetFlags.url))
		}
		if cmd.Flags().Changed("gateway-token") {
			patch.Gateway.Token = settings.String(strings.TrimSpace(settingsSetFlags.token))
		}

		store := settingsStore()
		coord := settings.NewCoordinator(store, settings.CoordinatorConfig{})
		coord.SchedulePatch(patch, 0)
		if err := coord.Close(context.WithoutCancel(cmd.Context())); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Saved %s.\n", store.Path())
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func tokenState(set bool) string {
	if set {
		return "set"
	}
	return "not set"
}
