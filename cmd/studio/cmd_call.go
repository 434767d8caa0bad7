package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	studio "github.com/grp06/openclaw-studio"
)

func init() {
	rootCmd.AddCommand(callCmd, statusCmd)
}

var callCmd = &cobra.Command{
	Use:   "call <method> [params-json]",
	Short: "Call a gateway method and print the result",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var params any
		if len(args) == 2 {
			raw := json.RawMessage(args[1])
			if !json.Valid(raw) {
				return fmt.Errorf("params must be a JSON value")
			}
			params = raw
		}
		return withClient(cmd, func(ctx context.Context, c *studio.Client) error {
			var result json.RawMessage
			if err := c.Call(ctx, args[0], params, &result); err != nil {
				return err
			}
			var v any
			if len(result) > 0 {
				if err := json.Unmarshal(result, &v); err != nil {
					return err
				}
			}
			return render(os.Stdout, v)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the gateway's hello and status summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *studio.Client) error {
			summary, err := c.GatewayStatus(ctx)
			if err != nil {
				return err
			}
			if textOutput() {
				hello := c.Hello()
				fmt.Fprintf(os.Stdout, "gateway %s (protocol %d) at %s\n", hello.Server.Version, hello.Protocol, c.URL())
			}
			return render(os.Stdout, map[string]any{"hello": c.Hello(), "status": summary})
		})
	},
}
