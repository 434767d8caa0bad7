package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	studio "github.com/grp06/openclaw-studio"
)

var bootstrapFlags struct {
	template string
	files    []string
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
	bootstrapCmd.Flags().StringVar(&bootstrapFlags.template, "template", "", "agent to copy from (default: the gateway's default agent, then main)")
	bootstrapCmd.Flags().StringSliceVar(&bootstrapFlags.files, "file", nil, "files to copy (default: "+strings.Join(studio.AgentFileNames, ", ")+")")
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap <agent-id>",
	Short: "Copy the standard workspace files of a template agent to a new agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *studio.Client) error {
			res, err := c.BootstrapAgentFiles(ctx, args[0], studio.BootstrapOptions{
				TemplateAgentID: bootstrapFlags.template,
				FileNames:       bootstrapFlags.files,
			})
			if err != nil {
				return err
			}
			if !textOutput() {
				return render(os.Stdout, res)
			}
			fmt.Fprintf(os.Stdout, "Template: %s\n", res.TemplateAgentID)
			fmt.Fprintf(os.Stdout, "Updated:  %s\n", orDash(strings.Join(res.Updated, ", ")))
			fmt.Fprintf(os.Stdout, "Skipped:  %s\n", orDash(strings.Join(res.Skipped, ", ")))
			return nil
		})
	},
}
