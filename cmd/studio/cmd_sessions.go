package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	studio "github.com/grp06/openclaw-studio"
	"github.com/grp06/openclaw-studio/observe"
)

var sessionsFlags struct {
	agent  string
	search string
	limit  int
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.Flags().StringVar(&sessionsFlags.agent, "agent", "", "only sessions of this agent")
	sessionsCmd.Flags().StringVar(&sessionsFlags.search, "search", "", "filter by key or label")
	sessionsCmd.Flags().IntVar(&sessionsFlags.limit, "limit", observe.HydrateParams.Limit, "maximum sessions to list")
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List gateway sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *studio.Client) error {
			params := observe.HydrateParams
			params.AgentID = sessionsFlags.agent
			params.Search = sessionsFlags.search
			params.Limit = sessionsFlags.limit
			res, err := c.SessionsList(ctx, params)
			if err != nil {
				return err
			}

			rows := make([]observe.SessionStatus, 0, len(res.Sessions))
			for _, s := range res.Sessions {
				rows = append(rows, observe.SessionFromSummary(s))
			}
			if !textOutput() {
				return render(os.Stdout, rows)
			}
			if len(rows) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tAGENT\tORIGIN\tNAME\tUPDATED")
			for _, s := range rows {
				updated := "-"
				if !s.LastActivityAt.IsZero() {
					updated = s.LastActivityAt.Local().Format(time.DateTime)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.SessionKey, s.AgentID, s.Origin, s.DisplayName, updated)
			}
			return w.Flush()
		})
	},
}
