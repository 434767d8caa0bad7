package main

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/grp06/openclaw-studio/activity"
	"github.com/grp06/openclaw-studio/wire"
)

var activityFlags struct {
	agent  string
	types  []string
	record string
}

func init() {
	rootCmd.AddCommand(activityCmd)
	activityCmd.Flags().StringVar(&activityFlags.agent, "agent", "", "only events of this agent")
	activityCmd.Flags().StringSliceVar(&activityFlags.types, "type", nil, "only these event kinds (chat, agent, presence, heartbeat, cron, system)")
	activityCmd.Flags().StringVar(&activityFlags.record, "record", "", "append every event to this event log")
}

func activityFilter() (activity.Filter, error) {
	f := activity.Filter{AgentID: activityFlags.agent}
	for _, t := range activityFlags.types {
		kind := wire.EventKind(t)
		if !slices.Contains(wire.Kinds, kind) {
			return f, fmt.Errorf("unknown event kind %q", t)
		}
		f.Types = append(f.Types, kind)
	}
	return f, nil
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Tail every gateway event as a one-line summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := activityFilter()
		if err != nil {
			return err
		}
		ls, err := startLive(cmd, activityFlags.record)
		if err != nil {
			return err
		}
		defer ls.Close()

		feed := activity.NewFeed(activity.FeedConfig{})
		unsubscribe := feed.Subscribe(ls.Client())
		defer unsubscribe()

		if textOutput() {
			unwatch := feed.Watch(func(ev activity.Event) {
				if filter.Match(ev) {
					printActivity(ev)
				}
			})
			defer unwatch()
		}

		<-cmd.Context().Done()
		if textOutput() {
			return nil
		}
		return render(os.Stdout, map[string]any{
			"agents": feed.AgentIDs(),
			"events": feed.Filtered(filter),
		})
	},
}

func printActivity(ev activity.Event) {
	agent := ev.AgentID
	if agent == "" {
		agent = "-"
	}
	fmt.Fprintf(os.Stdout, "%s %-9s %-12s %s\n", ev.Timestamp.Local().Format(time.TimeOnly), ev.Type, agent, ev.Summary)
}
