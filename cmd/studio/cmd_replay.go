package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/grp06/openclaw-studio/activity"
	"github.com/grp06/openclaw-studio/eventlog"
	"github.com/grp06/openclaw-studio/internal/clock"
	"github.com/grp06/openclaw-studio/observe"
)

var replayFlags struct {
	activity bool
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayFlags.activity, "activity", false, "print the activity feed instead of the observe log")
}

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Rebuild observe and activity state from a recorded event log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		// The fake clock is moved to each record's time so entries carry
		// the time they were recorded, not the time of the replay.
		var clk *clock.FakeClock
		var mapper *observe.Mapper
		var feed *activity.Feed
		var state observe.State
		var frames int

		err = eventlog.Replay(f, func(e eventlog.Entry) error {
			if clk == nil {
				clk = clock.Fake(e.At)
				mapper = observe.NewMapper(clk)
				feed = activity.NewFeed(activity.FeedConfig{Clock: clk})
			} else if d := e.At.Sub(clk.Now()); d > 0 {
				clk.Advance(d)
			}
			frames++
			feed.Ingest(e.Frame)
			if entry := mapper.Map(e.Frame); entry != nil {
				state = observe.Reduce(state, observe.PushEntries{Entries: []observe.Entry{*entry}})
			}
			return nil
		})
		if err != nil {
			return err
		}
		if feed == nil {
			feed = activity.NewFeed(activity.FeedConfig{})
		}

		if !textOutput() {
			return render(os.Stdout, map[string]any{
				"frames":   frames,
				"observe":  state,
				"activity": feed.Events(),
			})
		}

		if replayFlags.activity {
			events := feed.Events()
			for i := len(events) - 1; i >= 0; i-- {
				printActivity(events[i])
			}
			return nil
		}
		for _, e := range state.Entries {
			printEntry(e)
		}
		fmt.Fprintf(os.Stdout, "\n%d frames, %d entries, %d interventions\n\n", frames, len(state.Entries), state.InterventionCount)
		return printSessionStatus(state.Sessions)
	},
}

func printSessionStatus(sessions []observe.SessionStatus) error {
	if len(sessions) == 0 {
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tAGENT\tORIGIN\tSTATUS\tEVENTS\tACTIVITY")
	for _, s := range sessions {
		act := s.CurrentActivity
		if s.Status == observe.StatusError {
			act = s.LastError
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", s.SessionKey, s.AgentID, s.Origin, s.Status, s.EventCount, act)
	}
	return w.Flush()
}
