package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/grp06/openclaw-studio/observe"
)

var observeFlags struct {
	record string
}

func init() {
	rootCmd.AddCommand(observeCmd)
	observeCmd.Flags().StringVar(&observeFlags.record, "record", "", "append every event to this event log")
}

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Tail agent activity and session status",
	Long: `Tail the observe log: chat and agent events condensed into one line each,
with session status folded in. Press Ctrl-C to stop; with -o json or -o yaml
the final state is printed on exit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ls, err := startLive(cmd, observeFlags.record)
		if err != nil {
			return err
		}
		defer ls.Close()

		store := observe.NewStore(ls.Client(), observe.StoreConfig{})
		defer store.Close()

		if textOutput() {
			var (
				mu   sync.Mutex
				last uint64
			)
			unsubscribe := store.OnChange(func(s observe.State) {
				mu.Lock()
				defer mu.Unlock()
				for _, e := range s.Entries {
					if e.ID <= last {
						continue
					}
					last = e.ID
					printEntry(e)
				}
			})
			defer unsubscribe()
		}

		<-cmd.Context().Done()
		store.Flush()
		if textOutput() {
			return nil
		}
		return render(os.Stdout, store.Snapshot())
	},
}

func printEntry(e observe.Entry) {
	marker := " "
	switch e.Severity {
	case observe.SeverityError:
		marker = "!"
	case observe.SeverityWarn:
		marker = "~"
	}
	fmt.Fprintf(os.Stdout, "%s %s %-12s %s\n", e.Timestamp.Local().Format(time.TimeOnly), marker, e.AgentID, e.Description)
}
