package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	studio "github.com/grp06/openclaw-studio"
)

var cronAddFlags struct {
	name        string
	agent       string
	description string
	expr        string
	tz          string
	every       time.Duration
	at          string
	message     string
	systemEvent string
	disabled    bool
}

var cronListAll bool

func init() {
	rootCmd.AddCommand(cronCmd)
	cronCmd.AddCommand(cronListCmd, cronAddCmd, cronEnableCmd, cronDisableCmd, cronRunCmd, cronRemoveCmd)

	cronListCmd.Flags().BoolVarP(&cronListAll, "all", "a", false, "include disabled jobs")

	f := cronAddCmd.Flags()
	f.StringVar(&cronAddFlags.name, "name", "", "job name (required)")
	f.StringVar(&cronAddFlags.agent, "agent", "", "agent that runs the job")
	f.StringVar(&cronAddFlags.description, "description", "", "job description")
	f.StringVar(&cronAddFlags.expr, "cron", "", "cron expression, e.g. \"0 9 * * 1-5\"")
	f.StringVar(&cronAddFlags.tz, "tz", "", "time zone for --cron")
	f.DurationVar(&cronAddFlags.every, "every", 0, "run at a fixed interval")
	f.StringVar(&cronAddFlags.at, "at", "", "run once at this RFC 3339 time")
	f.StringVar(&cronAddFlags.message, "message", "", "agent turn message")
	f.StringVar(&cronAddFlags.systemEvent, "system-event", "", "system event text injected into the main session")
	f.BoolVar(&cronAddFlags.disabled, "disabled", false, "create the job disabled")
	cronAddCmd.MarkFlagRequired("name")
	cronAddCmd.MarkFlagsMutuallyExclusive("cron", "every", "at")
	cronAddCmd.MarkFlagsOneRequired("cron", "every", "at")
	cronAddCmd.MarkFlagsMutuallyExclusive("message", "system-event")
	cronAddCmd.MarkFlagsOneRequired("message", "system-event")
}

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Manage gateway cron jobs",
}

var cronListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cron jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *studio.Client) error {
			jobs, err := c.CronList(ctx, cronListAll)
			if err != nil {
				return err
			}
			if !textOutput() {
				return render(os.Stdout, jobs)
			}
			if len(jobs) == 0 {
				fmt.Println("No cron jobs.")
				return nil
			}
			now := time.Now()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tAGENT\tENABLED\tSCHEDULE\tNEXT\tLAST")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
					j.ID, j.Name, j.AgentID, j.Enabled, describeSchedule(j.Schedule), nextRun(j, now), j.State.LastStatus)
			}
			return w.Flush()
		})
	},
}

func describeSchedule(s studio.CronSchedule) string {
	switch s.Kind {
	case studio.ScheduleCron:
		if s.TZ != "" {
			return s.Expr + " (" + s.TZ + ")"
		}
		return s.Expr
	case studio.ScheduleEvery:
		return "every " + (time.Duration(s.EveryMs) * time.Millisecond).String()
	case studio.ScheduleAt:
		return "at " + time.UnixMilli(s.AtMs).Local().Format(time.DateTime)
	}
	return s.Kind
}

// nextRun prefers the gateway's own schedule state and computes it locally
// when the gateway has none.
func nextRun(j studio.CronJob, now time.Time) string {
	if !j.Enabled {
		return "-"
	}
	if j.State.NextRunAtMs > 0 {
		return time.UnixMilli(j.State.NextRunAtMs).Local().Format(time.DateTime)
	}
	if next, ok := studio.NextRun(j.Schedule, now); ok {
		return next.Local().Format(time.DateTime)
	}
	return "-"
}

func cronJobFromFlags() (studio.CronJob, error) {
	f := cronAddFlags
	job := studio.CronJob{
		Name:        f.name,
		AgentID:     f.agent,
		Description: f.description,
		Enabled:     !f.disabled,
		WakeMode:    "next-heartbeat",
	}

	switch {
	case f.expr != "":
		job.Schedule = studio.CronSchedule{Kind: studio.ScheduleCron, Expr: f.expr, TZ: f.tz}
	case f.every > 0:
		job.Schedule = studio.CronSchedule{Kind: studio.ScheduleEvery, EveryMs: f.every.Milliseconds()}
	case f.at != "":
		at, err := time.Parse(time.RFC3339, f.at)
		if err != nil {
			return job, fmt.Errorf("--at: %w", err)
		}
		job.Schedule = studio.CronSchedule{Kind: studio.ScheduleAt, AtMs: at.UnixMilli()}
	default:
		return job, errors.New("one of --cron, --every or --at is required")
	}

	if f.systemEvent != "" {
		job.SessionTarget = "main"
		job.Payload = studio.CronPayload{Kind: studio.PayloadSystemEvent, Text: f.systemEvent}
	} else {
		job.SessionTarget = "isolated"
		job.Payload = studio.CronPayload{Kind: studio.PayloadAgentTurn, Message: f.message}
	}
	return job, studio.ValidateSchedule(job.Schedule)
}

var cronAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a cron job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := cronJobFromFlags()
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *studio.Client) error {
			created, err := c.CronAdd(ctx, job)
			if err != nil {
				return err
			}
			if textOutput() {
				fmt.Fprintf(os.Stdout, "Created cron job %s (%s).\n", created.ID, created.Name)
				return nil
			}
			return render(os.Stdout, created)
		})
	},
}

var cronEnableCmd = &cobra.Command{
	Use:   "enable <job-id>",
	Short: "Enable a cron job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCronEnabled(cmd, args[0], true)
	},
}

var cronDisableCmd = &cobra.Command{
	Use:   "disable <job-id>",
	Short: "Disable a cron job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCronEnabled(cmd, args[0], false)
	},
}

func setCronEnabled(cmd *cobra.Command, id string, enabled bool) error {
	return withClient(cmd, func(ctx context.Context, c *studio.Client) error {
		if err := c.CronSetEnabled(ctx, id, enabled); err != nil {
			return err
		}
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		fmt.Fprintf(os.Stdout, "Cron job %s %s.\n", id, state)
		return nil
	})
}

var cronRunCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Run a cron job now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *studio.Client) error {
			res, err := c.CronRun(ctx, args[0])
			if err != nil {
				return err
			}
			if textOutput() {
				fmt.Fprintf(os.Stdout, "Cron job %s triggered (ran: %t).\n", args[0], res.Ran)
				return nil
			}
			return render(os.Stdout, res)
		})
	},
}

var cronRemoveCmd = &cobra.Command{
	Use:   "remove <job-id>",
	Short: "Delete a cron job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *studio.Client) error {
			if err := c.CronRemove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Cron job %s removed.\n", args[0])
			return nil
		})
	},
}
