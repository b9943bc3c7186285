package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var forcePurge bool

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and run maintenance jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List maintenance jobs with their schedule",
	RunE: func(cmd *cobra.Command, _ []string) error {
		deps, err := initializeDependencies(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.DB.Close()

		s, err := deps.App.Scheduler(false)
		if err != nil {
			return err
		}

		// next run times are only known once cron has started
		s.Start()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		defer func() { _ = s.Stop(ctx) }()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "JOB\tSPEC\tNEXT RUN")
		for _, e := range s.Entries() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, e.Spec, e.Next.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Run one maintenance job immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := initializeDependencies(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.DB.Close()

		s, err := deps.App.Scheduler(forcePurge)
		if err != nil {
			return err
		}

		if err := s.RunNow(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("job %s: %w", args[0], err)
		}
		fmt.Println("job completed:", args[0])
		return nil
	},
}

func init() {
	jobsRunCmd.Flags().BoolVar(&forcePurge, "force", false, "run log-purge even when today is not the last day of the month")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsRunCmd)
}
