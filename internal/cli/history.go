package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [version]",
	Short: "Show past install runs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

var historyLimitFlag int

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Maximum number of runs to print")
}

// GetHistoryCmd returns the history command
func GetHistoryCmd() *cobra.Command {
	return historyCmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	version := ""
	if len(args) == 1 {
		version = args[0]
	}
	runs, err := a.store.ListRuns(version, historyLimitFlag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tVERSION\tSTAGE\tDURATION\tERROR")
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Version, r.Stage, duration, r.ErrorKind)
	}
	return tw.Flush()
}
