package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List installable versions",
	Long: `Versions fetches the version list through the configured mirror.

Example:
  craftsync versions --type release --limit 10`,
	Args: cobra.NoArgs,
	RunE: runVersions,
}

var (
	versionsTypeFlag  string
	versionsLimitFlag int
)

func init() {
	versionsCmd.Flags().StringVarP(&versionsTypeFlag, "type", "t", "", "Only list versions of this type (release, snapshot, old_beta, old_alpha)")
	versionsCmd.Flags().IntVarP(&versionsLimitFlag, "limit", "n", 20, "Maximum number of versions to print, 0 for all")
}

// GetVersionsCmd returns the versions command
func GetVersionsCmd() *cobra.Command {
	return versionsCmd
}

func runVersions(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.service.Resolver().ListVersions(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "latest release:  %s\nlatest snapshot: %s\n\n", list.Latest.Release, list.Latest.Snapshot)

	entries := list.OfType(versionsTypeFlag)
	if versionsLimitFlag > 0 && len(entries) > versionsLimitFlag {
		entries = entries[:versionsLimitFlag]
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tRELEASED")
	for _, v := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", v.ID, v.Type, v.ReleaseTime)
	}
	return tw.Flush()
}
