package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/ippclub/craftsync/internal/apperr"
	"github.com/ippclub/craftsync/internal/model"
	"github.com/ippclub/craftsync/internal/service"
	"github.com/spf13/cobra"
)

// ANSI color codes
const (
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorReset = "\033[0m"
)

var installCmd = &cobra.Command{
	Use:   "install <version>",
	Short: "Install a game version",
	Long: `Install resolves <version> (or latest-release / latest-snapshot), then
downloads its libraries, extracts natives and downloads its assets.
Interrupting the command cancels the run; rerunning resumes it.

Example:
  craftsync install 1.21
  craftsync install latest-release --dir /opt/minecraft`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

// GetInstallCmd returns the install command
func GetInstallCmd() *cobra.Command {
	return installCmd
}

func runInstall(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Installing %s into %s\n", args[0], a.service.BasePath())

	done := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		watchProgress(out, a.service.Progress(), done)
	}()

	err = a.service.Install(ctx, args[0])
	close(done)
	<-watched

	snap := a.service.Progress().Snapshot()
	if err != nil {
		fmt.Fprintf(out, "%s✗ install failed [%s]%s\n", colorRed, apperr.KindOf(err), colorReset)
		return err
	}
	fmt.Fprintf(out, "%s✓ %s installed: %d libraries, %d assets%s\n",
		colorGreen, snap.Version, snap.LibrariesTotal, snap.AssetsTotal, colorReset)
	return nil
}

// watchProgress prints a line per stage and redraws the counters in place
// until done is closed.
func watchProgress(w io.Writer, p *service.Progress, done <-chan struct{}) {
	var last model.ProgressSnapshot
	for {
		select {
		case <-done:
			render(w, &last, p.Snapshot())
			fmt.Fprintln(w)
			return
		case <-p.Updates():
			render(w, &last, p.Snapshot())
		}
	}
}

func render(w io.Writer, last *model.ProgressSnapshot, snap model.ProgressSnapshot) {
	if snap == *last && snap.Error == nil {
		return
	}
	if snap.Stage != last.Stage && last.Stage != "" {
		fmt.Fprintln(w)
	}
	switch snap.Stage {
	case model.StageDownloadingLibraries:
		fmt.Fprintf(w, "\rlibraries %d/%d", snap.LibrariesCompleted, snap.LibrariesTotal)
	case model.StageDownloadingAssets:
		fmt.Fprintf(w, "\rassets %d/%d", snap.AssetsCompleted, snap.AssetsTotal)
	case model.StageFailed:
		if snap.Error != nil {
			fmt.Fprintf(w, "\r%s", snap.Error.Message)
		}
	default:
		fmt.Fprintf(w, "\r%s", snap.Stage)
	}
	*last = snap
}
