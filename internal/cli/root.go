package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ippclub/craftsync/internal/apperr"
	"github.com/ippclub/craftsync/internal/config"
	"github.com/ippclub/craftsync/internal/logger"
	"github.com/ippclub/craftsync/internal/service"
	"github.com/ippclub/craftsync/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time with -ldflags "-X ..."
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "craftsync",
	Short: "Download and verify Minecraft game files through a mirror",
	Long: `craftsync installs a game version: it resolves the version manifest,
downloads and verifies every library, extracts native libraries for this
platform and fetches the content-addressed assets. Files that already
verify are never downloaded again.`,
	Version:      Version,
	SilenceUsage: true,
}

var (
	configFlag string
	dirFlag    string
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "config/config.yaml", "Path to the config file")
	rootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "d", "", "Installation root, overrides storage.mode")

	rootCmd.AddCommand(GetInstallCmd())
	rootCmd.AddCommand(GetVersionsCmd())
	rootCmd.AddCommand(GetHistoryCmd())
	rootCmd.AddCommand(GetServeCmd())
}

// app bundles what every command needs
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.SQLiteStore
	service *service.InstallService
}

func newApp() (*app, error) {
	cfg, err := config.LoadFromFile(configFlag)
	if err != nil {
		return nil, err
	}
	if dirFlag != "" {
		abs, err := filepath.Abs(dirFlag)
		if err != nil {
			return nil, apperr.New(apperr.InvalidDirectory, dirFlag, err)
		}
		cfg.Storage.Mode = config.ModeCustom
		cfg.Storage.Custom = abs
	}

	log, err := logger.InitLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	env, err := config.HostEnv()
	if err != nil {
		return nil, err
	}
	base, err := cfg.Storage.BasePath(env)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, apperr.New(apperr.DirectoryCreationFailed, base, err)
	}

	st, err := store.NewSQLiteStore(base, log)
	if err != nil {
		return nil, err
	}

	svc, err := service.NewInstallService(cfg, log, service.Options{
		BasePath: base,
		Store:    st,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: log, store: st, service: svc}, nil
}

func (a *app) Close() {
	a.store.Close()
	a.logger.Sync()
}
