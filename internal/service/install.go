package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ippclub/craftsync/internal/apperr"
	"github.com/ippclub/craftsync/internal/config"
	"github.com/ippclub/craftsync/internal/fetch"
	"github.com/ippclub/craftsync/internal/mirror"
	"github.com/ippclub/craftsync/internal/model"
	"github.com/ippclub/craftsync/internal/platform"
	"github.com/ippclub/craftsync/internal/store"
	"go.uber.org/zap"
)

// ErrBusy is returned by Install while another run is in progress
var ErrBusy = errors.New("an install is already running")

// InstallService runs the install pipeline:
// resolve manifest, download libraries, extract natives, download assets.
type InstallService struct {
	cfg      *config.Config
	logger   *zap.Logger
	basePath string
	platform platform.Platform
	mirror   *mirror.Mirror
	fetcher  *fetch.Fetcher
	resolver *Resolver
	store    *store.SQLiteStore
	progress *Progress

	running   atomic.Bool
	mu        sync.RWMutex
	onInstall func()
}

// Options carries the collaborators of an InstallService. Zero values are
// replaced with defaults derived from the configuration.
type Options struct {
	BasePath string
	Platform platform.Platform
	Client   *http.Client
	Store    *store.SQLiteStore
}

// NewInstallService creates a new InstallService instance
func NewInstallService(cfg *config.Config, logger *zap.Logger, opts Options) (*InstallService, error) {
	if opts.BasePath == "" || !filepath.IsAbs(opts.BasePath) {
		return nil, apperr.Errorf(apperr.InvalidDirectory, opts.BasePath, "base path must be absolute")
	}
	if opts.Platform.OS == "" {
		opts.Platform = platform.Current()
	}
	if opts.Client == nil {
		opts.Client = fetch.NewHTTPClient(cfg.Download)
	}

	m, err := mirror.New(cfg.Mirror)
	if err != nil {
		return nil, fmt.Errorf("failed to configure mirror: %w", err)
	}

	return &InstallService{
		cfg:      cfg,
		logger:   logger,
		basePath: filepath.Clean(opts.BasePath),
		platform: opts.Platform,
		mirror:   m,
		fetcher:  fetch.NewFetcher(opts.Client, cfg.Download, cfg.RateLimit, logger),
		resolver: NewResolver(opts.Client, m, cfg.Mirror.VersionListURL, cfg.Mirror.Timeout, logger),
		store:    opts.Store,
		progress: NewProgress(),
	}, nil
}

// Progress returns the progress model observed by the presentation layer
func (s *InstallService) Progress() *Progress {
	return s.progress
}

// Resolver returns the manifest resolver
func (s *InstallService) Resolver() *Resolver {
	return s.resolver
}

// BasePath returns the installation root
func (s *InstallService) BasePath() string {
	return s.basePath
}

// Busy reports whether a run is in progress
func (s *InstallService) Busy() bool {
	return s.running.Load()
}

// SetOnInstallCallback registers fn to be called after every run
func (s *InstallService) SetOnInstallCallback(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onInstall = fn
}

// run holds the paths of one version's install
type run struct {
	id         string
	version    string
	resolved   *Resolved
	nativesDir string
	indexPath  string
}

func (s *InstallService) newRun(version string) *run {
	r := &run{id: uuid.NewString()}
	s.setVersion(r, version)
	return r
}

// setVersion points the run's per-version paths at version
func (s *InstallService) setVersion(r *run, version string) {
	r.version = version
	r.nativesDir = filepath.Join(s.basePath, config.VersionsDir, version, version+"-natives")
	r.indexPath = filepath.Join(s.basePath, filepath.FromSlash(config.AssetIndexesDir), version+".json")
}

func (s *InstallService) librariesDir() string {
	return filepath.Join(s.basePath, config.LibrariesDir)
}

func (s *InstallService) objectsDir() string {
	return filepath.Join(s.basePath, filepath.FromSlash(config.AssetObjectsDir))
}

// Install runs the whole pipeline for one version. Stages are strictly
// sequential and each is gated on full success of the previous one. Any
// failure moves progress to the failed state and is returned.
func (s *InstallService) Install(ctx context.Context, version string) (err error) {
	if !s.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.running.Store(false)

	r := s.newRun(version)
	s.progress.reset(version)
	s.recordStart(r)
	started := time.Now()

	defer func() {
		if err != nil {
			s.progress.fail(err)
			s.logger.Error("install failed",
				zap.String("version", r.version),
				zap.String("run", r.id),
				zap.String("kind", string(apperr.KindOf(err))),
				zap.Error(err),
			)
		} else {
			s.logger.Info("install completed",
				zap.String("version", r.version),
				zap.String("run", r.id),
				zap.Duration("elapsed", time.Since(started)),
			)
		}
		s.recordFinish(r)
		s.mu.RLock()
		callback := s.onInstall
		s.mu.RUnlock()
		if callback != nil {
			callback()
		}
	}()

	if err := config.EnsureLayout(s.basePath); err != nil {
		return apperr.New(apperr.DirectoryCreationFailed, s.basePath, err)
	}

	s.progress.setStage(model.StageResolvingManifest)
	resolved, err := s.resolver.Resolve(ctx, version)
	if err != nil {
		return err
	}
	r.resolved = resolved
	if !filepath.IsLocal(resolved.Entry.ID) {
		return apperr.Errorf(apperr.InvalidResponse, resolved.Entry.ID, "version id cannot name a directory")
	}
	if resolved.Entry.ID != version {
		// an alias such as latest-release was given
		s.setVersion(r, resolved.Entry.ID)
		s.progress.setVersion(resolved.Entry.ID)
	}
	if err := s.saveManifest(r); err != nil {
		return err
	}
	s.progress.setLibrariesTotal(resolved.LibraryCount())

	s.progress.setStage(model.StageDownloadingLibraries)
	if err := s.downloadLibraries(ctx, r); err != nil {
		return fmt.Errorf("failed to download libraries: %w", err)
	}

	s.progress.setStage(model.StageExtractingNatives)
	if err := s.extractNatives(ctx, r); err != nil {
		return fmt.Errorf("failed to extract natives: %w", err)
	}

	s.progress.setStage(model.StageDownloadingAssets)
	if err := s.downloadAssets(ctx, r); err != nil {
		return fmt.Errorf("failed to download assets: %w", err)
	}

	s.progress.setStage(model.StageDone)
	return nil
}

// saveManifest caches the manifest as versions/<v>/<v>.json
func (s *InstallService) saveManifest(r *run) error {
	dir := filepath.Join(s.basePath, config.VersionsDir, r.version)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperr.New(apperr.DirectoryCreationFailed, dir, err)
	}

	target := filepath.Join(dir, r.version+".json")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, r.resolved.Raw, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// recordStart and recordFinish persist run history. Store failures are logged
// and never fail the run.
func (s *InstallService) recordStart(r *run) {
	if s.store == nil {
		return
	}
	dbRun := &model.DBRun{
		RunID:     r.id,
		Version:   r.version,
		Stage:     model.StageResolvingManifest,
		StartedAt: time.Now(),
	}
	if err := s.store.AddRun(dbRun); err != nil {
		s.logger.Warn("failed to record run start", zap.String("run", r.id), zap.Error(err))
	}
}

func (s *InstallService) recordFinish(r *run) {
	if s.store == nil {
		return
	}
	snap := s.progress.Snapshot()

	dbRun := &model.DBRun{RunID: r.id, Version: r.version, Stage: snap.Stage}
	install := &model.DBInstall{
		Version:            r.version,
		BasePath:           s.basePath,
		Stage:              snap.Stage,
		LibrariesCompleted: snap.LibrariesCompleted,
		LibrariesTotal:     snap.LibrariesTotal,
		AssetsCompleted:    snap.AssetsCompleted,
		AssetsTotal:        snap.AssetsTotal,
	}
	if snap.Error != nil {
		dbRun.ErrorKind, dbRun.ErrorMessage = snap.Error.Kind, snap.Error.Message
		install.ErrorKind, install.ErrorMessage = snap.Error.Kind, snap.Error.Message
	}

	if err := s.store.FinishRun(dbRun); err != nil {
		s.logger.Warn("failed to record run result", zap.String("run", r.id), zap.Error(err))
	}
	if err := s.store.UpsertInstall(install); err != nil {
		s.logger.Warn("failed to update install record", zap.String("version", r.version), zap.Error(err))
	}
}
