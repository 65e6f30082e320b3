package service

import (
	"context"
	"path/filepath"

	"github.com/ippclub/craftsync/internal/apperr"
	"github.com/ippclub/craftsync/internal/fetch"
	"github.com/ippclub/craftsync/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// libraryPath places an artifact under libraries/. The path comes from the
// manifest and must stay inside that directory.
func (s *InstallService) libraryPath(a *model.Artifact) (string, error) {
	rel := filepath.FromSlash(a.Path)
	if !filepath.IsLocal(rel) {
		return "", apperr.Errorf(apperr.MissingArtifact, a.Path, "path is not inside the libraries directory")
	}
	return filepath.Join(s.librariesDir(), rel), nil
}

// libraryRequests returns the files one library contributes: its generic
// artifact and, when the library applies to this platform, its native
// classifier. Mirror rewriting happens here so an InvalidURL fails the stage
// before anything is dispatched.
func (s *InstallService) libraryRequests(lib *model.Library) ([]fetch.Request, error) {
	var artifacts []*model.Artifact
	if a := lib.MainArtifact(); a != nil {
		artifacts = append(artifacts, a)
	}
	if s.platform.Applies(lib) {
		if c := s.platform.Classifier(lib); c != nil && (len(artifacts) == 0 || c.Path != artifacts[0].Path) {
			artifacts = append(artifacts, c)
		}
	}

	reqs := make([]fetch.Request, 0, len(artifacts))
	for _, a := range artifacts {
		dest, err := s.libraryPath(a)
		if err != nil {
			return nil, err
		}
		url, err := s.mirror.Rewrite(a.URL)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, fetch.Request{
			URL:   url,
			Dest:  dest,
			Size:  a.Size,
			SHA1:  a.SHA1,
			Label: a.Path,
		})
	}
	return reqs, nil
}

// downloadLibraries fetches every library concurrently. The first failure
// cancels the rest of the stage and is returned.
func (s *InstallService) downloadLibraries(ctx context.Context, r *run) error {
	libs := r.resolved.Manifest.Libraries

	plans := make([][]fetch.Request, len(libs))
	for i := range libs {
		reqs, err := s.libraryRequests(&libs[i])
		if err != nil {
			return err
		}
		plans[i] = reqs
	}

	g, gctx := errgroup.WithContext(ctx)
	if limit := s.cfg.Download.LibraryConcurrency; limit > 0 {
		g.SetLimit(limit)
	}

	for i, reqs := range plans {
		reqs := reqs
		if gctx.Err() != nil {
			break
		}
		if len(reqs) == 0 {
			s.logger.Info("library has no artifact, skipping", zap.String("library", libs[i].Name))
			s.progress.libraryDone()
			continue
		}

		g.Go(func() error {
			for _, req := range reqs {
				if _, err := s.fetcher.Fetch(gctx, req); err != nil {
					return err
				}
			}
			s.progress.libraryDone()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info("libraries downloaded",
		zap.String("version", r.version),
		zap.Int("libraries", len(libs)),
	)
	return nil
}
