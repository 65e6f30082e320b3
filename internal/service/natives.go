package service

import (
	"context"
	"errors"
	"os"

	"github.com/ippclub/craftsync/internal/apperr"
	"github.com/ippclub/craftsync/internal/model"
	"github.com/ippclub/craftsync/pkg/zip"
	"go.uber.org/zap"
)

// nativeArtifact picks the archive to extract for a library: the platform
// classifier when present, else the generic artifact.
func (s *InstallService) nativeArtifact(lib *model.Library) (*model.Artifact, error) {
	if c := s.platform.Classifier(lib); c != nil {
		return c, nil
	}
	if a := lib.MainArtifact(); a != nil {
		return a, nil
	}
	return nil, apperr.Errorf(apperr.MissingArtifact, lib.Name, "no %s classifier and no artifact", lib.ClassifierKey(s.platform.OS, s.platform.Arch))
}

// extractNatives unpacks the native libraries of every applicable library into
// the version's natives directory. Libraries are processed one at a time and
// the first error aborts the stage.
func (s *InstallService) extractNatives(ctx context.Context, r *run) error {
	if err := os.MkdirAll(r.nativesDir, 0755); err != nil {
		return apperr.New(apperr.DirectoryCreationFailed, r.nativesDir, err)
	}

	libs := r.resolved.Manifest.Libraries
	extracted := 0
	for i := range libs {
		if err := ctx.Err(); err != nil {
			return err
		}

		lib := &libs[i]
		if !lib.HasNativeHints() {
			continue
		}
		if !s.platform.Applies(lib) {
			s.logger.Debug("library not for this platform", zap.String("library", lib.Name), zap.String("os", s.platform.OS))
			continue
		}

		artifact, err := s.nativeArtifact(lib)
		if err != nil {
			return err
		}

		archive, err := s.libraryPath(artifact)
		if err != nil {
			return err
		}
		written, err := zip.Extract(archive, r.nativesDir, s.platform.IsNative)
		if err != nil {
			if errors.Is(err, zip.ErrInvalidArchive) {
				return apperr.New(apperr.InvalidArchive, artifact.Path, err)
			}
			return err
		}

		if len(written) > 0 {
			s.logger.Debug("natives extracted",
				zap.String("library", lib.Name),
				zap.Strings("files", written),
			)
		}
		extracted += len(written)
	}

	s.logger.Info("natives extracted",
		zap.String("version", r.version),
		zap.String("dir", r.nativesDir),
		zap.Int("files", extracted),
	)
	return nil
}
