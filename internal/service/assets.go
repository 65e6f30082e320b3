package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/ippclub/craftsync/internal/apperr"
	"github.com/ippclub/craftsync/internal/fetch"
	"github.com/ippclub/craftsync/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// loadAssetIndex fetches the version's asset index into assets/indexes and parses it
func (s *InstallService) loadAssetIndex(ctx context.Context, r *run) (*model.AssetIndex, error) {
	ref := r.resolved.Manifest.AssetIndex
	if ref == nil || ref.URL == "" {
		return nil, apperr.Errorf(apperr.MissingArtifact, r.version, "manifest has no asset index")
	}

	url, err := s.mirror.Rewrite(ref.URL)
	if err != nil {
		return nil, err
	}

	size := ref.Size
	if size == 0 {
		size = fetch.UnknownSize
	}
	_, err = s.fetcher.Fetch(ctx, fetch.Request{
		URL:   url,
		Dest:  r.indexPath,
		Size:  size,
		SHA1:  ref.SHA1,
		Label: "assets/indexes/" + r.version + ".json",
	})
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.indexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset index: %w", err)
	}
	index := &model.AssetIndex{}
	if err := json.Unmarshal(data, index); err != nil {
		return nil, apperr.New(apperr.InvalidResponse, r.indexPath, err)
	}
	return index, nil
}

// assetRequests derives one request per distinct addressable object, in a
// stable order. Objects that share a hash are fetched once.
func (s *InstallService) assetRequests(index *model.AssetIndex) ([]fetch.Request, error) {
	names := make([]string, 0, len(index.Objects))
	for name := range index.Objects {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]struct{}, len(names))
	reqs := make([]fetch.Request, 0, len(names))
	for _, name := range names {
		obj := index.Objects[name]
		if !obj.Addressable() {
			s.logger.Warn("asset has no usable hash, skipping", zap.String("asset", name), zap.String("hash", obj.Hash))
			continue
		}
		if _, dup := seen[obj.Hash]; dup {
			continue
		}
		seen[obj.Hash] = struct{}{}

		url, err := s.mirror.AssetURL(obj.Hash)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, fetch.Request{
			URL:   url,
			Dest:  filepath.Join(s.objectsDir(), obj.Prefix(), obj.Hash),
			Size:  obj.Size,
			SHA1:  obj.Hash,
			Label: name,
		})
	}
	return reqs, nil
}

// downloadAssets fetches every object in fixed-size batches, waiting for each
// batch before starting the next. The first failure cancels its batch and
// ends the stage.
func (s *InstallService) downloadAssets(ctx context.Context, r *run) error {
	index, err := s.loadAssetIndex(ctx, r)
	if err != nil {
		return err
	}

	reqs, err := s.assetRequests(index)
	if err != nil {
		return err
	}
	s.progress.setAssetsTotal(len(reqs))

	batchSize := max(s.cfg.Download.AssetBatchSize, 1)
	var fetched atomic.Int64
	for start := 0; start < len(reqs); start += batchSize {
		end := min(start+batchSize, len(reqs))

		g, gctx := errgroup.WithContext(ctx)
		for _, req := range reqs[start:end] {
			req := req
			g.Go(func() error {
				res, err := s.fetcher.Fetch(gctx, req)
				if err != nil {
					return err
				}
				if !res.Skipped {
					fetched.Add(1)
				}
				s.progress.assetDone()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	s.logger.Info("assets downloaded",
		zap.String("version", r.version),
		zap.Int("objects", len(reqs)),
		zap.Int64("fetched", fetched.Load()),
	)
	return nil
}
