package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ippclub/craftsync/internal/apperr"
	"github.com/ippclub/craftsync/internal/mirror"
	"github.com/ippclub/craftsync/internal/model"
	"go.uber.org/zap"
)

// maxMetadataSize bounds version list and manifest reads
const maxMetadataSize int64 = 64 << 20

// Aliases accepted in place of a version id
const (
	LatestRelease  = "latest-release"
	LatestSnapshot = "latest-snapshot"
)

// Resolver turns a version id into its manifest
type Resolver struct {
	client  *http.Client
	mirror  *mirror.Mirror
	listURL string
	timeout time.Duration // per metadata request, 0 for none
	logger  *zap.Logger
}

// Resolved is the outcome of resolving one version
type Resolved struct {
	Entry    model.VersionEntry
	Manifest *model.VersionManifest
	Raw      []byte // manifest bytes as served
}

// LibraryCount is the denominator of library progress
func (r *Resolved) LibraryCount() int {
	return len(r.Manifest.Libraries)
}

// NewResolver creates a Resolver reading the version list at listURL
func NewResolver(client *http.Client, m *mirror.Mirror, listURL string, timeout time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		client:  client,
		mirror:  m,
		listURL: listURL,
		timeout: timeout,
		logger:  logger,
	}
}

// ListVersions fetches the version list
func (r *Resolver) ListVersions(ctx context.Context) (*model.VersionManifestList, error) {
	listURL, err := r.mirror.RewriteAuthority(r.listURL)
	if err != nil {
		return nil, err
	}

	list := &model.VersionManifestList{}
	if _, err := r.getJSON(ctx, listURL, list); err != nil {
		return nil, fmt.Errorf("failed to fetch version list: %w", err)
	}
	return list, nil
}

// Resolve finds id in the version list and fetches its manifest through the mirror
func (r *Resolver) Resolve(ctx context.Context, id string) (*Resolved, error) {
	list, err := r.ListVersions(ctx)
	if err != nil {
		return nil, err
	}

	switch id {
	case LatestRelease:
		id = list.Latest.Release
	case LatestSnapshot:
		id = list.Latest.Snapshot
	}

	entry, ok := list.Find(id)
	if !ok {
		return nil, apperr.Errorf(apperr.VersionNotFound, id, "not in version list")
	}

	manifestURL, err := r.mirror.RewriteAuthority(entry.URL)
	if err != nil {
		return nil, err
	}

	manifest := &model.VersionManifest{}
	raw, err := r.getJSON(ctx, manifestURL, manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest of %s: %w", id, err)
	}
	if manifest.ID == "" {
		manifest.ID = entry.ID
	}

	r.logger.Info("version resolved",
		zap.String("version", entry.ID),
		zap.String("type", entry.Type),
		zap.Int("libraries", len(manifest.Libraries)),
	)

	return &Resolved{Entry: entry, Manifest: manifest, Raw: raw}, nil
}

// getJSON GETs url and decodes the body into v, returning the raw body
func (r *Resolver) getJSON(ctx context.Context, url string, v any) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.New(apperr.InvalidURL, url, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Errorf(apperr.InvalidResponse, url, "status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, apperr.New(apperr.InvalidResponse, url, err)
	}
	return data, nil
}
