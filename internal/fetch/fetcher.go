package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ippclub/craftsync/internal/apperr"
	"github.com/ippclub/craftsync/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Request describes one file to materialize
type Request struct {
	URL   string
	Dest  string
	Size  int64  // UnknownSize skips the size comparison
	SHA1  string // empty skips the digest comparison
	Label string // artifact path used in logs and errors
}

// Result tells the caller whether bytes crossed the network
type Result struct {
	Skipped  bool
	Attempts int
}

// Fetcher downloads files with bounded retries and atomic placement.
// It is safe for concurrent use; the client and limiter are shared.
type Fetcher struct {
	client      *http.Client
	limiter     *rate.Limiter
	logger      *zap.Logger
	maxAttempts int
	backoff     time.Duration
	userAgent   string
	sleep       func(context.Context, time.Duration) error
}

// NewHTTPClient builds the shared client with a per-host connection cap
func NewHTTPClient(cfg config.Download) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxConnsPerHost = cfg.MaxConnsPerHost
	transport.MaxIdleConnsPerHost = cfg.MaxConnsPerHost
	return &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: transport,
	}
}

// NewFetcher creates a Fetcher. A zero rate limit means unlimited.
func NewFetcher(client *http.Client, cfg config.Download, limit config.RateLimit, logger *zap.Logger) *Fetcher {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if limit.RPS > 0 {
		burst := limit.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(limit.RPS), burst)
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Fetcher{
		client:      client,
		limiter:     limiter,
		logger:      logger,
		maxAttempts: attempts,
		backoff:     cfg.Backoff,
		userAgent:   cfg.UserAgent,
		sleep:       sleep,
	}
}

// Fetch makes req.Dest hold the expected bytes. A destination that already
// verifies is left alone without any network I/O. Otherwise up to maxAttempts
// downloads are tried, sleeping attempt*backoff between them.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Result, error) {
	label := req.Label
	if label == "" {
		label = req.Dest
	}

	if err := Check(req.Dest, req.Size, req.SHA1); err == nil {
		f.logger.Debug("already valid, skipping", zap.String("artifact", label))
		return Result{Skipped: true}, nil
	} else if !os.IsNotExist(err) {
		f.logger.Info("local copy invalid, refetching", zap.String("artifact", label), zap.Error(err))
	}

	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := f.sleep(ctx, time.Duration(attempt-1)*f.backoff); err != nil {
				return Result{Attempts: attempt - 1}, err
			}
		}

		lastErr = f.download(ctx, req, label)
		if lastErr == nil {
			return Result{Attempts: attempt}, nil
		}
		if ctx.Err() != nil {
			return Result{Attempts: attempt}, ctx.Err()
		}
		if !IsRetryable(lastErr) {
			return Result{Attempts: attempt}, fmt.Errorf("failed to fetch %s: %w", label, lastErr)
		}

		f.logger.Warn("download attempt failed",
			zap.String("artifact", label),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", f.maxAttempts),
			zap.Error(lastErr),
		)
	}

	return Result{Attempts: f.maxAttempts}, fmt.Errorf("failed to fetch %s after %d attempts: %w", label, f.maxAttempts, lastErr)
}

// download performs one attempt: stream into a temp file beside the
// destination, verify, then rename. The destination never holds a partial file.
func (f *Fetcher) download(ctx context.Context, req Request, label string) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return apperr.New(apperr.InvalidURL, req.URL, err)
	}
	if f.userAgent != "" {
		httpReq.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return apperr.Errorf(apperr.InvalidResponse, req.URL, "status %d", resp.StatusCode)
	}

	dir := filepath.Dir(req.Dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperr.New(apperr.DirectoryCreationFailed, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(req.Dest)+".part-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	placed := false
	defer func() {
		if !placed {
			os.Remove(tmpPath)
		}
	}()

	hasher := sha1.New()
	written, err := io.CopyBuffer(io.MultiWriter(tmp, hasher), resp.Body, make([]byte, chunkSize))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", req.Dest, err)
	}

	if req.Size != UnknownSize && written != req.Size {
		return apperr.Errorf(apperr.FileSizeMismatch, label, "want %d bytes, got %d", req.Size, written)
	}
	if got := hex.EncodeToString(hasher.Sum(nil)); req.SHA1 != "" && !strings.EqualFold(got, req.SHA1) {
		return apperr.Errorf(apperr.DigestMismatch, label, "want %s, got %s", req.SHA1, got)
	}

	if err := os.Rename(tmpPath, req.Dest); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", req.Dest, err)
	}
	placed = true
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRetryable is false for failures another attempt cannot fix
func IsRetryable(err error) bool {
	return !errors.Is(err, apperr.InvalidURL) && !errors.Is(err, apperr.DirectoryCreationFailed)
}
