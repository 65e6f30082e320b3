package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ippclub/craftsync/internal/config"
	"github.com/ippclub/craftsync/internal/model"
	"github.com/ippclub/craftsync/internal/service"
	"github.com/ippclub/craftsync/internal/store"
	"go.uber.org/zap"
)

// API handles HTTP requests
type API struct {
	cfg            *config.Config
	logger         *zap.Logger
	store          *store.SQLiteStore
	installService *service.InstallService
	rateLimiter    *RateLimiter

	// installs started over HTTP outlive their request; Close cancels them
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	cache struct {
		installs    []byte
		installInfo map[string][]byte
	}
}

// InstallInfo is the public view of an install record
type InstallInfo struct {
	Version            string      `json:"version"`
	Stage              model.Stage `json:"stage"`
	LibrariesCompleted int64       `json:"librariesCompleted"`
	LibrariesTotal     int64       `json:"librariesTotal"`
	AssetsCompleted    int64       `json:"assetsCompleted"`
	AssetsTotal        int64       `json:"assetsTotal"`
	ErrorKind          string      `json:"errorKind,omitempty"`
	ErrorMessage       string      `json:"errorMessage,omitempty"`
	UpdatedAt          int64       `json:"updatedAt"`
}

// NewAPI creates a new API instance
func NewAPI(cfg *config.Config, logger *zap.Logger, installService *service.InstallService, dbStore *store.SQLiteStore) *API {
	ctx, cancel := context.WithCancel(context.Background())
	api := &API{
		cfg:            cfg,
		logger:         logger,
		store:          dbStore,
		installService: installService,
		rateLimiter:    NewRateLimiter(float64(cfg.RateLimit.ServerRPS), cfg.RateLimit.ServerBurst),
		ctx:            ctx,
		cancel:         cancel,
	}
	api.cache.installInfo = make(map[string][]byte)

	if err := api.UpdateCache(); err != nil {
		logger.Error("failed to initialize cache", zap.Error(err))
	}

	installService.SetOnInstallCallback(func() {
		if err := api.UpdateCache(); err != nil {
			logger.Error("failed to update cache after install", zap.Error(err))
		} else {
			logger.Debug("cache updated after install")
		}
	})

	return api
}

// Close cancels running installs and stops the rate limiter
func (a *API) Close() {
	a.cancel()
	a.rateLimiter.Close()
}

// RegisterRoutes registers the API routes
func (a *API) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.rateLimiter.RateLimit)
		r.Get("/progress", a.getProgress)
		r.Get("/versions", a.listVersions)
		r.Get("/installs", a.listInstalls)
		r.Get("/installs/{version}", a.getInstall)
		r.Get("/installs/{version}/runs", a.listRuns)
	})

	// Admin routes (localhost only)
	r.Route("/admin", func(r chi.Router) {
		r.Use(LocalOnly)
		r.Post("/install/{version}", a.triggerInstall)
	})
}

// UpdateCache rebuilds the cached install listings from the store
func (a *API) UpdateCache() error {
	installs, err := a.store.ListInstalls()
	if err != nil {
		return fmt.Errorf("failed to get installs: %w", err)
	}

	infos := make([]InstallInfo, 0, len(installs))
	perVersion := make(map[string][]byte, len(installs))
	for _, install := range installs {
		info := InstallInfo{
			Version:            install.Version,
			Stage:              install.Stage,
			LibrariesCompleted: install.LibrariesCompleted,
			LibrariesTotal:     install.LibrariesTotal,
			AssetsCompleted:    install.AssetsCompleted,
			AssetsTotal:        install.AssetsTotal,
			ErrorKind:          install.ErrorKind,
			ErrorMessage:       install.ErrorMessage,
			UpdatedAt:          install.UpdatedAt.Unix(),
		}
		infos = append(infos, info)

		data, err := json.Marshal(info)
		if err != nil {
			a.logger.Error("failed to marshal install", zap.String("version", install.Version), zap.Error(err))
			continue
		}
		perVersion[install.Version] = data
	}

	installsBytes, err := json.Marshal(infos)
	if err != nil {
		return fmt.Errorf("failed to marshal installs: %w", err)
	}

	a.mu.Lock()
	a.cache.installs = installsBytes
	a.cache.installInfo = perVersion
	a.mu.Unlock()
	return nil
}

// getProgress returns a snapshot of the current run
func (a *API) getProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.installService.Progress().Snapshot())
}

// listVersions returns the upstream version list, optionally filtered by ?type=
func (a *API) listVersions(w http.ResponseWriter, r *http.Request) {
	list, err := a.installService.Resolver().ListVersions(r.Context())
	if err != nil {
		a.logger.Error("failed to list versions", zap.Error(err))
		http.Error(w, "failed to fetch version list", http.StatusBadGateway)
		return
	}

	list.Versions = list.OfType(r.URL.Query().Get("type"))
	if list.Versions == nil {
		list.Versions = []model.VersionEntry{}
	}
	writeJSON(w, http.StatusOK, list)
}

// listInstalls returns every known install
func (a *API) listInstalls(w http.ResponseWriter, r *http.Request) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.cache.installs == nil {
		http.Error(w, "Cache not initialized", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(a.cache.installs)
}

// getInstall returns the install record of one version
func (a *API) getInstall(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")

	a.mu.RLock()
	defer a.mu.RUnlock()

	if cached, ok := a.cache.installInfo[version]; ok {
		w.Header().Set("Content-Type", "application/json")
		w.Write(cached)
		return
	}

	http.Error(w, "install not found", http.StatusNotFound)
}

// listRuns returns the run history of one version, newest first
func (a *API) listRuns(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := a.store.ListRuns(version, limit)
	if err != nil {
		a.logger.Error("failed to list runs", zap.String("version", version), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*model.DBRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// triggerInstall starts an install in the background
func (a *API) triggerInstall(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")

	if a.installService.Busy() {
		writeJSON(w, http.StatusConflict, map[string]string{
			"status":  "busy",
			"message": "An install is already running",
		})
		return
	}

	a.logger.Info("install triggered", zap.String("version", version))

	go func() {
		err := a.installService.Install(a.ctx, version)
		switch {
		case errors.Is(err, service.ErrBusy):
			a.logger.Warn("install rejected, another run started first", zap.String("version", version))
		case err != nil:
			// already logged by the service
		default:
			a.logger.Info("triggered install completed", zap.String("version", version))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "install started",
		"version": version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
