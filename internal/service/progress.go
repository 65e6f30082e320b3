package service

import (
	"sync"
	"sync/atomic"

	"github.com/ippclub/craftsync/internal/apperr"
	"github.com/ippclub/craftsync/internal/model"
)

// Progress is the observable state of the current run. Counters are atomics so
// workers never block on each other; stage and error sit behind a mutex.
type Progress struct {
	mu      sync.RWMutex
	version string
	stage   model.Stage
	err     *model.ProgressError

	librariesCompleted atomic.Int64
	librariesTotal     atomic.Int64
	assetsCompleted    atomic.Int64
	assetsTotal        atomic.Int64

	updates chan struct{}
}

// NewProgress creates an idle progress model
func NewProgress() *Progress {
	return &Progress{
		stage:   model.StageIdle,
		updates: make(chan struct{}, 1),
	}
}

// Updates is signalled after every change. Signals coalesce: a slow observer
// sees at least one signal after the last change, then reads Snapshot.
func (p *Progress) Updates() <-chan struct{} {
	return p.updates
}

func (p *Progress) notify() {
	select {
	case p.updates <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the progress model
func (p *Progress) Snapshot() model.ProgressSnapshot {
	p.mu.RLock()
	snap := model.ProgressSnapshot{
		Version: p.version,
		Stage:   p.stage,
	}
	if p.err != nil {
		e := *p.err
		snap.Error = &e
	}
	p.mu.RUnlock()

	snap.DownloadingLibraries = snap.Stage == model.StageDownloadingLibraries
	snap.ExtractingNatives = snap.Stage == model.StageExtractingNatives
	snap.DownloadingAssets = snap.Stage == model.StageDownloadingAssets
	snap.LibrariesCompleted = p.librariesCompleted.Load()
	snap.LibrariesTotal = p.librariesTotal.Load()
	snap.AssetsCompleted = p.assetsCompleted.Load()
	snap.AssetsTotal = p.assetsTotal.Load()
	return snap
}

// Stage returns the current stage
func (p *Progress) Stage() model.Stage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stage
}

func (p *Progress) reset(version string) {
	p.mu.Lock()
	p.version = version
	p.stage = model.StageIdle
	p.err = nil
	p.librariesCompleted.Store(0)
	p.librariesTotal.Store(0)
	p.assetsCompleted.Store(0)
	p.assetsTotal.Store(0)
	p.mu.Unlock()
	p.notify()
}

// setVersion replaces an alias with the id it resolved to
func (p *Progress) setVersion(version string) {
	p.mu.Lock()
	p.version = version
	p.mu.Unlock()
	p.notify()
}

func (p *Progress) setStage(stage model.Stage) {
	p.mu.Lock()
	p.stage = stage
	p.mu.Unlock()
	p.notify()
}

// fail moves to the absorbing failed state. Counters keep their last values.
func (p *Progress) fail(err error) {
	p.mu.Lock()
	p.stage = model.StageFailed
	p.err = &model.ProgressError{
		Kind:    string(apperr.KindOf(err)),
		Message: err.Error(),
	}
	p.mu.Unlock()
	p.notify()
}

func (p *Progress) setLibrariesTotal(n int) {
	p.librariesTotal.Store(int64(n))
	p.notify()
}

func (p *Progress) libraryDone() {
	p.librariesCompleted.Add(1)
	p.notify()
}

func (p *Progress) setAssetsTotal(n int) {
	p.assetsTotal.Store(int64(n))
	p.notify()
}

func (p *Progress) assetDone() {
	p.assetsCompleted.Add(1)
	p.notify()
}
