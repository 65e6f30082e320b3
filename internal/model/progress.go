package model

// Stage is a state of the install state machine
type Stage string

const (
	StageIdle                 Stage = "idle"
	StageResolvingManifest    Stage = "resolving_manifest"
	StageDownloadingLibraries Stage = "downloading_libraries"
	StageExtractingNatives    Stage = "extracting_natives"
	StageDownloadingAssets    Stage = "downloading_assets"
	StageDone                 Stage = "done"
	StageFailed               Stage = "failed"
)

// ProgressSnapshot is a consistent copy of the progress model handed to observers
type ProgressSnapshot struct {
	Version              string         `json:"version"`
	Stage                Stage          `json:"stage"`
	DownloadingLibraries bool           `json:"downloadingLibraries"`
	ExtractingNatives    bool           `json:"extractingNatives"`
	DownloadingAssets    bool           `json:"downloadingAssets"`
	LibrariesCompleted   int64          `json:"librariesCompleted"`
	LibrariesTotal       int64          `json:"librariesTotal"`
	AssetsCompleted      int64          `json:"assetsCompleted"`
	AssetsTotal          int64          `json:"assetsTotal"`
	Error                *ProgressError `json:"error,omitempty"`
}

// ProgressError is the terminal error of a failed run
type ProgressError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
