package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ippclub/craftsync/internal/apperr"
)

// Mode names one of the four ways the installation root is chosen
type Mode string

const (
	ModeDocuments Mode = "documents"  // <home>/Documents/<subdir>
	ModeAppLocal  Mode = "app-local"  // <executable dir>/<subdir>
	ModeAppParent Mode = "app-parent" // <parent of executable dir>/<subdir>
	ModeCustom    Mode = "custom"     // user-supplied absolute path
)

// Env carries the host locations the modes are resolved against
type Env struct {
	HomeDir       string
	ExecutableDir string
}

// HostEnv reads Env from the running process
func HostEnv() (Env, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Env{}, fmt.Errorf("failed to get home directory: %w", err)
	}
	exe, err := os.Executable()
	if err != nil {
		return Env{}, fmt.Errorf("failed to get executable path: %w", err)
	}
	return Env{HomeDir: home, ExecutableDir: filepath.Dir(exe)}, nil
}

// ResolveBasePath maps a mode, an optional custom path and the host env to an
// absolute installation root. It touches no filesystem state.
func ResolveBasePath(mode Mode, subdir, custom string, env Env) (string, error) {
	var base string
	switch mode {
	case ModeDocuments:
		if env.HomeDir == "" {
			return "", apperr.Errorf(apperr.InvalidDirectory, string(mode), "home directory unknown")
		}
		base = filepath.Join(env.HomeDir, "Documents", subdir)
	case ModeAppLocal:
		if env.ExecutableDir == "" {
			return "", apperr.Errorf(apperr.InvalidDirectory, string(mode), "executable directory unknown")
		}
		base = filepath.Join(env.ExecutableDir, subdir)
	case ModeAppParent:
		if env.ExecutableDir == "" {
			return "", apperr.Errorf(apperr.InvalidDirectory, string(mode), "executable directory unknown")
		}
		base = filepath.Join(filepath.Dir(env.ExecutableDir), subdir)
	case ModeCustom:
		if custom == "" {
			return "", apperr.Errorf(apperr.InvalidDirectory, string(mode), "custom path is empty")
		}
		if !filepath.IsAbs(custom) {
			return "", apperr.Errorf(apperr.InvalidDirectory, custom, "custom path must be absolute")
		}
		base = custom
	default:
		return "", apperr.Errorf(apperr.InvalidDirectory, string(mode), "unknown storage mode")
	}
	return filepath.Clean(base), nil
}

// BasePath resolves the configured storage section against env
func (s Storage) BasePath(env Env) (string, error) {
	return ResolveBasePath(s.Mode, s.Subdir, s.Custom, env)
}
