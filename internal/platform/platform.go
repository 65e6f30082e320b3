package platform

import (
	"runtime"
	"strings"

	"github.com/ippclub/craftsync/internal/model"
)

// Platform identifies the host in the vocabulary used by version manifests
type Platform struct {
	OS   string // osx, linux, windows
	Arch string // 64 or 32, substituted for ${arch} in classifier keys
}

// Current returns the platform of the running process
func Current() Platform {
	return FromGOOS(runtime.GOOS, runtime.GOARCH)
}

// FromGOOS maps Go's GOOS/GOARCH names to manifest names
func FromGOOS(goos, goarch string) Platform {
	p := Platform{OS: goos, Arch: "64"}
	if goos == "darwin" {
		p.OS = "osx"
	}
	switch goarch {
	case "386", "arm":
		p.Arch = "32"
	}
	return p
}

// NativeSuffixes lists the file extensions of native libraries on the platform
func (p Platform) NativeSuffixes() []string {
	switch p.OS {
	case "osx":
		return []string{".dylib", ".jnilib"}
	case "windows":
		return []string{".dll"}
	default:
		return []string{".so"}
	}
}

// IsNative reports whether an archive entry name is a native library for the platform
func (p Platform) IsNative(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range p.NativeSuffixes() {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Applies reports whether a library is meant for the platform. A library without
// rules applies everywhere; otherwise an allow rule must name the platform and no
// disallow rule may name it.
func (p Platform) Applies(lib *model.Library) bool {
	if len(lib.Rules) == 0 {
		return true
	}
	allowed := false
	for _, rule := range lib.Rules {
		if rule.OS == nil || rule.OS.Name != p.OS {
			continue
		}
		if rule.Action == "disallow" {
			return false
		}
		allowed = true
	}
	return allowed
}

// Classifier returns the platform-specific artifact of a library, or nil
func (p Platform) Classifier(lib *model.Library) *model.Artifact {
	return lib.Classifier(lib.ClassifierKey(p.OS, p.Arch))
}
