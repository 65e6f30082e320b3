package model

import (
	"strings"
)

// VersionManifestList is the remote index of all known versions
type VersionManifestList struct {
	Latest   Latest         `json:"latest"`
	Versions []VersionEntry `json:"versions"`
}

type Latest struct {
	Release  string `json:"release"`
	Snapshot string `json:"snapshot"`
}

// VersionEntry is one selectable version
type VersionEntry struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	Time        string `json:"time"`
	ReleaseTime string `json:"releaseTime"`
}

// Find returns the entry whose id equals id exactly
func (l *VersionManifestList) Find(id string) (VersionEntry, bool) {
	for _, v := range l.Versions {
		if v.ID == id {
			return v, true
		}
	}
	return VersionEntry{}, false
}

// OfType returns the entries of the given type, or all entries for ""
func (l *VersionManifestList) OfType(kind string) []VersionEntry {
	if kind == "" {
		return l.Versions
	}
	var out []VersionEntry
	for _, v := range l.Versions {
		if v.Type == kind {
			out = append(out, v)
		}
	}
	return out
}

// VersionManifest is the dependency closure of one version
type VersionManifest struct {
	ID         string         `json:"id"`
	Type       string         `json:"type,omitempty"`
	AssetIndex *AssetIndexRef `json:"assetIndex,omitempty"`
	Libraries  []Library      `json:"libraries"`
}

// AssetIndexRef locates the asset index of a version
type AssetIndexRef struct {
	ID        string `json:"id"`
	SHA1      string `json:"sha1"`
	Size      int64  `json:"size"`
	TotalSize int64  `json:"totalSize,omitempty"`
	URL       string `json:"url"`
}

// Library is one dependency of a version
type Library struct {
	Name        string              `json:"name"`
	Downloads   *LibraryDownloads   `json:"downloads,omitempty"`
	Rules       []Rule              `json:"rules,omitempty"`
	Classifiers map[string]Artifact `json:"classifiers,omitempty"`
	// Natives maps an OS name to its classifier key, e.g. "osx": "natives-macos-${arch}"
	Natives map[string]string `json:"natives,omitempty"`
}

type LibraryDownloads struct {
	Artifact    *Artifact           `json:"artifact,omitempty"`
	Classifiers map[string]Artifact `json:"classifiers,omitempty"`
}

// Artifact is one downloadable file. Path is relative to the libraries directory.
type Artifact struct {
	Path string `json:"path"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Usable reports whether the descriptor has enough to be fetched
func (a *Artifact) Usable() bool {
	return a != nil && a.Path != "" && a.URL != ""
}

type Rule struct {
	Action string  `json:"action,omitempty"` // allow (default) or disallow
	OS     *RuleOS `json:"os,omitempty"`
}

type RuleOS struct {
	Name string `json:"name"`
}

// MainArtifact returns the generic artifact, or nil
func (l *Library) MainArtifact() *Artifact {
	if l.Downloads == nil || !l.Downloads.Artifact.Usable() {
		return nil
	}
	return l.Downloads.Artifact
}

// HasNativeHints reports whether the library takes part in native extraction
func (l *Library) HasNativeHints() bool {
	return len(l.Rules) > 0 || len(l.classifiers()) > 0 || len(l.Natives) > 0
}

// ClassifierKey returns the classifier name for an OS. The natives map wins when
// present; otherwise the conventional "natives-<os>" key is used.
func (l *Library) ClassifierKey(osName, arch string) string {
	if key, ok := l.Natives[osName]; ok {
		return strings.ReplaceAll(key, "${arch}", arch)
	}
	return "natives-" + osName
}

// Classifier returns the named classifier artifact, or nil
func (l *Library) Classifier(key string) *Artifact {
	if a, ok := l.classifiers()[key]; ok && a.Usable() {
		return &a
	}
	return nil
}

func (l *Library) classifiers() map[string]Artifact {
	if len(l.Classifiers) > 0 {
		return l.Classifiers
	}
	if l.Downloads != nil {
		return l.Downloads.Classifiers
	}
	return nil
}

// AssetIndex is the content-addressed manifest of loose assets
type AssetIndex struct {
	Objects map[string]AssetObject `json:"objects"`
}

// AssetObject is stored under objects/<hash[:2]>/<hash>
type AssetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Addressable reports whether the hash is a lowercase hex SHA-1. Anything
// else cannot name a file under objects/ and must not be joined into a path.
func (o AssetObject) Addressable() bool {
	if len(o.Hash) != 40 {
		return false
	}
	for i := 0; i < len(o.Hash); i++ {
		c := o.Hash[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Prefix returns the 2-character partition directory
func (o AssetObject) Prefix() string {
	return o.Hash[:2]
}
