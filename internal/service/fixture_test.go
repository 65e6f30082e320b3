package service

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ippclub/craftsync/internal/config"
	"github.com/ippclub/craftsync/internal/model"
	"github.com/ippclub/craftsync/internal/platform"
	"github.com/ippclub/craftsync/internal/store"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	upstreamLibraries = "https://libraries.minecraft.net"
	upstreamMeta      = "https://piston-meta.mojang.com"
	versionListPath   = "/mc/game/version_manifest.json"
)

// mirrorServer is an in-memory mirror that counts requests per path
type mirrorServer struct {
	srv   *httptest.Server
	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]int
	list  model.VersionManifestList
}

func newMirrorServer(t *testing.T) *mirrorServer {
	t.Helper()
	m := &mirrorServer{
		files: make(map[string][]byte),
		hits:  make(map[string]int),
	}
	m.srv = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.srv.Close)
	m.publishList()
	return m
}

func (m *mirrorServer) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.hits[r.URL.Path]++
	body, ok := m.files[r.URL.Path]
	m.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Write(body)
}

func (m *mirrorServer) put(path string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = body
}

func (m *mirrorServer) remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

func (m *mirrorServer) hitCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[path]
}

// payloadHits counts requests for libraries, asset indexes and objects
func (m *mirrorServer) payloadHits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for path, n := range m.hits {
		if strings.HasPrefix(path, "/maven/") || strings.HasPrefix(path, "/assets/") || strings.HasPrefix(path, "/v1/indexes/") {
			total += n
		}
	}
	return total
}

func (m *mirrorServer) publishList() {
	data, _ := json.Marshal(m.list)
	m.put(versionListPath, data)
}

// artifact publishes body as a library and returns its upstream descriptor
func (m *mirrorServer) artifact(path string, body []byte) *model.Artifact {
	m.put("/maven/"+path, body)
	return &model.Artifact{
		Path: path,
		SHA1: sha1Hex(body),
		Size: int64(len(body)),
		URL:  upstreamLibraries + "/" + path,
	}
}

// object publishes an asset and returns its index entry
func (m *mirrorServer) object(body []byte) model.AssetObject {
	hash := sha1Hex(body)
	m.put("/assets/"+hash[:2]+"/"+hash, body)
	return model.AssetObject{Hash: hash, Size: int64(len(body))}
}

// version publishes a manifest with an asset index and lists it
func (m *mirrorServer) version(t *testing.T, id string, libs []model.Library, objects map[string]model.AssetObject) {
	t.Helper()
	indexData, err := json.Marshal(model.AssetIndex{Objects: objects})
	require.NoError(t, err)
	m.put("/v1/indexes/"+id+".json", indexData)

	manifest := model.VersionManifest{
		ID: id,
		AssetIndex: &model.AssetIndexRef{
			ID:   id,
			SHA1: sha1Hex(indexData),
			Size: int64(len(indexData)),
			URL:  upstreamMeta + "/v1/indexes/" + id + ".json",
		},
		Libraries: libs,
	}
	manifestData, err := json.Marshal(manifest)
	require.NoError(t, err)
	m.put("/v1/packages/"+id+".json", manifestData)

	m.list.Latest.Release = id
	m.list.Versions = append(m.list.Versions, model.VersionEntry{
		ID:   id,
		Type: "release",
		URL:  upstreamMeta + "/v1/packages/" + id + ".json",
	})
	m.publishList()
}

func (m *mirrorServer) config() *config.Config {
	cfg := config.Default()
	cfg.Mirror = config.Mirror{
		Enabled:        true,
		VersionListURL: "https://launchermeta.mojang.com" + versionListPath,
		MetaBase:       m.srv.URL,
		AssetBase:      m.srv.URL + "/assets",
		Rules: []config.MirrorRule{
			{From: upstreamLibraries, To: m.srv.URL + "/maven"},
			{From: upstreamMeta, To: m.srv.URL},
		},
	}
	cfg.Download.Backoff = time.Millisecond
	return cfg
}

func newTestService(t *testing.T, m *mirrorServer, basePath string, st *store.SQLiteStore) *InstallService {
	t.Helper()
	s, err := NewInstallService(m.config(), zap.NewNop(), Options{
		BasePath: basePath,
		Platform: platform.Platform{OS: "osx", Arch: "64"},
		Client:   m.srv.Client(),
		Store:    st,
	})
	require.NoError(t, err)
	return s
}

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func zipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range entries {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func allow(os string) []model.Rule {
	return []model.Rule{{Action: "allow", OS: &model.RuleOS{Name: os}}}
}

// standardLibraries builds the 1.21 closure used by most tests: a plain jar,
// macOS and Linux natives jars, a classifier-only platform library carrying a
// traversal entry, and a library with nothing to download.
func standardLibraries(t *testing.T, m *mirrorServer) []model.Library {
	macNatives := zipBytes(t, map[string]string{
		"META-INF/MANIFEST.MF": "Manifest-Version: 1.0",
		"liblwjgl.dylib":       "mac lwjgl",
	})
	linuxNatives := zipBytes(t, map[string]string{
		"linux/x64/liblwjgl.so": "linux lwjgl",
	})
	platformNatives := zipBytes(t, map[string]string{
		"libjinput-osx.jnilib": "jinput",
		"../../evil.dylib":     "evil",
		"jinput.dll":           "windows only",
	})
	osxClassifier := m.artifact("net/java/jinput/jinput-platform/2.0.5/jinput-platform-2.0.5-natives-osx.jar", platformNatives)

	return []model.Library{
		{
			Name:      "com.mojang:brigadier:1.2.9",
			Downloads: &model.LibraryDownloads{Artifact: m.artifact("com/mojang/brigadier/1.2.9/brigadier-1.2.9.jar", []byte("brigadier classes"))},
		},
		{
			Name:      "org.lwjgl:lwjgl:3.3.3:natives-macos",
			Downloads: &model.LibraryDownloads{Artifact: m.artifact("org/lwjgl/lwjgl/3.3.3/lwjgl-3.3.3-natives-macos.jar", macNatives)},
			Rules:     allow("osx"),
		},
		{
			Name:      "org.lwjgl:lwjgl:3.3.3:natives-linux",
			Downloads: &model.LibraryDownloads{Artifact: m.artifact("org/lwjgl/lwjgl/3.3.3/lwjgl-3.3.3-natives-linux.jar", linuxNatives)},
			Rules:     allow("linux"),
		},
		{
			Name:    "net.java.jinput:jinput-platform:2.0.5",
			Natives: map[string]string{"osx": "natives-osx", "linux": "natives-linux"},
			Downloads: &model.LibraryDownloads{Classifiers: map[string]model.Artifact{
				"natives-osx": *osxClassifier,
			}},
		},
		{Name: "com.example:provided:1.0"},
	}
}
