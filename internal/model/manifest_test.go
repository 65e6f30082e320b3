package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lwjglManifest = `{
  "id": "1.21",
  "assetIndex": {"id": "17", "sha1": "aa", "size": 10, "url": "https://piston-meta.mojang.com/v1/packages/aa/17.json"},
  "libraries": [
    {
      "name": "org.lwjgl:lwjgl:3.3.3:natives-macos",
      "downloads": {"artifact": {"path": "org/lwjgl/lwjgl/3.3.3/lwjgl-3.3.3-natives-macos.jar", "sha1": "bb", "size": 20, "url": "https://libraries.minecraft.net/org/lwjgl/lwjgl/3.3.3/lwjgl-3.3.3-natives-macos.jar"}},
      "rules": [{"action": "allow", "os": {"name": "osx"}}]
    },
    {
      "name": "org.lwjgl.lwjgl:lwjgl-platform:2.9.4",
      "natives": {"linux": "natives-linux", "osx": "natives-osx", "windows": "natives-windows-${arch}"},
      "downloads": {"classifiers": {
        "natives-osx": {"path": "p/osx.jar", "sha1": "cc", "size": 1, "url": "https://libraries.minecraft.net/p/osx.jar"},
        "natives-windows-64": {"path": "p/win.jar", "sha1": "dd", "size": 1, "url": "https://libraries.minecraft.net/p/win.jar"}
      }}
    },
    {"name": "com.example:nothing:1.0"}
  ]
}`

func TestDecodeVersionManifest(t *testing.T) {
	var m VersionManifest
	require.NoError(t, json.Unmarshal([]byte(lwjglManifest), &m))

	require.Len(t, m.Libraries, 3)
	require.NotNil(t, m.AssetIndex)
	assert.Equal(t, int64(10), m.AssetIndex.Size)

	lwjgl := m.Libraries[0]
	require.NotNil(t, lwjgl.MainArtifact())
	assert.True(t, lwjgl.HasNativeHints())
	assert.Equal(t, "allow", lwjgl.Rules[0].Action)

	platformLib := m.Libraries[1]
	assert.Nil(t, platformLib.MainArtifact())
	assert.True(t, platformLib.HasNativeHints())
	assert.Equal(t, "natives-windows-64", platformLib.ClassifierKey("windows", "64"))
	assert.Equal(t, "natives-osx", platformLib.ClassifierKey("osx", "64"))
	require.NotNil(t, platformLib.Classifier("natives-windows-64"))
	assert.Equal(t, "p/win.jar", platformLib.Classifier("natives-windows-64").Path)
	assert.Nil(t, platformLib.Classifier("natives-linux"))

	bare := m.Libraries[2]
	assert.Nil(t, bare.MainArtifact())
	assert.False(t, bare.HasNativeHints())
}

func TestClassifierKeyDefault(t *testing.T) {
	lib := Library{Classifiers: map[string]Artifact{
		"natives-linux": {Path: "a.jar", URL: "https://x/a.jar"},
	}}
	assert.Equal(t, "natives-linux", lib.ClassifierKey("linux", "64"))
	assert.NotNil(t, lib.Classifier("natives-linux"))
}

func TestVersionListFindIsExact(t *testing.T) {
	list := VersionManifestList{Versions: []VersionEntry{{ID: "1.21"}, {ID: "1.21.1"}}}

	_, ok := list.Find("1.21")
	assert.True(t, ok)
	_, ok = list.Find("1.2")
	assert.False(t, ok)
	_, ok = list.Find("1.21 ")
	assert.False(t, ok)
}

func TestAssetObjectAddressing(t *testing.T) {
	obj := AssetObject{Hash: "bdf48ef6b5d0d23bbb02e17d04865216179f510a"}
	assert.True(t, obj.Addressable())
	assert.Equal(t, "bd", obj.Prefix())
	assert.False(t, AssetObject{Hash: "b"}.Addressable())
	assert.False(t, AssetObject{Hash: "../../victim.txt"}.Addressable())
	assert.False(t, AssetObject{Hash: "BDF48EF6B5D0D23BBB02E17D04865216179F510A"}.Addressable())
	assert.False(t, AssetObject{Hash: "bdf48ef6b5d0d23bbb02e17d04865216179f510"}.Addressable())
	assert.False(t, AssetObject{Hash: "bd/48ef6b5d0d23bbb02e17d04865216179f510a"}.Addressable())
}

func TestVersionManifestList_OfType(t *testing.T) {
	list := VersionManifestList{Versions: []VersionEntry{
		{ID: "24w01a", Type: "snapshot"},
		{ID: "1.21", Type: "release"},
		{ID: "1.20", Type: "release"},
	}}

	assert.Len(t, list.OfType(""), 3)
	releases := list.OfType("release")
	require.Len(t, releases, 2)
	assert.Equal(t, "1.21", releases[0].ID)
	assert.Empty(t, list.OfType("old_beta"))
}
