package assetdb_test

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/reflar"
	"github.com/rawbytedev/reflar/pkg/assetdb"
	"github.com/rawbytedev/reflar/pkg/registry"
)

type Material struct {
	assetdb.Asset
	Shader string `reflar:"shader"`
}

type Scene struct {
	assetdb.Asset
	Name      string      `reflar:"name"`
	Materials []*Material `reflar:"materials"`
	Main      *Material   `reflar:"main"`
}

type Loose struct {
	Name string
}

func newRegistry(t *testing.T) *registry.Types {
	r := registry.New()
	require.NoError(t, assetdb.Register(r))
	_, err := r.Register(reflect.TypeFor[Material](), registry.WithName("Material"))
	require.NoError(t, err)
	_, err = r.Register(reflect.TypeFor[Scene](), registry.WithName("Scene"))
	require.NoError(t, err)
	return r
}

func saved(t *testing.T, r *registry.Types, v any) *reflar.Archive {
	a := reflar.NewArchive(reflar.Options{Registry: r})
	require.NoError(t, reflar.Serialize(v, a))
	return a
}

type opener func(t *testing.T, dir string) assetdb.Database

var backends = map[string]opener{
	"dir": func(t *testing.T, dir string) assetdb.Database {
		d, err := assetdb.OpenDir(dir, assetdb.Options{})
		require.NoError(t, err)
		return d
	},
	"bolt": func(t *testing.T, dir string) assetdb.Database {
		d, err := assetdb.OpenBolt(filepath.Join(dir, "assets.db"), assetdb.Options{})
		require.NoError(t, err)
		return d
	},
}

func TestSaveLoad(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			r := newRegistry(t)
			db := open(t, t.TempDir())
			defer db.Close()

			mat := &Material{Asset: assetdb.NewAsset(), Shader: "pbr"}
			scene := &Scene{Asset: assetdb.NewAsset(), Name: "level1", Materials: []*Material{mat}, Main: mat}
			require.NoError(t, db.SaveArchive(saved(t, r, scene), "/scenes/level1"))

			p, err := db.PathOf(scene.GUID)
			require.NoError(t, err)
			require.Equal(t, "scenes/level1", p)

			a := reflar.NewArchive(reflar.Options{Registry: r})
			require.NoError(t, db.LoadArchive(a, "scenes/level1"))
			out := &Scene{}
			require.NoError(t, reflar.Deserialize(out, a))
			require.Equal(t, scene.GUID, out.GUID)
			require.Equal(t, "level1", out.Name)
			require.Same(t, out.Main, out.Materials[0])
			require.Equal(t, mat.GUID, out.Main.GUID)
		})
	}
}

func TestListAssets(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			r := newRegistry(t)
			db := open(t, t.TempDir())
			defer db.Close()

			paths := []string{"a", "mats/stone", "mats/wood", "mats/old/rust"}
			guids := map[string]uuid.UUID{}
			for _, p := range paths {
				m := &Material{Asset: assetdb.NewAsset(), Shader: p}
				guids[p] = m.GUID
				require.NoError(t, db.SaveArchive(saved(t, r, m), p))
			}

			all, err := db.ListAssets("", true)
			require.NoError(t, err)
			require.Len(t, all, 4)
			require.Equal(t, "a", all[0].Path)
			for _, info := range all {
				require.Equal(t, guids[info.Path], info.GUID)
				require.Equal(t, "Material", info.TypeName)
				require.NotZero(t, info.Checksum)
			}

			top, err := db.ListAssets("mats", false)
			require.NoError(t, err)
			require.Equal(t, []string{"mats/stone", "mats/wood"}, assetPaths(top))

			deep, err := db.ListAssets("/mats/", true)
			require.NoError(t, err)
			require.Equal(t, []string{"mats/old/rust", "mats/stone", "mats/wood"}, assetPaths(deep))

			none, err := db.ListAssets("missing", true)
			require.NoError(t, err)
			require.Empty(t, none)
		})
	}
}

func assetPaths(infos []assetdb.AssetInfo) []string {
	var out []string
	for _, info := range infos {
		out = append(out, info.Path)
	}
	return out
}

func TestChecksumMatchesStoredBytes(t *testing.T) {
	r := newRegistry(t)
	m := &Material{Asset: assetdb.NewAsset(), Shader: "unlit"}
	a := saved(t, r, m)
	data, err := reflar.MarshalBundle(a)
	require.NoError(t, err)

	info, err := assetdb.Inspect("m", data)
	require.NoError(t, err)
	require.Equal(t, xxhash.Sum64(data), info.Checksum)
	require.Equal(t, m.GUID, info.GUID)
}

func TestErrors(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			r := newRegistry(t)
			db := open(t, t.TempDir())
			defer db.Close()

			err := db.SaveArchive(saved(t, r, &Loose{Name: "x"}), "loose")
			require.ErrorIs(t, err, assetdb.ErrNoGUID)

			err = db.SaveArchive(saved(t, r, &Material{}), "nil-guid")
			require.ErrorIs(t, err, assetdb.ErrNoGUID)

			m := &Material{Asset: assetdb.NewAsset()}
			require.NoError(t, db.SaveArchive(saved(t, r, m), "one"))
			require.NoError(t, db.SaveArchive(saved(t, r, m), "one"))
			err = db.SaveArchive(saved(t, r, m), "two")
			require.ErrorIs(t, err, assetdb.ErrGUIDConflict)

			err = db.LoadArchive(reflar.NewArchive(reflar.Options{Registry: r}), "nowhere")
			require.ErrorIs(t, err, assetdb.ErrNotFound)
			_, err = db.PathOf(uuid.New())
			require.ErrorIs(t, err, assetdb.ErrNotFound)

			err = db.SaveArchive(saved(t, r, m), "/")
			require.ErrorIs(t, err, assetdb.ErrBadPath)
		})
	}
}

func TestReplacingAssetDropsOldGUID(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			r := newRegistry(t)
			db := open(t, t.TempDir())
			defer db.Close()

			first := &Material{Asset: assetdb.NewAsset()}
			second := &Material{Asset: assetdb.NewAsset()}
			require.NoError(t, db.SaveArchive(saved(t, r, first), "slot"))
			require.NoError(t, db.SaveArchive(saved(t, r, second), "slot"))

			_, err := db.PathOf(first.GUID)
			require.ErrorIs(t, err, assetdb.ErrNotFound)
			p, err := db.PathOf(second.GUID)
			require.NoError(t, err)
			require.Equal(t, "slot", p)
		})
	}
}

func TestReopen(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			r := newRegistry(t)
			dir := t.TempDir()
			db := open(t, dir)
			m := &Material{Asset: assetdb.NewAsset(), Shader: "toon"}
			require.NoError(t, db.SaveArchive(saved(t, r, m), "toon"))
			require.NoError(t, db.Close())

			db = open(t, dir)
			defer db.Close()
			p, err := db.PathOf(m.GUID)
			require.NoError(t, err)
			require.Equal(t, "toon", p)
		})
	}
}

func TestCompressedAssets(t *testing.T) {
	r := newRegistry(t)
	db, err := assetdb.OpenDir(t.TempDir(), assetdb.Options{})
	require.NoError(t, err)
	m := &Material{Asset: assetdb.NewAsset(), Shader: "compressed"}
	a := reflar.NewArchive(reflar.Options{Registry: r, Compress: true})
	require.NoError(t, reflar.Serialize(m, a))
	require.NoError(t, db.SaveArchive(a, "c"))

	b := reflar.NewArchive(reflar.Options{Registry: r})
	require.NoError(t, db.LoadArchive(b, "c"))
	require.True(t, b.Options().Compress)
	out := &Material{}
	require.NoError(t, reflar.Deserialize(out, b))
	require.Equal(t, *m, *out)
}
