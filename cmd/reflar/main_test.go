package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/reflar"
	"github.com/rawbytedev/reflar/pkg/assetdb"
	"github.com/rawbytedev/reflar/pkg/document"
	"github.com/rawbytedev/reflar/pkg/registry"
)

type Prop struct {
	assetdb.Asset
	Label string
	Blob  []byte
}

func writeProp(t *testing.T, path string) *Prop {
	r := registry.New()
	require.NoError(t, assetdb.Register(r))
	_, err := registry.Register[Prop](r, registry.WithName("Prop"))
	require.NoError(t, err)
	p := &Prop{Asset: assetdb.NewAsset(), Label: "crate", Blob: []byte("wood")}
	a := reflar.NewArchive(reflar.Options{Registry: r, Format: document.JSON})
	require.NoError(t, reflar.Serialize(p, a))
	require.NoError(t, reflar.SaveToFile(a, path))
	return p
}

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crate.rfa")
	p := writeProp(t, path)

	var out, errOut bytes.Buffer
	require.NoError(t, run([]string{"inspect", path}, &out, &errOut))
	require.Contains(t, out.String(), "format:   json")
	require.Contains(t, out.String(), "main:     Prop")
	require.Contains(t, out.String(), "extra:    4 bytes")
	require.Contains(t, out.String(), p.GUID.String())
	require.Contains(t, out.String(), "Prop::Label")
	require.Contains(t, out.String(), "crate")
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "crate.rfa")
	out := filepath.Join(dir, "crate.mp.rfa")
	writeProp(t, in)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"convert", "-to", "msgpack", "-zstd", in, out}, &stdout, &stderr))

	a, err := reflar.LoadFromFile(out, reflar.Options{})
	require.NoError(t, err)
	require.Equal(t, document.MsgPack, a.Options().Format)
	require.True(t, a.Options().Compress)
	name, err := a.MainType()
	require.NoError(t, err)
	require.Equal(t, "Prop", name)
	require.Equal(t, 4, a.Extra().Len())
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "props"), 0o755))
	p := writeProp(t, filepath.Join(dir, "props", "crate"+assetdb.Extension))

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"ls", "-db", dir}, &stdout, &stderr))
	require.NotContains(t, stdout.String(), "props/crate")

	stdout.Reset()
	require.NoError(t, run([]string{"ls", "-db", dir, "-r"}, &stdout, &stderr))
	require.Contains(t, stdout.String(), "props/crate")
	require.Contains(t, stdout.String(), p.GUID.String())

	stdout.Reset()
	require.NoError(t, run([]string{"ls", "-db", dir, "props"}, &stdout, &stderr))
	require.Contains(t, stdout.String(), "props/crate")
}

func TestUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.ErrorIs(t, run(nil, &stdout, &stderr), errUsage)
	require.Error(t, run([]string{"bogus"}, &stdout, &stderr))
	require.Error(t, run([]string{"-profile", "disk", "inspect", "x"}, &stdout, &stderr))
	require.Error(t, run([]string{"convert", "-to", "xml", "a", "b"}, &stdout, &stderr))
}
