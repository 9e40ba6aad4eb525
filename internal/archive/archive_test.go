// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// writeTar writes files (name → content) into a tar, gzipped when zipped.
func writeTar(t *testing.T, path string, zipped bool, files map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if zipped {
		gz = gzip.NewWriter(f)
		w = gz
	}
	tw := tar.NewWriter(w)
	for name, data := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(data)), Typeflag: tar.TypeReg}))
		_, err := tw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	if gz != nil {
		require.NoError(t, gz.Close())
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.tar", "a.tar.gz", "c.tgz", "._b.tar", "notes.txt", "loose.gz"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	for _, name := range []string{"d_dump", "b" + ExtractSuffix, ".extract-123"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, name), 0o755))
	}

	got, err := List(dir)
	require.NoError(t, err)

	var names []string
	var kinds []Kind
	for _, a := range got {
		names = append(names, a.Name)
		kinds = append(kinds, a.Kind)
	}
	assert.Equal(t, []string{"a.tar.gz", "b.tar", "c.tgz", "d_dump"}, names)
	assert.Equal(t, []Kind{KindTarGz, KindTar, KindTarGz, KindDir}, kinds)

	_, err = List(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRoot(t *testing.T) {
	tests := []struct {
		a    Archive
		want string
	}{
		{Archive{Name: "x.tar", Path: "in/x.tar", Kind: KindTar}, filepath.Join("in", "x"+ExtractSuffix)},
		{Archive{Name: "x.tar.gz", Path: "in/x.tar.gz", Kind: KindTarGz}, filepath.Join("in", "x"+ExtractSuffix)},
		{Archive{Name: "x.tgz", Path: "in/x.tgz", Kind: KindTarGz}, filepath.Join("in", "x"+ExtractSuffix)},
		{Archive{Name: "x", Path: "in/x", Kind: KindDir}, "in/x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.a.Root(), tt.a.Name)
	}
}

func TestMembersFromTarGz(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.tar.gz")
	writeTar(t, path, true, map[string][]byte{
		"part/2.gz":     gzipBytes(t, "two\n"),
		"part/1.gz":     gzipBytes(t, "one\n"),
		"part/._1.gz":   []byte("appledouble"),
		"part/note.txt": []byte("skip"),
	})

	a := Archive{Name: "dump.tar.gz", Path: path, Kind: KindTarGz}
	members, err := a.Members(".gz")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "part/1.gz", members[0].Name)
	assert.Equal(t, "part/2.gz", members[1].Name)
	assert.DirExists(t, filepath.Join(dir, "dump"+ExtractSuffix))

	rc, err := members[0].Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "one\n", string(data))
}

func TestMembersReusesExtraction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.tar")
	writeTar(t, path, false, map[string][]byte{"1.gz": gzipBytes(t, "x")})

	root := filepath.Join(dir, "dump"+ExtractSuffix)
	require.NoError(t, os.Mkdir(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "existing.gz"), gzipBytes(t, "y"), 0o644))

	members, err := Archive{Name: "dump.tar", Path: path, Kind: KindTar}.Members(".gz")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "existing.gz", members[0].Name)
}

func TestMembersRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evil.tar")
	writeTar(t, path, false, map[string][]byte{"../outside.gz": gzipBytes(t, "x")})

	_, err := Archive{Name: "evil.tar", Path: path, Kind: KindTar}.Members(".gz")
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "outside.gz"))
	assert.NoDirExists(t, filepath.Join(dir, "evil"+ExtractSuffix))
}

func TestMemberOpenPlainAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("plain"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.gz"), []byte("not gzip"), 0o644))

	rc, err := Member{Name: "a.json", Path: filepath.Join(dir, "a.json")}.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "plain", string(data))

	_, err = Member{Name: "b.gz", Path: filepath.Join(dir, "b.gz")}.Open()
	assert.Error(t, err)
}
