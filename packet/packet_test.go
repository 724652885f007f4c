package packet_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reside-ic/outpack-go/config"
	"github.com/reside-ic/outpack-go/packet"
	"github.com/reside-ic/outpack-go/root"
)

func archivePath(s string) *string { return &s }

func newRoot(t *testing.T) *root.Root {
	t.Helper()
	dir := t.TempDir()
	r, err := root.Init(dir, config.Options{PathArchive: archivePath("archive")})
	require.NoError(t, err)
	return r
}

func TestSimplePacketIsCanonical(t *testing.T) {
	r := newRoot(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a"), []byte("hello"), 0o644))

	p, err := packet.New(r, src, "data", packet.Options{})
	require.NoError(t, err)
	_, err = p.End(true)
	require.NoError(t, err)

	assert.Equal(t, "data", p.Name)
	assert.Empty(t, p.Depends)
	require.Len(t, p.Files, 1)
	assert.Equal(t, "a", p.Files[0].Path)

	ids, err := r.Index.Unpacked()
	require.NoError(t, err)
	assert.Equal(t, []string{p.Id}, ids)

	archived := filepath.Join(r.Path, "archive", "data", p.Id, "a")
	_, err = os.Stat(archived)
	assert.NoError(t, err)
}

func TestPacketToFileStoreOnly(t *testing.T) {
	dir := t.TempDir()
	r, err := root.Init(dir, config.Options{UseFileStore: true})
	require.NoError(t, err)

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b"), []byte("goodbye"), 0o644))

	p, err := packet.New(r, src, "data", packet.Options{})
	require.NoError(t, err)
	_, err = p.End(true)
	require.NoError(t, err)
	assert.Len(t, p.Files, 2)

	ls, err := r.Files.Ls()
	require.NoError(t, err)
	assert.Len(t, ls, 2)
}

func TestCannotEndTwice(t *testing.T) {
	r := newRoot(t)
	src := t.TempDir()
	p, err := packet.New(r, src, "data", packet.Options{})
	require.NoError(t, err)
	_, err = p.End(true)
	require.NoError(t, err)
	_, err = p.End(true)
	require.Error(t, err)
}

func TestCancelledPacketLeavesRootUntouched(t *testing.T) {
	r := newRoot(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a"), []byte("hello"), 0o644))

	p, err := packet.New(r, src, "data", packet.Options{})
	require.NoError(t, err)
	_, err = p.End(false)
	require.NoError(t, err)

	ids, err := r.Index.Unpacked()
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = os.Stat(filepath.Join(src, "outpack.json"))
	assert.NoError(t, err)
}

func TestCustomMetadataCannotBeSetTwice(t *testing.T) {
	r := newRoot(t)
	src := t.TempDir()
	p, err := packet.New(r, src, "data", packet.Options{})
	require.NoError(t, err)

	require.NoError(t, p.AddCustomMetadata("myapp", map[string]interface{}{"a": 1.0}))
	err = p.AddCustomMetadata("myapp", map[string]interface{}{"a": 1.0})
	require.Error(t, err)
}

func TestMarkFileImmutableDetectsChange(t *testing.T) {
	r := newRoot(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "data.csv"), []byte("a,b\n1,2\n3,4\n"), 0o644))

	p, err := packet.New(r, src, "data", packet.Options{})
	require.NoError(t, err)
	require.NoError(t, p.MarkFileImmutable("data.csv"))

	require.NoError(t, os.WriteFile(filepath.Join(src, "data.csv"), []byte("a,b\n1,2\n3,4\n5,6\n"), 0o644))
	_, err = p.End(true)
	require.Error(t, err)
}

func TestMarkFileImmutableUnchangedSucceeds(t *testing.T) {
	r := newRoot(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "data.csv"), []byte("a,b\n1,2\n3,4\n"), 0o644))

	p, err := packet.New(r, src, "data", packet.Options{})
	require.NoError(t, err)
	require.NoError(t, p.MarkFileImmutable("data.csv"))

	_, err = p.End(true)
	require.NoError(t, err)
	require.Len(t, p.Files, 1)
	assert.Equal(t, "data.csv", p.Files[0].Path)
}

func TestUseDependencyCopiesFilesAndRecordsDepends(t *testing.T) {
	r := newRoot(t)

	src1 := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src1, "result.csv"), []byte("1,2,3\n"), 0o644))
	p1, err := packet.New(r, src1, "upstream", packet.Options{})
	require.NoError(t, err)
	_, err = p1.End(true)
	require.NoError(t, err)

	src2 := t.TempDir()
	p2, err := packet.New(r, src2, "downstream", packet.Options{})
	require.NoError(t, err)
	require.NoError(t, p2.UseDependency("latest", map[string]string{"input.csv": "result.csv"}))

	data, err := os.ReadFile(filepath.Join(src2, "input.csv"))
	require.NoError(t, err)
	assert.Equal(t, "1,2,3\n", string(data))

	_, err = p2.End(true)
	require.NoError(t, err)
	require.Len(t, p2.Depends, 1)
	assert.Equal(t, p1.Id, p2.Depends[0].Packet)
}
