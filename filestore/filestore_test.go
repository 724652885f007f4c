package filestore_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reside-ic/outpack-go/filestore"
	"github.com/reside-ic/outpack-go/internal/hash"
)

// fakeBackend is an in-memory backend.Backend, standing in for S3Backend so
// mirror behaviour can be tested without the network.
type fakeBackend struct {
	objects map[string][]byte
	puts    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{objects: map[string][]byte{}}
}

func (b *fakeBackend) Put(key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.objects[key] = data
	b.puts++
	return nil
}

func (b *fakeBackend) Get(key string) (io.ReadCloser, error) {
	data, ok := b.objects[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBackend) Exists(key string) (bool, error) {
	_, ok := b.objects[key]
	return ok, nil
}

func TestPutGetRoundtrip(t *testing.T) {
	dir := t.TempDir()
	fs := filestore.New(filepath.Join(dir, "store"), "sha256")

	src := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	h, err := fs.Put(src)
	require.NoError(t, err)
	assert.True(t, fs.Exists(h))

	dest := filepath.Join(dir, "out.txt")
	require.NoError(t, fs.Get(h, dest, false))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// source file is left in place
	_, err = os.Stat(src)
	assert.NoError(t, err)
}

func TestPutIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	fs := filestore.New(filepath.Join(dir, "store"), "sha256")

	src := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	h1, err := fs.Put(src)
	require.NoError(t, err)
	h2, err := fs.Put(src)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestGetMissingFails(t *testing.T) {
	dir := t.TempDir()
	fs := filestore.New(filepath.Join(dir, "store"), "sha256")

	h, err := hash.Bytes("sha256", []byte("nope"))
	require.NoError(t, err)
	err = fs.Get(h, filepath.Join(dir, "out"), false)
	require.Error(t, err)
}

func TestLsListsStoredHashes(t *testing.T) {
	dir := t.TempDir()
	fs := filestore.New(filepath.Join(dir, "store"), "sha256")

	src := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))
	h, err := fs.Put(src)
	require.NoError(t, err)

	ls, err := fs.Ls()
	require.NoError(t, err)
	require.Len(t, ls, 1)
	assert.Equal(t, h, ls[0])
}

func TestPutMirrorsNewBlobToBackend(t *testing.T) {
	dir := t.TempDir()
	mirror := newFakeBackend()
	fs := filestore.New(filepath.Join(dir, "store"), "sha256").WithBackend(mirror)

	src := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	h, err := fs.Put(src)
	require.NoError(t, err)
	exists, err := mirror.Exists(string(h))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, mirror.puts)

	// a second Put of the same content does not re-upload
	_, err = fs.Put(src)
	require.NoError(t, err)
	assert.Equal(t, 1, mirror.puts)
}

func TestGetFallsBackToMirrorAndRepopulatesLocalStore(t *testing.T) {
	dir := t.TempDir()
	mirror := newFakeBackend()
	h, err := hash.Bytes("sha256", []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, mirror.Put(string(h), bytes.NewReader([]byte("hello")), 5))

	fs := filestore.New(filepath.Join(dir, "store"), "sha256").WithBackend(mirror)
	assert.False(t, fs.Exists(h))

	dest := filepath.Join(dir, "out.txt")
	require.NoError(t, fs.Get(h, dest, false))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// the local store is repopulated, so a second Get needs no mirror fetch
	assert.True(t, fs.Exists(h))
}

func TestGetFailsWhenAbsentFromBothLocalAndMirror(t *testing.T) {
	dir := t.TempDir()
	fs := filestore.New(filepath.Join(dir, "store"), "sha256").WithBackend(newFakeBackend())

	h, err := hash.Bytes("sha256", []byte("nope"))
	require.NoError(t, err)
	err = fs.Get(h, filepath.Join(dir, "out"), false)
	require.Error(t, err)
}

func TestFilenameLayoutUsesFirstTwoHexChars(t *testing.T) {
	dir := t.TempDir()
	fs := filestore.New(filepath.Join(dir, "store"), "sha256")
	h, err := hash.Bytes("sha256", []byte("hello"))
	require.NoError(t, err)
	want := filepath.Join(dir, "store", h.Encoded()[:2], h.Encoded()[2:])
	assert.Equal(t, want, fs.Filename(h))
}
