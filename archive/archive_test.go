package archive_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reside-ic/outpack-go/archive"
	"github.com/reside-ic/outpack-go/config"
	"github.com/reside-ic/outpack-go/filestore"
	"github.com/reside-ic/outpack-go/index"
	"github.com/reside-ic/outpack-go/internal/hash"
	"github.com/reside-ic/outpack-go/metadata"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func makeMeta(t *testing.T, idx *index.Index, id, name string, files map[string]string) *metadata.Core {
	t.Helper()
	meta := &metadata.Core{Id: id, Name: name, SchemaVersion: metadata.SchemaVersion}
	for path, contents := range files {
		h, err := hash.Bytes("sha256", []byte(contents))
		require.NoError(t, err)
		meta.Files = append(meta.Files, metadata.PacketFile{Path: path, Hash: h, Size: int64(len(contents))})
	}
	canonical, err := meta.Canonical()
	require.NoError(t, err)
	require.NoError(t, idx.WriteMetadata(id, canonical))

	metaHash, err := meta.Hash("sha256")
	require.NoError(t, err)
	require.NoError(t, idx.MarkKnown(config.ReservedLocal, id, &metadata.PacketLocation{Packet: id, Hash: metaHash}))

	reloaded, err := idx.Metadata(id)
	require.NoError(t, err)
	return reloaded
}

func TestImportPacketCopiesDeclaredFiles(t *testing.T) {
	root := t.TempDir()
	idx := index.New(root)
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "result.csv"), "a,b\n1,2\n")

	meta := makeMeta(t, idx, "20260101-000000-aaaaaaaa", "report", map[string]string{"result.csv": "a,b\n1,2\n"})

	a := archive.New(filepath.Join(root, ".outpack", "archive"), idx)
	dest, err := a.ImportPacket(meta, src)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, "result.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestImportPacketFromStoreCopiesDeclaredFiles(t *testing.T) {
	root := t.TempDir()
	idx := index.New(root)
	store := filestore.New(filepath.Join(root, ".outpack", "files"), "sha256")

	src := t.TempDir()
	path := filepath.Join(src, "data.txt")
	writeFile(t, path, "hello world")
	h, err := store.Put(path)
	require.NoError(t, err)

	meta := &metadata.Core{Id: "20260101-000000-bbbbbbbb", Name: "report",
		Files: []metadata.PacketFile{{Path: "data.txt", Hash: h, Size: 11}}}

	a := archive.New(filepath.Join(root, ".outpack", "archive"), idx)
	dest, err := a.ImportPacketFromStore(meta, store)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, "data.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestFindFilePrefersCandidatesThenFallsBackToUnpacked(t *testing.T) {
	root := t.TempDir()
	idx := index.New(root)
	a := archive.New(filepath.Join(root, ".outpack", "archive"), idx)

	src1 := t.TempDir()
	writeFile(t, filepath.Join(src1, "shared.txt"), "same-contents")
	meta1 := makeMeta(t, idx, "20260101-000000-cccccccc", "one", map[string]string{"shared.txt": "same-contents"})
	_, err := a.ImportPacket(meta1, src1)
	require.NoError(t, err)

	src2 := t.TempDir()
	writeFile(t, filepath.Join(src2, "shared.txt"), "same-contents")
	meta2 := makeMeta(t, idx, "20260101-000000-dddddddd", "two", map[string]string{"shared.txt": "same-contents"})
	_, err = a.ImportPacket(meta2, src2)
	require.NoError(t, err)

	want, err := hash.Bytes("sha256", []byte("same-contents"))
	require.NoError(t, err)

	path, err := a.FindFile(context.Background(), want, []string{meta2.Id})
	require.NoError(t, err)
	assert.Contains(t, path, meta2.Id)

	path, err = a.FindFile(context.Background(), want, nil)
	require.NoError(t, err)
	assert.True(t, path != "")
}

func TestFindFileErrorsWhenAbsent(t *testing.T) {
	root := t.TempDir()
	idx := index.New(root)
	a := archive.New(filepath.Join(root, ".outpack", "archive"), idx)

	missing, err := hash.Bytes("sha256", []byte("never written"))
	require.NoError(t, err)

	_, err = a.FindFile(context.Background(), missing, nil)
	require.Error(t, err)
}

func TestFindFileRejectsCorruptedArchiveCopy(t *testing.T) {
	root := t.TempDir()
	idx := index.New(root)
	a := archive.New(filepath.Join(root, ".outpack", "archive"), idx)

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "data.txt"), "original")
	meta := makeMeta(t, idx, "20260101-000000-eeeeeeee", "one", map[string]string{"data.txt": "original"})
	dest, err := a.ImportPacket(meta, src)
	require.NoError(t, err)

	// Corrupt the archived copy after import; FindFile must reject it
	// rather than trusting the declared hash.
	writeFile(t, filepath.Join(dest, "data.txt"), "tampered")

	want, err := hash.Bytes("sha256", []byte("original"))
	require.NoError(t, err)

	_, err = a.FindFile(context.Background(), want, nil)
	require.Error(t, err)
}
