package locationserver_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reside-ic/outpack-go/config"
	"github.com/reside-ic/outpack-go/internal/hash"
	httplocation "github.com/reside-ic/outpack-go/location/http"
	"github.com/reside-ic/outpack-go/locationserver"
	"github.com/reside-ic/outpack-go/packet"
	"github.com/reside-ic/outpack-go/root"
)

func newFileStoreRoot(t *testing.T) *root.Root {
	t.Helper()
	dir := t.TempDir()
	r, err := root.Init(dir, config.Options{UseFileStore: true})
	require.NoError(t, err)
	return r
}

func TestClientListsAndFetchesOverHTTP(t *testing.T) {
	upstream := newFileStoreRoot(t)

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "result.csv"), []byte("1,2,3\n"), 0o644))
	p, err := packet.New(upstream, src, "upstream", packet.Options{})
	require.NoError(t, err)
	_, err = p.End(true)
	require.NoError(t, err)

	srv := httptest.NewServer(locationserver.New(upstream))
	defer srv.Close()

	client := httplocation.New(srv.URL)
	ctx := context.Background()

	packets, err := client.ListPackets(ctx)
	require.NoError(t, err)
	require.Contains(t, packets, p.Id)

	metas, err := client.Metadata(ctx, []string{p.Id})
	require.NoError(t, err)
	require.Contains(t, metas, p.Id)

	dest := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, client.FetchFile(ctx, p.Metadata, p.Files[0], dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "1,2,3\n", string(data))
}

func TestClientPushesFileAndMetadataOverHTTP(t *testing.T) {
	upstream := newFileStoreRoot(t)
	downstream := newFileStoreRoot(t)

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("payload"), 0o644))
	p, err := packet.New(upstream, src, "data", packet.Options{})
	require.NoError(t, err)
	_, err = p.End(true)
	require.NoError(t, err)

	srv := httptest.NewServer(locationserver.New(downstream))
	defer srv.Close()

	client := httplocation.New(srv.URL)
	ctx := context.Background()

	missingPackets, err := client.ListUnknownPackets(ctx, []string{p.Id})
	require.NoError(t, err)
	assert.Equal(t, []string{p.Id}, missingPackets)

	h := p.Files[0].Hash
	missingFiles, err := client.ListUnknownFiles(ctx, []hash.Hash{h})
	require.NoError(t, err)
	require.Len(t, missingFiles, 1)

	blobPath, err := upstream.FindFileByHash(h, []string{p.Id})
	require.NoError(t, err)
	require.NoError(t, client.PushFile(ctx, blobPath, h))

	metaPath := filepath.Join(t.TempDir(), "meta")
	canon, err := p.Metadata.Canonical()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(metaPath, canon, 0o644))
	metaHash, err := p.Metadata.Hash(downstream.Config.Core.HashAlgorithm)
	require.NoError(t, err)
	require.NoError(t, client.PushMetadata(ctx, metaPath, metaHash))

	got, err := downstream.Index.Metadata(p.Id)
	require.NoError(t, err)
	assert.Equal(t, p.Id, got.Id)

	ids, err := downstream.Index.Unpacked()
	require.NoError(t, err)
	assert.Equal(t, []string{p.Id}, ids)
}

func TestClientChecksFileExistenceOverHTTP(t *testing.T) {
	upstream := newFileStoreRoot(t)

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("payload"), 0o644))
	p, err := packet.New(upstream, src, "data", packet.Options{})
	require.NoError(t, err)
	_, err = p.End(true)
	require.NoError(t, err)

	srv := httptest.NewServer(locationserver.New(upstream))
	defer srv.Close()

	client := httplocation.New(srv.URL)
	ctx := context.Background()

	exists, err := client.FileExists(ctx, p.Files[0].Hash)
	require.NoError(t, err)
	assert.True(t, exists)

	missing, err := hash.Bytes(upstream.Config.Core.HashAlgorithm, []byte("never pushed"))
	require.NoError(t, err)
	exists, err = client.FileExists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAccessLogRecordsRequests(t *testing.T) {
	upstream := newFileStoreRoot(t)

	var log bytes.Buffer
	srv := httptest.NewServer(locationserver.New(upstream).WithAccessLog(&log))
	defer srv.Close()

	client := httplocation.New(srv.URL)
	_, err := client.ListPackets(context.Background())
	require.NoError(t, err)

	assert.Contains(t, log.String(), "/packets")
}
