package path_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reside-ic/outpack-go/config"
	locationpath "github.com/reside-ic/outpack-go/location/path"
	"github.com/reside-ic/outpack-go/packet"
	"github.com/reside-ic/outpack-go/root"
)

func archivePath(s string) *string { return &s }

func TestDriverListsAndFetchesFromAnotherRoot(t *testing.T) {
	upstream, err := root.Init(t.TempDir(), config.Options{PathArchive: archivePath("archive")})
	require.NoError(t, err)

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "result.csv"), []byte("1,2,3\n"), 0o644))
	p, err := packet.New(upstream, src, "upstream", packet.Options{})
	require.NoError(t, err)
	_, err = p.End(true)
	require.NoError(t, err)

	d := locationpath.New(upstream)
	ctx := context.Background()
	require.NoError(t, d.Open(ctx))
	defer d.Close()

	packets, err := d.ListPackets(ctx)
	require.NoError(t, err)
	require.Contains(t, packets, p.Id)

	metas, err := d.Metadata(ctx, []string{p.Id})
	require.NoError(t, err)
	require.Contains(t, metas, p.Id)

	dest := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, d.FetchFile(ctx, p.Metadata, p.Files[0], dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "1,2,3\n", string(data))
}

func TestDriverMetadataFailsForUnknownId(t *testing.T) {
	upstream, err := root.Init(t.TempDir(), config.Options{UseFileStore: true})
	require.NoError(t, err)

	d := locationpath.New(upstream)
	_, err = d.Metadata(context.Background(), []string{"20200101-000000-aaaaaaaa"})
	require.Error(t, err)
}

func TestDriverPushOperationsAreNotImplemented(t *testing.T) {
	upstream, err := root.Init(t.TempDir(), config.Options{UseFileStore: true})
	require.NoError(t, err)

	d := locationpath.New(upstream)
	ctx := context.Background()
	_, err = d.ListUnknownPackets(ctx, nil)
	require.Error(t, err)
	_, err = d.ListUnknownFiles(ctx, nil)
	require.Error(t, err)
	require.Error(t, d.PushFile(ctx, "", ""))
	require.Error(t, d.PushMetadata(ctx, "", ""))
}
