package push_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reside-ic/outpack-go/config"
	"github.com/reside-ic/outpack-go/location"
	_ "github.com/reside-ic/outpack-go/location/http"
	"github.com/reside-ic/outpack-go/locationserver"
	"github.com/reside-ic/outpack-go/packet"
	"github.com/reside-ic/outpack-go/push"
	"github.com/reside-ic/outpack-go/root"
)

func newFileStoreRoot(t *testing.T) *root.Root {
	t.Helper()
	r, err := root.Init(t.TempDir(), config.Options{UseFileStore: true})
	require.NoError(t, err)
	return r
}

// startRemote serves remote over HTTP and registers it as a location named
// "remote" on local; the server is closed when the test ends.
func startRemote(t *testing.T, local, remote *root.Root) {
	t.Helper()
	srv := httptest.NewServer(locationserver.New(remote))
	t.Cleanup(srv.Close)
	require.NoError(t, location.Add(local, "remote", "http", map[string]string{"url": srv.URL}))
}

func writePacket(t *testing.T, r *root.Root, name string, contents map[string]string) string {
	t.Helper()
	src := t.TempDir()
	for path, data := range contents {
		require.NoError(t, os.WriteFile(filepath.Join(src, path), []byte(data), 0o644))
	}
	p, err := packet.New(r, src, name, packet.Options{})
	require.NoError(t, err)
	_, err = p.End(true)
	require.NoError(t, err)
	return p.Id
}

func TestPushSendsMissingPacketAndFiles(t *testing.T) {
	local := newFileStoreRoot(t)
	id := writePacket(t, local, "data", map[string]string{"result.csv": "1,2,3\n"})

	remote := newFileStoreRoot(t)
	startRemote(t, local, remote)

	plan, err := push.Packets(context.Background(), local, []string{id}, "remote")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, plan.Packets)
	assert.Len(t, plan.Files, 1)

	remoteMeta, err := remote.Index.Metadata(id)
	require.NoError(t, err)
	assert.Equal(t, "data", remoteMeta.Name)

	ls, err := remote.Files.Ls()
	require.NoError(t, err)
	assert.Len(t, ls, 1)

	members, err := remote.Index.Location(config.ReservedLocal)
	require.NoError(t, err)
	assert.Contains(t, members, id)
}

func TestPushTwiceOnlySendsOnce(t *testing.T) {
	local := newFileStoreRoot(t)
	id := writePacket(t, local, "data", map[string]string{"x": "1"})

	remote := newFileStoreRoot(t)
	startRemote(t, local, remote)

	plan, err := push.Packets(context.Background(), local, []string{id}, "remote")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, plan.Packets)

	plan2, err := push.Packets(context.Background(), local, []string{id}, "remote")
	require.NoError(t, err)
	assert.Empty(t, plan2.Packets)
	assert.Empty(t, plan2.Files)
}

func TestPushIncludesDependencies(t *testing.T) {
	local := newFileStoreRoot(t)

	srcA := t.TempDir()
	pa, err := packet.New(local, srcA, "a", packet.Options{})
	require.NoError(t, err)
	_, err = pa.End(true)
	require.NoError(t, err)

	srcB := t.TempDir()
	pb, err := packet.New(local, srcB, "b", packet.Options{})
	require.NoError(t, err)
	require.NoError(t, pb.UseDependency(pa.Id, map[string]string{}))
	_, err = pb.End(true)
	require.NoError(t, err)

	remote := newFileStoreRoot(t)
	startRemote(t, local, remote)

	plan, err := push.Packets(context.Background(), local, []string{pb.Id}, "remote")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{pa.Id, pb.Id}, plan.Packets)

	_, err = remote.Index.Metadata(pa.Id)
	require.NoError(t, err)
}

func TestPushUnknownLocationErrors(t *testing.T) {
	local := newFileStoreRoot(t)
	id := writePacket(t, local, "data", map[string]string{"x": "1"})

	_, err := push.Packets(context.Background(), local, []string{id}, "nope")
	require.Error(t, err)
}
