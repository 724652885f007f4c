package search_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reside-ic/outpack-go/index"
	"github.com/reside-ic/outpack-go/metadata"
	"github.com/reside-ic/outpack-go/search"
)

func addPacket(t *testing.T, idx *index.Index, id, name string, params map[string]interface{}) {
	t.Helper()
	m := &metadata.Core{
		Id:            id,
		Name:          name,
		SchemaVersion: metadata.SchemaVersion,
		Parameters:    params,
		Depends:       []metadata.Dependency{},
		Files:         []metadata.PacketFile{},
	}
	canon, err := m.Canonical()
	require.NoError(t, err)
	require.NoError(t, idx.WriteMetadata(id, canon))
	h, err := m.Hash("sha256")
	require.NoError(t, err)
	require.NoError(t, idx.MarkKnown("local", id, &metadata.PacketLocation{Packet: id, Hash: h, Time: 1}))
}

func TestLatestPicksLexicographicMax(t *testing.T) {
	dir := t.TempDir()
	idx := index.New(dir)
	addPacket(t, idx, "20220101-000000-aaaaaaaa", "data", nil)
	addPacket(t, idx, "20220102-000000-bbbbbbbb", "data", nil)

	got, err := search.Resolve(idx, "latest", search.Local)
	require.NoError(t, err)
	assert.Equal(t, "20220102-000000-bbbbbbbb", got)
}

func TestLatestWithParameterFilter(t *testing.T) {
	dir := t.TempDir()
	idx := index.New(dir)
	addPacket(t, idx, "20220101-000000-aaaaaaaa", "data", map[string]interface{}{"x": 1.0})
	addPacket(t, idx, "20220102-000000-bbbbbbbb", "data", map[string]interface{}{"x": 2.0})

	got, err := search.Resolve(idx, `latest(parameter:x == 1)`, search.Local)
	require.NoError(t, err)
	assert.Equal(t, "20220101-000000-aaaaaaaa", got)
}

func TestLiteralIdMustExist(t *testing.T) {
	dir := t.TempDir()
	idx := index.New(dir)
	addPacket(t, idx, "20220101-000000-aaaaaaaa", "data", nil)

	got, err := search.Resolve(idx, "20220101-000000-aaaaaaaa", search.Local)
	require.NoError(t, err)
	assert.Equal(t, "20220101-000000-aaaaaaaa", got)

	_, err = search.Resolve(idx, "20220101-000000-cccccccc", search.Local)
	require.Error(t, err)
}

func TestLatestFailsOnEmptyUniverse(t *testing.T) {
	dir := t.TempDir()
	idx := index.New(dir)
	_, err := search.Resolve(idx, "latest", search.Local)
	require.Error(t, err)
}

func TestInvalidQuerySyntaxFails(t *testing.T) {
	dir := t.TempDir()
	idx := index.New(dir)
	_, err := search.Resolve(idx, "not a query", search.Local)
	require.Error(t, err)
}
