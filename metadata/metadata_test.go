package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reside-ic/outpack-go/internal/hash"
	"github.com/reside-ic/outpack-go/metadata"
)

func sampleCore(t *testing.T) *metadata.Core {
	t.Helper()
	h, err := hash.Bytes("sha256", []byte("hello"))
	require.NoError(t, err)
	return &metadata.Core{
		SchemaVersion: "0.1.1",
		Id:            "20240101-000000-abcdef01",
		Name:          "data",
		Parameters:    map[string]interface{}{"b": 1.0, "a": "x"},
		Time:          metadata.TimeRange{Start: 1.0, End: 2.0},
		Files:         []metadata.PacketFile{{Path: "b", Hash: h, Size: 5}, {Path: "a", Hash: h, Size: 5}},
		Depends:       []metadata.Dependency{},
	}
}

func TestCanonicalIsKeySortedAndCompact(t *testing.T) {
	m := sampleCore(t)
	data, err := m.Canonical()
	require.NoError(t, err)

	s := string(data)
	assert.NotContains(t, s, " ")
	assert.NotContains(t, s, "\n")
	// parameters map keys must be sorted: "a" before "b"
	assert.Less(t, indexOf(s, `"a":"x"`), indexOf(s, `"b":1`))
	// top level keys sorted: "custom" key omitted (empty), "depends" before "files"
	assert.Less(t, indexOf(s, `"depends"`), indexOf(s, `"files"`))
}

func TestCanonicalSortsFilesByPath(t *testing.T) {
	m := sampleCore(t)
	data, err := m.Canonical()
	require.NoError(t, err)
	s := string(data)
	assert.Less(t, indexOf(s, `"path":"a"`), indexOf(s, `"path":"b"`))
}

func TestRoundTrip(t *testing.T) {
	m := sampleCore(t)
	data, err := m.Canonical()
	require.NoError(t, err)

	parsed, err := metadata.Parse(data)
	require.NoError(t, err)

	data2, err := parsed.Canonical()
	require.NoError(t, err)
	assert.Equal(t, data, data2)
}

func TestHashIsStableUnderFieldOrder(t *testing.T) {
	m := sampleCore(t)
	h1, err := m.Hash("sha256")
	require.NoError(t, err)

	// Reordering files in memory should not affect the canonical hash,
	// because Canonical() always sorts by path.
	m.Files[0], m.Files[1] = m.Files[1], m.Files[0]
	h2, err := m.Hash("sha256")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
