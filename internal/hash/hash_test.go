package hash_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reside-ic/outpack-go/internal/hash"
)

func TestBytesAndParseRoundtrip(t *testing.T) {
	h, err := hash.Bytes("sha256", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", string(h))

	parsed, err := hash.Parse(string(h))
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestParseRejectsUppercase(t *testing.T) {
	_, err := hash.Parse("SHA256:2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824")
	require.Error(t, err)
}

func TestParseRejectsUnsupportedAlgorithm(t *testing.T) {
	_, err := hash.Parse("md5:d41d8cd98f00b204e9800998ecf8427e")
	require.Error(t, err)
}

func TestFileMatchesBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	hFile, err := hash.File("sha256", path)
	require.NoError(t, err)
	hBytes, err := hash.Bytes("sha256", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, hBytes, hFile)
}

func TestValidateStringMismatch(t *testing.T) {
	expected, err := hash.Bytes("sha256", []byte("hello"))
	require.NoError(t, err)

	err = hash.ValidateString("goodbye", expected, "metadata for 'x' from 'y'")
	require.Error(t, err)
	var mismatch *hash.MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Contains(t, err.Error(), "metadata for 'x' from 'y'")
}

func TestValidateStringMatch(t *testing.T) {
	expected, err := hash.Bytes("sha256", []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, hash.ValidateString("hello", expected, "irrelevant"))
}
