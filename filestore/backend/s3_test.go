package backend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reside-ic/outpack-go/filestore/backend"
)

func TestNewS3BackendBuildsClientWithoutNetworkAccess(t *testing.T) {
	b, err := backend.NewS3Backend(backend.S3Config{Bucket: "outpack-mirror", Prefix: "store", Region: "us-east-1"})
	require.NoError(t, err)
	require.NotNil(t, b)

	var _ backend.Backend = b
}

func TestNewS3BackendAllowsEmptyRegion(t *testing.T) {
	_, err := backend.NewS3Backend(backend.S3Config{Bucket: "outpack-mirror"})
	assert.NoError(t, err)
}
