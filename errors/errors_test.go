package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	outpackerr "github.com/reside-ic/outpack-go/errors"
)

func TestNewConfigurationErrorFormatsMessage(t *testing.T) {
	err := outpackerr.NewConfigurationError("no store or archive configured for '%s'", "/tmp/repo")
	assert.Equal(t, "no store or archive configured for '/tmp/repo'", err.Error())
}

func TestNotFoundErrorIncludesKindAndHint(t *testing.T) {
	err := &outpackerr.NotFoundError{Kind: outpackerr.NotFoundLocation, Name: "upstream", Hint: "did you mean 'local'?"}
	assert.Equal(t, "unknown location: 'upstream'. did you mean 'local'?", err.Error())
}

func TestNotFoundErrorWithoutHintOmitsTrailer(t *testing.T) {
	err := &outpackerr.NotFoundError{Kind: outpackerr.NotFoundPacket, Name: "20260101-000000-aaaaaaaa"}
	assert.Equal(t, "unknown packet: '20260101-000000-aaaaaaaa'", err.Error())
}

func TestPacketNotFoundErrorReportsMissingDependencyCount(t *testing.T) {
	err := &outpackerr.PacketNotFoundError{Id: "20260101-000000-aaaaaaaa", Locations: []string{"src"}, MissingDepends: 2}
	assert.Contains(t, err.Error(), "not found at any configured location")
	assert.Contains(t, err.Error(), "(2 dependencies are also missing)")
}

func TestPacketNotFoundErrorOmitsCountWhenZero(t *testing.T) {
	err := &outpackerr.PacketNotFoundError{Id: "20260101-000000-aaaaaaaa", Locations: []string{"src"}}
	assert.NotContains(t, err.Error(), "dependencies are also missing")
}

func TestPacketNotFoundErrorIncludesSearchedLocation(t *testing.T) {
	err := &outpackerr.PacketNotFoundError{Id: "20260101-000000-aaaaaaaa", Locations: []string{"src"}}
	assert.Contains(t, err.Error(), "'20260101-000000-aaaaaaaa' not found at any configured location")
	assert.Contains(t, err.Error(), "Looked in location 'src'")
	assert.Contains(t, err.Error(), "Do you need to run pull_metadata?")
}

func TestPacketNotFoundErrorJoinsMultipleLocations(t *testing.T) {
	err := &outpackerr.PacketNotFoundError{Id: "20260101-000000-aaaaaaaa", Locations: []string{"src", "other"}}
	assert.Contains(t, err.Error(), "Looked in location 'src', 'other'")
}

func TestConflictingMetadataErrorJoinsIds(t *testing.T) {
	err := &outpackerr.ConflictingMetadataError{Location: "upstream", Ids: []string{"a", "b"}}
	assert.Contains(t, err.Error(), "location 'upstream' has conflicting metadata for: 'a', 'b'")
}

func TestSentinelsAreDistinctAndMatchViaErrorsIs(t *testing.T) {
	assert.True(t, errors.Is(outpackerr.ErrPacketAlreadyEnded, outpackerr.ErrPacketAlreadyEnded))
	assert.False(t, errors.Is(outpackerr.ErrPacketAlreadyEnded, outpackerr.ErrRecursionRequired))
}

func TestNotFoundErrorSupportsErrorsAs(t *testing.T) {
	var err error = &outpackerr.NotFoundError{Kind: outpackerr.NotFoundHash, Name: "sha256:deadbeef"}
	var target *outpackerr.NotFoundError
	require := assert.New(t)
	require.True(errors.As(err, &target))
	require.Equal(outpackerr.NotFoundHash, target.Kind)
}

func TestUnsupportedLocationProtocolErrorNamesScheme(t *testing.T) {
	err := &outpackerr.UnsupportedLocationProtocolError{Scheme: "ftp"}
	assert.Equal(t, "unsupported location protocol: 'ftp'", err.Error())
}
