// Package errors collects the taxonomy of error conditions a caller of the
// repository engine needs to distinguish, per the error handling design:
// plain sentinels for conditions with no payload, typed structs for those
// that carry data. Callers use errors.Is/errors.As (stdlib) against these,
// following the flat, no-framework style of distribution's own errors.go.
package errors

import (
	"fmt"
	"strings"
)

// Sentinel errors for lifecycle misuse and usage mistakes that carry no
// useful payload beyond their message.
var (
	// ErrPacketAlreadyEnded is returned by a second call to Packet.End.
	ErrPacketAlreadyEnded = fmt.Errorf("packet has already ended")

	// ErrMultipleDescriptionCalls is returned when a packet's description
	// is set more than once.
	ErrMultipleDescriptionCalls = fmt.Errorf("description has already been set for this packet")

	// ErrRecursionRequired is returned when a non-recursive pull is
	// requested on a repository configured with require_complete_tree.
	ErrRecursionRequired = fmt.Errorf("pull must be recursive because the repository requires a complete tree")
)

// ConfigurationError covers a repository that cannot be opened or operated
// on because of how it (or a request against it) is configured: missing
// .outpack directory, neither store nor archive configured, illegal use of
// a reserved location name.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// NewConfigurationError constructs a ConfigurationError with a formatted
// message.
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundKind distinguishes the different things a NotFoundError can be
// about, so callers that care can switch on it without string matching.
type NotFoundKind string

const (
	NotFoundLocation NotFoundKind = "location"
	NotFoundPacket   NotFoundKind = "packet"
	NotFoundHash     NotFoundKind = "hash"
	NotFoundFile     NotFoundKind = "file"
)

// NotFoundError reports that some named thing the caller asked for does not
// exist: an unknown location, packet, hash, or file within a packet.
type NotFoundError struct {
	Kind NotFoundKind
	Name string
	Hint string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("unknown %s: '%s'", e.Kind, e.Name)
	if e.Hint != "" {
		msg += ". " + e.Hint
	}
	return msg
}

// DuplicateCustomKeyError reports a second outpack_custom_metadata call for
// a namespace that was already set on a packet.
type DuplicateCustomKeyError struct {
	Namespace string
}

func (e *DuplicateCustomKeyError) Error() string {
	return fmt.Sprintf("custom metadata for '%s' has already been set", e.Namespace)
}

// ImmutableFileChangedError reports that a file marked immutable during a
// packet's life had a different hash at finalize time than when it was
// marked.
type ImmutableFileChangedError struct {
	Path string
}

func (e *ImmutableFileChangedError) Error() string {
	return fmt.Sprintf("file was changed after being added: '%s'", e.Path)
}

// MetadataHashMismatchError is raised during pull_metadata when a location's
// reported hash for a packet does not match the hash of the metadata bytes
// it actually served.
type MetadataHashMismatchError struct {
	PacketID string
	Location string
}

func (e *MetadataHashMismatchError) Error() string {
	return fmt.Sprintf(
		"hash of metadata for '%s' from '%s' does not match. "+
			"This is bad news: the location is sending data that does not "+
			"match the hash it reports for it. You may want to remove this "+
			"location from your configuration.",
		e.PacketID, e.Location)
}

// ConflictingMetadataError is raised during pull_metadata when a location
// reports a different metadata hash than one already accepted from another
// location, for the same packet id.
type ConflictingMetadataError struct {
	Location string
	Ids      []string
}

func (e *ConflictingMetadataError) Error() string {
	return fmt.Sprintf(
		"location '%s' has conflicting metadata for: '%s'. "+
			"We have been offered metadata from '%s' with a different hash "+
			"to metadata already imported from another location. The new "+
			"metadata has been rejected; you may want to remove '%s' from "+
			"your configuration.",
		e.Location, strings.Join(e.Ids, "', '"), e.Location, e.Location)
}

// PacketNotFoundError is raised when a pull plan cannot find any location
// claiming a requested (or depended-upon) packet id.
type PacketNotFoundError struct {
	Id             string
	Locations      []string
	MissingDepends int
}

func (e *PacketNotFoundError) Error() string {
	msg := fmt.Sprintf("'%s' not found at any configured location. Looked in location '%s'. Do you need to run pull_metadata?",
		e.Id, strings.Join(e.Locations, "', '"))
	if e.MissingDepends > 0 {
		msg += fmt.Sprintf(" (%d dependencies are also missing)", e.MissingDepends)
	}
	return msg
}

// UnsupportedLocationProtocolError is raised when a location URL uses a
// scheme with no registered driver.
type UnsupportedLocationProtocolError struct {
	Scheme string
}

func (e *UnsupportedLocationProtocolError) Error() string {
	return fmt.Sprintf("unsupported location protocol: '%s'", e.Scheme)
}
