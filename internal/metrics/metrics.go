// Package metrics exposes counters describing sync activity (files and
// bytes moved by pull and push), grounded on distribution's metrics package:
// a docker/go-metrics namespace, registered once, with counters obtained
// from it at package init.
package metrics

import "github.com/docker/go-metrics"

// NamespacePrefix is the namespace under which outpack metrics are
// registered.
const NamespacePrefix = "outpack"

// SyncNamespace is the namespace of pull/push related counters.
var SyncNamespace = metrics.NewNamespace(NamespacePrefix, "sync", nil)

var (
	// FilesTransferred counts files moved into the local store by pull, or
	// uploaded to a remote location by push, labeled by direction.
	FilesTransferred = SyncNamespace.NewLabeledCounter("files_transferred", "The number of files transferred during a sync operation", "direction")

	// BytesTransferred counts bytes moved, labeled the same way.
	BytesTransferred = SyncNamespace.NewLabeledCounter("bytes_transferred", "The number of bytes transferred during a sync operation", "direction")

	// PacketsUnpacked counts packets newly marked local by a pull.
	PacketsUnpacked = SyncNamespace.NewCounter("packets_unpacked", "The number of packets newly unpacked locally by pull_packet")

	// MetadataConflicts counts ConflictingMetadata rejections observed
	// during pull_metadata.
	MetadataConflicts = SyncNamespace.NewCounter("metadata_conflicts", "The number of locations rejected during pull_metadata for conflicting metadata")
)

func init() {
	metrics.Register(SyncNamespace)
}

// Direction labels for FilesTransferred/BytesTransferred.
const (
	DirectionPull = "pull"
	DirectionPush = "push"
)
