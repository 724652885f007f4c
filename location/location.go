// Package location defines the abstract sync-peer interface (Driver) and
// the location configuration operations (add/remove/rename/list) that sit
// above it, grounded on pyorderly's outpack/location.py and
// location_driver.py.
package location

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/reside-ic/outpack-go/config"
	outpackerr "github.com/reside-ic/outpack-go/errors"
	"github.com/reside-ic/outpack-go/internal/hash"
	"github.com/reside-ic/outpack-go/metadata"
	"github.com/reside-ic/outpack-go/root"
)

// Driver is the uniform capability set a sync peer exposes, whether it is
// reached over the filesystem or over HTTP (spec.md §4.i). Implementations
// are scoped sessions: Open/Close bracket whatever a transport needs
// (an HTTP client connection, a held file lock).
type Driver interface {
	Open(ctx context.Context) error
	Close() error

	// ListPackets returns every packet the location claims to hold.
	ListPackets(ctx context.Context) (map[string]metadata.PacketLocation, error)

	// Metadata returns the canonical metadata string for each requested
	// id, failing if any id is unknown to the location.
	Metadata(ctx context.Context, ids []string) (map[string]string, error)

	// FetchFile copies the blob identified by file.Hash (declared by
	// packet) to dest.
	FetchFile(ctx context.Context, packet *metadata.Core, file metadata.PacketFile, dest string) error

	// ListUnknownPackets returns the subset of ids the location does not
	// already have, used to build a push plan. A filesystem driver MAY
	// leave this unimplemented.
	ListUnknownPackets(ctx context.Context, ids []string) ([]string, error)

	// ListUnknownFiles is ListUnknownPackets for content hashes.
	ListUnknownFiles(ctx context.Context, hashes []hash.Hash) ([]hash.Hash, error)

	// PushFile uploads the blob at src, claimed to have the given hash.
	PushFile(ctx context.Context, src string, h hash.Hash) error

	// PushMetadata uploads the canonical metadata bytes at src, claimed to
	// have the given hash.
	PushMetadata(ctx context.Context, src string, h hash.Hash) error
}

// ErrNotImplemented is returned by driver methods a given transport
// deliberately does not support (e.g. push on a read-only filesystem
// driver), matching the Python driver's NotImplementedError.
var ErrNotImplemented = outpackerr.NewConfigurationError("operation not implemented by this location driver")

// List returns the repository's configured location names, in insertion
// order.
func List(r *root.Root) []string {
	return r.Config.Location.Names()
}

// Add registers a new location. name must not be reserved or already in
// use. A "path" location is validated eagerly by opening it as a root.
func Add(r *root.Root, name, kind string, args map[string]string) error {
	if config.Reserved(name) {
		return outpackerr.NewConfigurationError("cannot add a location with reserved name '%s'", name)
	}
	if r.Config.Location.Has(name) {
		return outpackerr.NewConfigurationError("a location with name '%s' already exists", name)
	}

	if kind == "path" {
		if _, err := root.Open(args["path"]); err != nil {
			return err
		}
	}

	r.Config.Location.Add(config.Location{Name: name, Type: kind, Args: args})
	return config.Write(r.Config, r.Path)
}

// Remove deregisters a location and drops its membership records. name
// must not be reserved. Per spec.md §9's open question (b), pull does not
// delete the orphaned local packets this may leave behind; see
// DESIGN.md.
func Remove(r *root.Root, name string) error {
	if config.Reserved(name) {
		return outpackerr.NewConfigurationError("cannot remove default location '%s'", name)
	}
	if !r.Config.Location.Has(name) {
		return outpackerr.NewConfigurationError("no location with name '%s' exists", name)
	}

	locDir := filepath.Join(r.Path, ".outpack", "location", name)
	if _, err := os.Stat(locDir); err == nil {
		if err := os.RemoveAll(locDir); err != nil {
			return err
		}
	}
	r.Index.Rebuild()

	r.Config.Location.Remove(name)
	return config.Write(r.Config, r.Path)
}

// Rename changes a location's name, preserving its position and args.
func Rename(r *root.Root, oldName, newName string) error {
	if config.Reserved(oldName) {
		return outpackerr.NewConfigurationError("cannot rename default location '%s'", oldName)
	}
	if r.Config.Location.Has(newName) {
		return outpackerr.NewConfigurationError("a location with name '%s' already exists", newName)
	}
	if !r.Config.Location.Has(oldName) {
		return outpackerr.NewConfigurationError("no location with name '%s' exists", oldName)
	}

	r.Config.Location.Rename(oldName, newName)
	return config.Write(r.Config, r.Path)
}

// ResolveValid validates and normalizes a requested location set: all
// selects every configured location (names is then ignored); otherwise
// every entry of names is checked for existence. local/orphan are
// then added or stripped per includeLocal/includeOrphan, and the result
// is rejected as empty unless allowNoLocations. Grounded on
// location_resolve_valid in outpack/location.py.
func ResolveValid(r *root.Root, names []string, all bool, includeLocal, includeOrphan, allowNoLocations bool) ([]string, error) {
	var resolved []string
	if all {
		resolved = List(r)
	} else {
		known := map[string]bool{}
		for _, n := range List(r) {
			known[n] = true
		}
		var unknown []string
		for _, n := range names {
			if !known[n] {
				unknown = append(unknown, n)
			}
		}
		if len(unknown) > 0 {
			return nil, outpackerr.NewConfigurationError("unknown location: '%s'", strings.Join(unknown, "', '"))
		}
		resolved = append(resolved, names...)
	}

	var out []string
	for _, n := range resolved {
		if n == config.ReservedLocal && !includeLocal {
			continue
		}
		if n == config.ReservedOrphan && !includeOrphan {
			continue
		}
		out = append(out, n)
	}

	if len(out) == 0 && !allowNoLocations {
		return nil, outpackerr.NewConfigurationError("no suitable location found")
	}

	sort.Strings(out)
	return out, nil
}

// Factory builds a Driver for a location of the type it is registered
// under. Concrete drivers (location/path, location/http) call Register
// from an init() func rather than this package importing them directly,
// the way distribution's storage driver factory avoids a dependency
// cycle between the generic registry/storage/driver package and its
// concrete backends.
type Factory interface {
	Create(loc config.Location) (Driver, error)
}

var factories = map[string]Factory{}

// Register makes a location type available by name. Panics on a duplicate
// registration or a nil factory, matching distribution's factory.Register.
func Register(kind string, factory Factory) {
	if factory == nil {
		panic("location: Register called with nil Factory")
	}
	if _, ok := factories[kind]; ok {
		panic("location: Register called twice for type " + kind)
	}
	factories[kind] = factory
}

// Open constructs the Driver for a configured location, dispatching on its
// registered type.
func Open(r *root.Root, name string) (Driver, error) {
	loc, ok := r.Config.Location.Get(name)
	if !ok {
		return nil, &outpackerr.NotFoundError{Kind: outpackerr.NotFoundLocation, Name: name}
	}
	factory, ok := factories[loc.Type]
	if !ok {
		return nil, &outpackerr.UnsupportedLocationProtocolError{Scheme: loc.Type}
	}
	return factory.Create(loc)
}
