// Package path implements the filesystem location driver: direct access to
// another repository's on-disk .outpack tree, for locations configured
// with type "path". Grounded on pyorderly's
// outpack/location_path.py (OutpackLocationPath). Push-side operations are
// deliberately unimplemented, matching the Python driver — a filesystem
// location is read-only from the sync engine's point of view.
package path

import (
	"context"
	"io"
	"os"

	"github.com/reside-ic/outpack-go/config"
	outpackerr "github.com/reside-ic/outpack-go/errors"
	"github.com/reside-ic/outpack-go/internal/hash"
	"github.com/reside-ic/outpack-go/location"
	"github.com/reside-ic/outpack-go/metadata"
	"github.com/reside-ic/outpack-go/root"
)

func init() {
	location.Register("path", factory{})
}

type factory struct{}

func (factory) Create(loc config.Location) (location.Driver, error) {
	r, err := root.Open(loc.Args["path"])
	if err != nil {
		return nil, err
	}
	return &Driver{root: r}, nil
}

// Driver is a location.Driver backed by direct filesystem access to
// another repository's root.
type Driver struct {
	root *root.Root
}

// New wraps an already-open root as a path driver, for callers (tests, the
// path location factory) that already hold one.
func New(r *root.Root) *Driver { return &Driver{root: r} }

// Open implements location.Driver. Filesystem access needs no session
// setup.
func (d *Driver) Open(ctx context.Context) error { return nil }

// Close implements location.Driver.
func (d *Driver) Close() error { return nil }

// ListPackets implements location.Driver.
func (d *Driver) ListPackets(ctx context.Context) (map[string]metadata.PacketLocation, error) {
	local, err := d.root.Index.Location(config.ReservedLocal)
	if err != nil {
		return nil, err
	}
	out := make(map[string]metadata.PacketLocation, len(local))
	for id, loc := range local {
		out[id] = *loc
	}
	return out, nil
}

// Metadata implements location.Driver.
func (d *Driver) Metadata(ctx context.Context, ids []string) (map[string]string, error) {
	local, err := d.root.Index.Location(config.ReservedLocal)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range ids {
		if _, ok := local[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, outpackerr.NewConfigurationError("some packet ids not found: '%s'", join(missing))
	}

	out := make(map[string]string, len(ids))
	for _, id := range ids {
		m, err := d.root.Index.Metadata(id)
		if err != nil {
			return nil, err
		}
		canon, err := m.Canonical()
		if err != nil {
			return nil, err
		}
		out[id] = string(canon)
	}
	return out, nil
}

// FetchFile implements location.Driver.
func (d *Driver) FetchFile(ctx context.Context, packet *metadata.Core, file metadata.PacketFile, dest string) error {
	src, err := d.root.FindFileByHash(file.Hash, []string{packet.Id})
	if err != nil {
		return outpackerr.NewConfigurationError("hash '%s' not found at location", file.Hash)
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// ListUnknownPackets implements location.Driver. Unimplemented: a
// filesystem driver is used read-only by the pull side of the protocol.
func (d *Driver) ListUnknownPackets(ctx context.Context, ids []string) ([]string, error) {
	return nil, location.ErrNotImplemented
}

// ListUnknownFiles implements location.Driver. Unimplemented, see
// ListUnknownPackets.
func (d *Driver) ListUnknownFiles(ctx context.Context, hashes []hash.Hash) ([]hash.Hash, error) {
	return nil, location.ErrNotImplemented
}

// PushFile implements location.Driver. Unimplemented, see
// ListUnknownPackets.
func (d *Driver) PushFile(ctx context.Context, src string, h hash.Hash) error {
	return location.ErrNotImplemented
}

// PushMetadata implements location.Driver. Unimplemented, see
// ListUnknownPackets.
func (d *Driver) PushMetadata(ctx context.Context, src string, h hash.Hash) error {
	return location.ErrNotImplemented
}

func join(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += "', '"
		}
		out += id
	}
	return out
}
