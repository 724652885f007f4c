// Package root opens a repository directory and wires together its Config,
// Index, and (when configured) FileStore and Archive, grounded on
// pyorderly's outpack/root.py. It is the entry point every other engine
// component (packet, pull, push, search) is constructed against.
package root

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/reside-ic/outpack-go/archive"
	"github.com/reside-ic/outpack-go/config"
	outpackerr "github.com/reside-ic/outpack-go/errors"
	"github.com/reside-ic/outpack-go/filestore"
	"github.com/reside-ic/outpack-go/filestore/backend"
	"github.com/reside-ic/outpack-go/index"
	"github.com/reside-ic/outpack-go/internal/hash"
	"github.com/reside-ic/outpack-go/metadata"
)

// Root is an open repository: its path, configuration, index, and whichever
// of FileStore/Archive are enabled (at least one, per config's invariant).
type Root struct {
	Path    string
	Config  *config.Config
	Index   *index.Index
	Files   *filestore.FileStore
	Archive *archive.Archive
}

// Init creates a fresh repository at path: a .outpack directory with a
// freshly written config.json, per spec.md §6's "init" CLI operation. path
// must already exist as a directory.
func Init(path string, opts config.Options) (*Root, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, outpackerr.NewConfigurationError("expected 'path' to be an existing directory")
	}

	cfg, err := config.New(opts)
	if err != nil {
		return nil, err
	}
	if cfg.Core.PathArchive != nil {
		if err := os.MkdirAll(filepath.Join(abs, *cfg.Core.PathArchive), 0o755); err != nil {
			return nil, err
		}
	}
	if err := config.Write(cfg, abs); err != nil {
		return nil, err
	}
	return Open(abs)
}

// Open reads an existing repository's configuration at path and wires up
// its components. path must already contain a .outpack directory; use
// OpenLocate to search upward for one instead.
func Open(path string) (*Root, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, outpackerr.NewConfigurationError("expected 'path' to be an existing directory")
	}

	cfg, err := config.Read(abs)
	if err != nil {
		return nil, err
	}
	idx := index.New(abs)

	r := &Root{Path: abs, Config: cfg, Index: idx}
	if cfg.Core.UseFileStore {
		r.Files = filestore.New(filepath.Join(abs, ".outpack", "files"), cfg.Core.HashAlgorithm)
		if m := cfg.Core.S3Mirror; m != nil {
			mirror, err := backend.NewS3Backend(backend.S3Config{Bucket: m.Bucket, Prefix: m.Prefix, Region: m.Region})
			if err != nil {
				return nil, err
			}
			r.Files = r.Files.WithBackend(mirror)
		}
	}
	if cfg.Core.PathArchive != nil {
		r.Archive = archive.New(filepath.Join(abs, *cfg.Core.PathArchive), idx)
	}
	return r, nil
}

// OpenLocate is Open, except it searches path and its ancestors for the
// nearest directory containing .outpack, the way a CLI invoked from a
// subdirectory of a repository would.
func OpenLocate(path string) (*Root, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path = cwd
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, outpackerr.NewConfigurationError("expected 'path' to be an existing directory")
	}

	found, ok := findFileDescend(".outpack", abs)
	if !ok {
		return nil, outpackerr.NewConfigurationError("did not find existing outpack root in '%s'", abs)
	}
	return Open(found)
}

func findFileDescend(name, start string) (string, bool) {
	dir := start
	for {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && info.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// FindFileByHash locates a local copy of the blob with the given hash,
// preferring FileStore (an O(1) path lookup) and falling back to a scan of
// Archive, which re-verifies every candidate it finds.
func (r *Root) FindFileByHash(h hash.Hash, candidates []string) (string, error) {
	if r.Files != nil {
		if !r.Files.Exists(h) {
			return "", &outpackerr.NotFoundError{Kind: outpackerr.NotFoundHash, Name: string(h)}
		}
		return r.Files.Filename(h), nil
	}
	if r.Archive != nil {
		return r.Archive.FindFile(context.Background(), h, candidates)
	}
	return "", outpackerr.NewConfigurationError("neither filestore nor archive")
}

// ExportFile copies packet id's file "there" to dest, looking the hash up
// from the packet's metadata.
func (r *Root) ExportFile(id, there, dest string) error {
	meta, err := r.Index.Metadata(id)
	if err != nil {
		return err
	}
	h, err := meta.FileHash(there)
	if err != nil {
		return err
	}
	src, err := r.FindFileByHash(h, []string{id})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
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

// MarkKnown records that location claims packet id exists with metadata
// hash h, observed/claimed at the given time.
func (r *Root) MarkKnown(location, id string, h hash.Hash, at time.Time) error {
	return r.Index.MarkKnown(location, id, &metadata.PacketLocation{
		Packet: id,
		Hash:   h,
		Time:   float64(at.UnixNano()) / 1e9,
	})
}
