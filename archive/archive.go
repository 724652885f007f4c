// Package archive manages a repository's unpacked tree: a plain directory
// of <name>/<id>/<path> copies of every local packet's files, kept
// alongside the content-addressed FileStore so that packets can be
// browsed directly on disk. Grounded on pyorderly's
// outpack/archive.py, translated into the teacher's logging idiom
// (dlog.GetLogger instead of a bare print).
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/reside-ic/outpack-go/filestore"
	"github.com/reside-ic/outpack-go/index"
	"github.com/reside-ic/outpack-go/internal/dlog"
	"github.com/reside-ic/outpack-go/internal/hash"
	"github.com/reside-ic/outpack-go/metadata"
)

// Archive is the unpacked-tree view over a repository's local packets.
type Archive struct {
	path  string
	index *index.Index
}

// New opens an archive rooted at path, resolving packet metadata through
// index.
func New(path string, idx *index.Index) *Archive {
	return &Archive{path: path, index: idx}
}

func (a *Archive) packetDir(meta *metadata.Core) string {
	return filepath.Join(a.path, meta.Name, meta.Id)
}

// FilePath returns the destination a declared file would live at inside
// the archive, for callers (pull) that need to fetch directly into the
// archive tree on a root with no FileStore configured.
func (a *Archive) FilePath(meta *metadata.Core, path string) string {
	return filepath.Join(a.packetDir(meta), path)
}

// findFileInPacket looks for want inside packet id's archived files,
// re-hashing the on-disk copy before trusting it; a mismatch is logged and
// treated as absent, per spec.md's "archive is advisory" stance.
func (a *Archive) findFileInPacket(ctx context.Context, id string, want hash.Hash) (string, error) {
	meta, err := a.index.Metadata(id)
	if err != nil {
		return "", err
	}
	for _, f := range meta.Files {
		if f.Hash != want {
			continue
		}
		path := filepath.Join(a.packetDir(meta), f.Path)
		got, err := hash.File(string(want.Algorithm()), path)
		if err != nil {
			continue
		}
		if got == want {
			return path, nil
		}
		dlog.GetLogger(ctx).Infof("Rejecting file from archive '%s' in '%s/%s'", f.Path, meta.Name, meta.Id)
	}
	return "", nil
}

// FindFile locates any local packet holding a file with the given hash,
// preferring the ids in candidates (searched in order) over the rest of
// the unpacked set. This lets a caller avoid reading from a nearly-final
// packet until later, e.g. when it is itself the source of the file being
// looked up.
func (a *Archive) FindFile(ctx context.Context, want hash.Hash, candidates []string) (string, error) {
	seen := map[string]bool{}
	ordered := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}

	unpacked, err := a.index.Unpacked()
	if err != nil {
		return "", err
	}
	for _, id := range unpacked {
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}

	for _, id := range ordered {
		path, err := a.findFileInPacket(ctx, id, want)
		if err != nil {
			return "", err
		}
		if path != "" {
			return path, nil
		}
	}

	return "", fmt.Errorf("file not found in archive, or corrupt: %s", want)
}

// ImportPacket copies every file meta declares from the staging directory
// src into the archive, returning the archive's destination directory.
func (a *Archive) ImportPacket(meta *metadata.Core, src string) (string, error) {
	dest := a.packetDir(meta)
	for _, f := range meta.Files {
		if err := copyInto(filepath.Join(src, f.Path), filepath.Join(dest, f.Path)); err != nil {
			return "", err
		}
	}
	return dest, nil
}

// ImportPacketFromStore copies every file meta declares out of store into
// the archive, returning the archive's destination directory.
func (a *Archive) ImportPacketFromStore(meta *metadata.Core, store *filestore.FileStore) (string, error) {
	dest := a.packetDir(meta)
	for _, f := range meta.Files {
		if err := store.Get(f.Hash, filepath.Join(dest, f.Path), true); err != nil {
			return "", err
		}
	}
	return dest, nil
}

func copyInto(src, dest string) error {
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
