// Package filestore implements the repository's content-addressed blob
// store: files are kept at <root>/<aa>/<rest>, where aa is the first two
// hex characters of the digest, bounding per-directory fan-out the way a
// registry's blob store (grounded on distribution's storagedriver/
// filesystem layout under blobs/sha256/<aa>/<hash>/data) does.
package filestore

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/reside-ic/outpack-go/filestore/backend"
	"github.com/reside-ic/outpack-go/internal/hash"

	outpackerr "github.com/reside-ic/outpack-go/errors"
)

// FileStore is a content-addressed blob pool rooted at a single directory.
type FileStore struct {
	root      string
	algorithm string
	mirror    backend.Backend
}

// New opens (without requiring it to yet exist) a FileStore rooted at root,
// hashing new content with algorithm.
func New(root string, algorithm string) *FileStore {
	return &FileStore{root: root, algorithm: algorithm}
}

// WithBackend attaches an optional remote mirror: Put additionally uploads
// each new blob to it, and Get falls back to fetching from it (repopulating
// the local store) when a blob is not present locally. Returns fs so it can
// be chained onto New.
func (fs *FileStore) WithBackend(b backend.Backend) *FileStore {
	fs.mirror = b
	return fs
}

// Root returns the store's root directory.
func (fs *FileStore) Root() string { return fs.root }

func (fs *FileStore) path(h hash.Hash) string {
	hex := h.Encoded()
	if len(hex) < 2 {
		return filepath.Join(fs.root, hex)
	}
	return filepath.Join(fs.root, hex[:2], hex[2:])
}

// Filename returns the path at which h would be (or is) stored. It performs
// no I/O and does not guarantee the blob exists; use Exists for that.
func (fs *FileStore) Filename(h hash.Hash) string {
	return fs.path(h)
}

// Exists reports whether the blob for h is present.
func (fs *FileStore) Exists(h hash.Hash) bool {
	_, err := os.Stat(fs.path(h))
	return err == nil
}

// Put hashes the file at srcPath and ensures its content is present in the
// store, returning its hash. It is idempotent: a second Put of identical
// content is a no-op. Concurrent Puts of the same content race harmlessly,
// since the final placement is always a rename into the content-addressed
// slot.
//
// srcPath is left in place; the content is hard-linked into the store when
// possible (same filesystem) and copied otherwise. This lets a caller (the
// packet lifecycle) still use srcPath afterwards, e.g. to additionally
// import it into the archive.
func (fs *FileStore) Put(srcPath string) (hash.Hash, error) {
	h, err := hash.File(fs.algorithm, srcPath)
	if err != nil {
		return "", err
	}

	dest := fs.path(h)
	if _, err := os.Stat(dest); err != nil {
		if err := fs.putLocal(srcPath, dest); err != nil {
			return "", err
		}
	}

	if fs.mirror != nil {
		if err := fs.mirrorUpload(h, dest); err != nil {
			return "", err
		}
	}

	return h, nil
}

func (fs *FileStore) putLocal(srcPath, dest string) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	tmp.Close()
	os.Remove(tmpName)

	if err := os.Link(srcPath, tmpName); err != nil {
		if err := copyFile(srcPath, tmpName); err != nil {
			return err
		}
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		if _, statErr := os.Stat(dest); statErr == nil {
			// A concurrent Put of the same content won the race; that's fine.
			return nil
		}
		return err
	}

	return nil
}

// mirrorUpload pushes the blob already placed at path up to the remote
// mirror, skipping the upload if the mirror already reports it present.
func (fs *FileStore) mirrorUpload(h hash.Hash, path string) error {
	key := string(h)
	exists, err := fs.mirror.Exists(key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	return fs.mirror.Put(key, f, info.Size())
}

// Get copies the blob for h to dest, failing with a NotFoundError if it is
// absent. If overwrite is false and dest already exists, Get fails rather
// than clobbering it.
func (fs *FileStore) Get(h hash.Hash, dest string, overwrite bool) error {
	src := fs.path(h)
	if _, err := os.Stat(src); err != nil {
		if fs.mirror == nil || fs.mirrorDownload(h, src) != nil {
			return &outpackerr.NotFoundError{Kind: outpackerr.NotFoundHash, Name: string(h)}
		}
	}
	if !overwrite {
		if _, err := os.Stat(dest); err == nil {
			return outpackerr.NewConfigurationError("destination already exists: '%s'", dest)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return copyFile(src, dest)
}

// mirrorDownload fetches h from the remote mirror into the local store at
// dest, so later Gets of the same hash don't need the network again.
func (fs *FileStore) mirrorDownload(h hash.Hash, dest string) error {
	r, err := fs.mirror.Get(string(h))
	if err != nil {
		return err
	}
	defer r.Close()

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, dest)
}

// Ls lists every hash present in the store.
func (fs *FileStore) Ls() ([]hash.Hash, error) {
	var out []hash.Hash
	err := filepath.Walk(fs.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == fs.root {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.Contains(filepath.Base(p), "tmp-") {
			return nil
		}
		rel, err := filepath.Rel(fs.root, p)
		if err != nil {
			return err
		}
		hex := strings.ReplaceAll(rel, string(filepath.Separator), "")
		out = append(out, hash.Hash(fs.algorithm+":"+hex))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, dest)
}
