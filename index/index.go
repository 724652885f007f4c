// Package index maintains the in-memory view over all packet metadata and
// per-location membership that a repository holds on disk: one JSON file
// per packet under .outpack/metadata/<id>, and one JSON file per
// (location, packet) pair under .outpack/location/<name>/<id>. The index is
// lazily loaded and cached; callers that write new metadata or location
// files must call Rebuild to invalidate the cache (spec.md §4.f).
package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/reside-ic/outpack-go/config"
	outpackerr "github.com/reside-ic/outpack-go/errors"
	"github.com/reside-ic/outpack-go/metadata"
)

// Index is a lazily-loaded, rebuildable cache over a repository's metadata
// and location records.
type Index struct {
	rootPath string

	mu        sync.Mutex
	loaded    bool
	metadata  map[string]*metadata.Core
	locations map[string]map[string]*metadata.PacketLocation
}

// New opens an index over rootPath without reading anything from disk yet.
func New(rootPath string) *Index {
	return &Index{rootPath: rootPath}
}

// Rebuild discards the cache; the next read reloads everything from disk.
func (ix *Index) Rebuild() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.loaded = false
	ix.metadata = nil
	ix.locations = nil
}

func (ix *Index) ensureLoaded() error {
	if ix.loaded {
		return nil
	}

	meta := map[string]*metadata.Core{}
	metaDir := filepath.Join(ix.rootPath, ".outpack", "metadata")
	entries, err := os.ReadDir(metaDir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(metaDir, e.Name()))
		if err != nil {
			return err
		}
		m, err := metadata.Parse(data)
		if err != nil {
			return err
		}
		meta[e.Name()] = m
	}

	locations := map[string]map[string]*metadata.PacketLocation{
		config.ReservedLocal: {},
	}
	locDir := filepath.Join(ix.rootPath, ".outpack", "location")
	locEntries, err := os.ReadDir(locDir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, locEntry := range locEntries {
		if !locEntry.IsDir() {
			continue
		}
		name := locEntry.Name()
		packets := map[string]*metadata.PacketLocation{}
		packetDir := filepath.Join(locDir, name)
		packetEntries, err := os.ReadDir(packetDir)
		if err != nil {
			return err
		}
		for _, pe := range packetEntries {
			if pe.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(packetDir, pe.Name()))
			if err != nil {
				return err
			}
			var pl metadata.PacketLocation
			if err := json.Unmarshal(data, &pl); err != nil {
				return err
			}
			packets[pe.Name()] = &pl
		}
		locations[name] = packets
	}

	ix.metadata = meta
	ix.locations = locations
	ix.loaded = true
	return nil
}

// AllMetadata returns every packet's metadata, keyed by id.
func (ix *Index) AllMetadata() (map[string]*metadata.Core, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.ensureLoaded(); err != nil {
		return nil, err
	}
	return ix.metadata, nil
}

// Metadata returns one packet's metadata.
func (ix *Index) Metadata(id string) (*metadata.Core, error) {
	all, err := ix.AllMetadata()
	if err != nil {
		return nil, err
	}
	m, ok := all[id]
	if !ok {
		return nil, notFoundPacket(id)
	}
	return m, nil
}

// AllLocations returns the full location->id->PacketLocation table.
func (ix *Index) AllLocations() (map[string]map[string]*metadata.PacketLocation, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.ensureLoaded(); err != nil {
		return nil, err
	}
	return ix.locations, nil
}

// Location returns the id->PacketLocation membership table for one
// location name (empty if the location has no recorded packets yet).
func (ix *Index) Location(name string) (map[string]*metadata.PacketLocation, error) {
	all, err := ix.AllLocations()
	if err != nil {
		return nil, err
	}
	if m, ok := all[name]; ok {
		return m, nil
	}
	return map[string]*metadata.PacketLocation{}, nil
}

// Unpacked returns the ids present under the "local" location, sorted
// lexicographically (which approximates creation order; see internal/id).
func (ix *Index) Unpacked() ([]string, error) {
	local, err := ix.Location(config.ReservedLocal)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(local))
	for id := range local {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// WriteMetadata persists a packet's canonical metadata to
// .outpack/metadata/<id> and invalidates the cache.
func (ix *Index) WriteMetadata(id string, canonical []byte) error {
	dir := filepath.Join(ix.rootPath, ".outpack", "metadata")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(dir, id), canonical); err != nil {
		return err
	}
	ix.Rebuild()
	return nil
}

// MarkKnown records that location claims packet id exists with the given
// metadata hash and timestamp, writing .outpack/location/<name>/<id> and
// invalidating the cache.
func (ix *Index) MarkKnown(location, id string, loc *metadata.PacketLocation) error {
	dir := filepath.Join(ix.rootPath, ".outpack", "location", location)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := metadata.CanonicalLocation(loc)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(dir, id), data); err != nil {
		return err
	}
	ix.Rebuild()
	return nil
}

func notFoundPacket(id string) error {
	return &outpackerr.NotFoundError{Kind: outpackerr.NotFoundPacket, Name: id}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
