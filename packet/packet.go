// Package packet implements a packet's authoring lifecycle: constructed
// bound to a staging directory, mutated by dependency/custom-metadata/
// immutable-marking calls, and finalized by End, which hashes the staged
// files, writes canonical metadata, and (unless cancelled) inserts the
// packet into its Root. Grounded on spec.md §4.h and the behavior
// exercised by original_source's tests/test_packet.py, since no
// packet.py implementation survived the distillation's source filter.
package packet

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	outpackerr "github.com/reside-ic/outpack-go/errors"
	"github.com/reside-ic/outpack-go/internal/hash"
	"github.com/reside-ic/outpack-go/metadata"
	"github.com/reside-ic/outpack-go/root"
	"github.com/reside-ic/outpack-go/search"
)

// cancelSentinel is written into the staging directory when a packet is
// ended with insert=false, so tooling can tell a cancelled run apart from
// one that crashed before finishing.
const cancelSentinel = "outpack.json"

// Options configures New.
type Options struct {
	// Id overrides the minted packet id; leave empty to generate one from
	// the current time.
	Id string
	// Parameters are the packet's run parameters: string, bool, or
	// finite-number values only (metadata.ValidateParameter).
	Parameters map[string]interface{}
}

// Packet is a packet under construction: bound to a Root and a staging
// directory, accumulating dependencies and custom metadata until End is
// called.
type Packet struct {
	root *root.Root
	Path string
	Name string
	Id   string

	Parameters map[string]interface{}
	Depends    []metadata.Dependency
	Custom     map[string]interface{}
	Git        *metadata.GitInfo

	immutable map[string]hash.Hash
	startTime time.Time
	ended     bool

	// Files and Metadata are populated by End.
	Files    []metadata.PacketFile
	Metadata *metadata.Core
}

// New begins a packet named name, staged at stagingDir, bound to r.
func New(r *root.Root, stagingDir, name string, opts Options) (*Packet, error) {
	for k, v := range opts.Parameters {
		if err := metadata.ValidateParameter(k, v); err != nil {
			return nil, err
		}
	}
	id := opts.Id
	if id == "" {
		id = metadata.NewId()
	}
	return &Packet{
		root:       r,
		Path:       stagingDir,
		Name:       name,
		Id:         id,
		Parameters: opts.Parameters,
		Custom:     map[string]interface{}{},
		immutable:  map[string]hash.Hash{},
		startTime:  time.Now(),
	}, nil
}

// MarkFileImmutable records path's current hash, so End can detect if it
// changes before the packet is finalized.
func (p *Packet) MarkFileImmutable(path string) error {
	h, err := hash.File(p.root.Config.Core.HashAlgorithm, filepath.Join(p.Path, path))
	if err != nil {
		return err
	}
	p.immutable[path] = h
	return nil
}

// AddCustomMetadata attaches a namespaced JSON-able blob to the packet.
// Each namespace may be set at most once.
func (p *Packet) AddCustomMetadata(namespace string, data interface{}) error {
	if _, ok := p.Custom[namespace]; ok {
		return &outpackerr.DuplicateCustomKeyError{Namespace: namespace}
	}
	p.Custom[namespace] = data
	return nil
}

// UseDependency resolves query against the local index (authoring-time
// dependency resolution is local-only; see DESIGN.md's note on this open
// question) and copies each declared file from the resolved packet into
// the staging directory, honoring the here->there mapping.
func (p *Packet) UseDependency(query string, files map[string]string) error {
	depID, err := search.Resolve(p.root.Index, query, search.Local)
	if err != nil {
		return err
	}
	for here, there := range files {
		dest := filepath.Join(p.Path, here)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := p.root.ExportFile(depID, there, dest); err != nil {
			return err
		}
	}
	p.Depends = append(p.Depends, metadata.Dependency{Packet: depID, Query: query, Files: files})
	return nil
}

// End finalizes the packet: re-verifies immutable files, walks the staging
// directory, serializes canonical metadata, and — if insert is true —
// writes the packet into the Root (FileStore/Archive, metadata, and local
// membership). insert=false cancels the packet: only a sentinel file is
// written into staging, and the Root is left untouched. End is not
// re-entrant.
func (p *Packet) End(insert bool) (*metadata.Core, error) {
	if p.ended {
		return nil, outpackerr.ErrPacketAlreadyEnded
	}
	p.ended = true

	for path, want := range p.immutable {
		got, err := hash.File(p.root.Config.Core.HashAlgorithm, filepath.Join(p.Path, path))
		if err != nil || got != want {
			return nil, &outpackerr.ImmutableFileChangedError{Path: path}
		}
	}

	files, err := p.walkFiles()
	if err != nil {
		return nil, err
	}
	endTime := time.Now()

	core := &metadata.Core{
		Custom:        p.Custom,
		Depends:       p.Depends,
		Files:         files,
		Git:           p.Git,
		Id:            p.Id,
		Name:          p.Name,
		Parameters:    p.Parameters,
		SchemaVersion: metadata.SchemaVersion,
		Time: metadata.TimeRange{
			Start: float64(p.startTime.UnixNano()) / 1e9,
			End:   float64(endTime.UnixNano()) / 1e9,
		},
	}
	if core.Depends == nil {
		core.Depends = []metadata.Dependency{}
	}
	if core.Parameters == nil {
		core.Parameters = map[string]interface{}{}
	}

	if !insert {
		if err := os.WriteFile(filepath.Join(p.Path, cancelSentinel), []byte("{}"), 0o644); err != nil {
			return nil, err
		}
		p.Files = files
		p.Metadata = core
		return core, nil
	}

	canonical, err := core.Canonical()
	if err != nil {
		return nil, err
	}
	mhash, err := core.Hash(p.root.Config.Core.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	if p.root.Files != nil {
		for _, f := range files {
			if _, err := p.root.Files.Put(filepath.Join(p.Path, f.Path)); err != nil {
				return nil, err
			}
		}
	}
	if p.root.Archive != nil {
		if _, err := p.root.Archive.ImportPacket(core, p.Path); err != nil {
			return nil, err
		}
	}
	if err := p.root.Index.WriteMetadata(p.Id, canonical); err != nil {
		return nil, err
	}
	if err := p.root.MarkKnown("local", p.Id, mhash, endTime); err != nil {
		return nil, err
	}

	p.Files = files
	p.Metadata = core
	return core, nil
}

// walkFiles produces the packet's final declared file list, sorted by
// path, excluding __pycache__ directories (the one transient-artifact
// exclusion the original implementation documents).
func (p *Packet) walkFiles() ([]metadata.PacketFile, error) {
	var out []metadata.PacketFile
	err := filepath.Walk(p.Path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(p.Path, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == cancelSentinel {
			return nil
		}
		h, err := hash.File(p.root.Config.Core.HashAlgorithm, path)
		if err != nil {
			return err
		}
		out = append(out, metadata.PacketFile{Path: rel, Hash: h, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
