// Package metadata defines the typed packet metadata record and its
// canonical JSON serialization: the byte-exact form whose hash identifies a
// packet's metadata (spec.md §3, §4.e). Field order within each struct is
// chosen to match the sorted-key requirement directly, since encoding/json
// emits struct fields in declaration order; map-valued fields (Parameters,
// Custom) get sorted keys for free from encoding/json's own map handling.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/reside-ic/outpack-go/internal/hash"
	"github.com/reside-ic/outpack-go/internal/id"
)

// SchemaVersion is the metadata schema version this build writes and
// expects to read.
const SchemaVersion = "0.1.1"

// TimeRange is a packet's start/end time, UNIX seconds UTC.
type TimeRange struct {
	End   float64 `json:"end"`
	Start float64 `json:"start"`
}

// GitInfo records the git state of the script that produced a packet, when
// known.
type GitInfo struct {
	Branch string `json:"branch"`
	Sha    string `json:"sha"`
	URL    string `json:"url"`
}

// PacketFile is a single declared output file.
type PacketFile struct {
	Hash hash.Hash `json:"hash"`
	Path string    `json:"path"`
	Size int64     `json:"size"`
}

// Dependency records another packet consumed by this one, and the
// here->there remapping of its files used when it was copied into staging.
type Dependency struct {
	Files  map[string]string `json:"files"`
	Packet string            `json:"packet"`
	Query  string            `json:"query"`
}

// Core is the canonical, hashed record describing a packet: every field a
// repository or a peer needs in order to verify and depend on the packet.
type Core struct {
	Custom        map[string]interface{} `json:"custom,omitempty"`
	Depends       []Dependency           `json:"depends"`
	Files         []PacketFile           `json:"files"`
	Git           *GitInfo               `json:"git"`
	Id            string                 `json:"id"`
	Name          string                 `json:"name"`
	Parameters    map[string]interface{} `json:"parameters"`
	SchemaVersion string                 `json:"schema_version"`
	Time          TimeRange              `json:"time"`
}

// FileHash returns the hash recorded for the named file, or an error if no
// such file was declared.
func (m *Core) FileHash(path string) (hash.Hash, error) {
	for _, f := range m.Files {
		if f.Path == path {
			return f.Hash, nil
		}
	}
	return "", fmt.Errorf("packet '%s' has no file '%s'", m.Id, path)
}

// ValidateParameter checks a parameter value is one of the allowed scalar
// kinds: string, bool, or finite number.
func ValidateParameter(name string, value interface{}) error {
	switch v := value.(type) {
	case string, bool:
		return nil
	case float64:
		if v != v || v > maxFinite || v < -maxFinite {
			return fmt.Errorf("parameter '%s' must be finite", name)
		}
		return nil
	case int, int32, int64:
		return nil
	default:
		return fmt.Errorf("parameter '%s' has unsupported type %T; must be string, bool, or number", name, value)
	}
}

const maxFinite = 1.7976931348623157e+308

// Canonical serializes m into its canonical byte form: UTF-8, sorted object
// keys, compact separators, and float formatting that round-trips exactly.
// The metadata hash is the hash of these bytes.
func (m *Core) Canonical() ([]byte, error) {
	if m.Files == nil {
		m.Files = []PacketFile{}
	}
	if m.Depends == nil {
		m.Depends = []Dependency{}
	}
	sorted := make([]PacketFile, len(m.Files))
	copy(sorted, m.Files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	clone := *m
	clone.Files = sorted

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&clone); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	return out[:len(out)-1], nil // Encode appends a trailing newline; trim it
}

// Hash computes the metadata hash (the hash of the canonical bytes) using
// alg.
func (m *Core) Hash(alg string) (hash.Hash, error) {
	data, err := m.Canonical()
	if err != nil {
		return "", err
	}
	return hash.Bytes(alg, data)
}

// Parse decodes a canonical metadata JSON string back into a Core.
func Parse(data []byte) (*Core, error) {
	var m Core
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid packet metadata: %w", err)
	}
	return &m, nil
}

// NewId is a thin re-export so callers of this package do not need to
// import internal/id directly for the common case of minting a fresh id.
func NewId() string { return id.New() }

// PacketLocation is the record that a location asserts a packet exists,
// and which metadata hash it vouches for.
type PacketLocation struct {
	Hash   hash.Hash `json:"hash"`
	Packet string    `json:"packet"`
	Time   float64   `json:"time"`
}

// CanonicalLocation serializes a PacketLocation the same way Core.Canonical
// does: compact, sorted keys (trivial here, since the struct has no map
// fields, but consistent formatting matters for the on-disk byte content).
func CanonicalLocation(p *PacketLocation) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	return out[:len(out)-1], nil
}
