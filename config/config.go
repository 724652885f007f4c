// Package config reads and writes a repository's persistent configuration:
// hash algorithm, store layout, and the set of known locations. It is
// modelled on distribution/configuration's versioned, validated config
// struct, but the wire format here is canonical-leaning JSON (matching the
// rest of an outpack repository's on-disk metadata) rather than YAML.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	outpackerr "github.com/reside-ic/outpack-go/errors"
)

// SchemaVersion is written into every config.json produced by this build.
const SchemaVersion = "0.1.1"

// Core holds the repository-lifetime settings: the hash algorithm is fixed
// once a repository is created, and either an archive path or the content
// store (or both) must be enabled.
type Core struct {
	HashAlgorithm       string    `json:"hash_algorithm"`
	PathArchive         *string   `json:"path_archive"`
	UseFileStore        bool      `json:"use_file_store"`
	RequireCompleteTree bool      `json:"require_complete_tree"`
	S3Mirror            *S3Mirror `json:"s3_mirror,omitempty"`
}

// S3Mirror configures an optional off-machine mirror of the FileStore's
// blobs, used for disaster recovery independent of location sync. Region
// may be left empty to let the AWS SDK resolve it from the environment.
type S3Mirror struct {
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix"`
	Region string `json:"region"`
}

// Config is a repository's full persistent configuration.
type Config struct {
	SchemaVersion string     `json:"schema_version"`
	Core          Core       `json:"core"`
	Location      *Locations `json:"location"`
}

// Options configures New.
type Options struct {
	HashAlgorithm       string
	PathArchive         *string
	UseFileStore        bool
	RequireCompleteTree bool
	S3Mirror            *S3Mirror
}

// New builds a fresh Config for an about-to-be-initialised repository,
// with the "local" location always present. It enforces invariant 1 of
// spec.md §3: path_archive present or use_file_store true.
func New(opts Options) (*Config, error) {
	if opts.PathArchive == nil && !opts.UseFileStore {
		return nil, outpackerr.NewConfigurationError(
			"if 'path_archive' is None, 'use_file_store' must be true")
	}
	algorithm := opts.HashAlgorithm
	if algorithm == "" {
		algorithm = "sha256"
	}

	locations := NewLocations()
	locations.Add(Location{Name: ReservedLocal, Type: "local"})

	return &Config{
		SchemaVersion: SchemaVersion,
		Core: Core{
			HashAlgorithm:       algorithm,
			PathArchive:         opts.PathArchive,
			UseFileStore:        opts.UseFileStore,
			RequireCompleteTree: opts.RequireCompleteTree,
			S3Mirror:            opts.S3Mirror,
		},
		Location: locations,
	}, nil
}

func path(rootPath string) string {
	return filepath.Join(rootPath, ".outpack", "config.json")
}

// Read loads the configuration from <rootPath>/.outpack/config.json.
func Read(rootPath string) (*Config, error) {
	data, err := os.ReadFile(path(rootPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, outpackerr.NewConfigurationError(
				"did not find existing outpack root in '%s'", rootPath)
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = NewLocations()
	}
	return &cfg, nil
}

// Write atomically rewrites the configuration file: serialize to a
// temporary file in the same directory, then rename over the target, so a
// reader never observes a partially-written config.
func Write(cfg *Config, rootPath string) error {
	dir := filepath.Join(rootPath, ".outpack")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, "config.json.tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path(rootPath))
}
