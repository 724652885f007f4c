// Package hash provides the stable content hashing used throughout a
// repository: hashing of byte strings and files, parsing and formatting of
// the "alg:hex" form, and validation of fetched bytes against an expected
// hash.
package hash

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Hash is a content hash in "alg:hex" form, grounded on the
// opencontainers/go-digest representation used throughout the container
// registry ecosystem. The algorithm and hex portions are always lowercase.
type Hash = digest.Digest

// DefaultAlgorithm is the algorithm a freshly initialised repository uses
// unless told otherwise.
const DefaultAlgorithm = digest.SHA256

// Algorithm reports whether alg is a supported hash algorithm name.
func Algorithm(alg string) (digest.Algorithm, bool) {
	a := digest.Algorithm(strings.ToLower(alg))
	return a, a.Available()
}

// Parse validates s is of the form "alg:hex" with a supported algorithm and
// correctly sized, lowercase hex digest.
func Parse(s string) (Hash, error) {
	d, err := digest.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if string(d.Algorithm()) != strings.ToLower(string(d.Algorithm())) || d.Encoded() != strings.ToLower(d.Encoded()) {
		return "", fmt.Errorf("invalid hash %q: algorithm and digest must be lowercase", s)
	}
	return d, nil
}

// Bytes computes the hash of data using alg.
func Bytes(alg string, data []byte) (Hash, error) {
	a, ok := Algorithm(alg)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
	return a.FromBytes(data), nil
}

// File streams path through alg without loading it fully into memory.
func File(alg string, path string) (Hash, error) {
	a, ok := Algorithm(alg)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return a.FromReader(f)
}

// Reader streams r through alg.
func Reader(alg string, r io.Reader) (Hash, error) {
	a, ok := Algorithm(alg)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
	return a.FromReader(r)
}

// ErrUnsupportedAlgorithm is returned when a hash algorithm is not one this
// build supports.
var ErrUnsupportedAlgorithm = fmt.Errorf("unsupported hash algorithm")

// MismatchError reports that the content being validated does not match the
// hash it was expected to have. What is a short human description of what
// was being hashed (e.g. "metadata for 'id' from 'loc'", or a file path).
type MismatchError struct {
	What     string
	Expected Hash
	Actual   Hash
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("hash of %s does not match: expected %s but found %s", e.What, e.Expected, e.Actual)
}

// ValidateBytes recomputes the hash of data using expected's algorithm and
// fails with *MismatchError if it disagrees with expected.
func ValidateBytes(data []byte, expected Hash, what string) error {
	actual, err := Bytes(string(expected.Algorithm()), data)
	if err != nil {
		return err
	}
	if actual != expected {
		return &MismatchError{What: what, Expected: expected, Actual: actual}
	}
	return nil
}

// ValidateString is ValidateBytes for a string, matching the shape of the
// check performed against metadata fetched from a location.
func ValidateString(content string, expected Hash, what string) error {
	return ValidateBytes([]byte(content), expected, what)
}

// ValidateFile recomputes the hash of the file at path and fails with
// *MismatchError if it disagrees with expected.
func ValidateFile(path string, expected Hash, what string) error {
	actual, err := File(string(expected.Algorithm()), path)
	if err != nil {
		return err
	}
	if actual != expected {
		return &MismatchError{What: what, Expected: expected, Actual: actual}
	}
	return nil
}
