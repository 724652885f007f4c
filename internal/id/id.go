// Package id generates and parses packet identifiers.
//
// A PacketId has the form "YYYYMMDD-HHMMSS-XXXXXXXX": a UTC timestamp at
// one-second resolution, followed by 8 hex characters derived from random
// bytes and the sub-second millisecond component of the time the id was
// minted. IDs are lexicographically ordered roughly by creation time, which
// is relied on elsewhere as a topological approximation over dependency
// chains: see pull and push.
package id

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

const layout = "20060102-150405"

var pattern = regexp.MustCompile(`^(\d{8})-(\d{6})-([0-9a-f]{8})$`)

// New mints a fresh id using the current UTC time.
func New() string {
	return NewAt(time.Now().UTC())
}

// NewAt mints an id as though it were created at t (t is converted to UTC).
// Exposed separately from New so callers needing deterministic ids in tests
// can supply a fixed time.
func NewAt(t time.Time) string {
	t = t.UTC()

	var suffix [4]byte
	if _, err := rand.Read(suffix[0:2]); err != nil {
		// crypto/rand.Read does not fail on supported platforms; if it
		// somehow does, degrade to a fixed value rather than panicking on
		// id allocation.
		suffix[0], suffix[1] = 0, 0
	}
	ms := uint16(t.Nanosecond() / int(time.Millisecond))
	binary.BigEndian.PutUint16(suffix[2:4], ms)

	return fmt.Sprintf("%s-%s", t.Format(layout), hex.EncodeToString(suffix[:]))
}

// Valid reports whether s has the well-formed shape of a packet id.
func Valid(s string) bool {
	return pattern.MatchString(s)
}

// Time extracts the UTC start time encoded in a well-formed id. The
// sub-second component is not recoverable (only millisecond-granularity
// tie-break information survives, folded into the random suffix) so the
// returned time always has a zero nanosecond component.
func Time(s string) (time.Time, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("invalid packet id %q", s)
	}
	t, err := time.ParseInLocation(layout, m[1]+"-"+m[2], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid packet id %q: %w", s, err)
	}
	return t, nil
}
