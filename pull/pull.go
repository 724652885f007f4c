// Package pull implements the two pull operations of the location sync
// protocol: pulling metadata (discovering and verifying what peers claim to
// hold) and pulling packets (fetching files for specific ids, optionally
// closed over their dependencies). Grounded on pyorderly's
// outpack/location.py (pull_metadata side; the pull_packet side has no
// surviving implementation file in original_source, only
// tests/test_location_pull.py, so its plan/execution shape here follows
// spec.md §4.j directly, cross-checked against that test file's
// assertions).
package pull

import (
	"context"
	"fmt"
	"sort"

	outpackerr "github.com/reside-ic/outpack-go/errors"
	"github.com/reside-ic/outpack-go/internal/dlog"
	"github.com/reside-ic/outpack-go/internal/hash"
	"github.com/reside-ic/outpack-go/internal/metrics"
	"github.com/reside-ic/outpack-go/location"
	"github.com/reside-ic/outpack-go/metadata"
	"github.com/reside-ic/outpack-go/root"
)

// Metadata pulls and verifies metadata from locationNames (nil means every
// configured non-local, non-orphan location), then records membership for
// whatever each location reports, per spec.md §4.j. A location whose
// reported hash for an already-known packet conflicts with what another
// location already provided is rejected outright; nothing from it is
// marked known.
func Metadata(ctx context.Context, r *root.Root, locationNames []string) error {
	names, err := location.ResolveValid(r, locationNames, len(locationNames) == 0, false, false, true)
	if err != nil {
		return err
	}

	for _, name := range names {
		if err := pullMetadataFrom(ctx, r, name); err != nil {
			return err
		}
	}
	return nil
}

func pullMetadataFrom(ctx context.Context, r *root.Root, name string) error {
	driver, err := location.Open(r, name)
	if err != nil {
		return err
	}
	if err := driver.Open(ctx); err != nil {
		return err
	}
	defer driver.Close()

	knownThere, err := driver.ListPackets(ctx)
	if err != nil {
		return err
	}

	allMeta, err := r.Index.AllMetadata()
	if err != nil {
		return err
	}
	var toFetch []string
	for id := range knownThere {
		if _, ok := allMeta[id]; !ok {
			toFetch = append(toFetch, id)
		}
	}
	sort.Strings(toFetch)

	for _, id := range toFetch {
		reported := knownThere[id]
		metas, err := driver.Metadata(ctx, []string{id})
		if err != nil {
			return err
		}
		content := metas[id]
		what := fmt.Sprintf("metadata for '%s' from '%s'", id, name)
		if err := hash.ValidateString(content, reported.Hash, what); err != nil {
			return err
		}
		if err := r.Index.WriteMetadata(id, []byte(content)); err != nil {
			return err
		}
	}

	if err := checkConflicts(r, name, knownThere); err != nil {
		return err
	}

	existing, err := r.Index.Location(name)
	if err != nil {
		return err
	}
	for id, reported := range knownThere {
		if _, ok := existing[id]; ok {
			continue
		}
		loc := reported
		if err := r.Index.MarkKnown(name, id, &loc); err != nil {
			return err
		}
	}

	dlog.GetLogger(ctx).WithField("location", name).Infof("pulled metadata for %d new packet(s)", len(toFetch))
	return nil
}

// checkConflicts compares every packet already recorded as known somewhere
// (local or another location) against what name now claims for the same
// ids; a hash disagreement rejects name's metadata entirely.
func checkConflicts(r *root.Root, name string, knownThere map[string]metadata.PacketLocation) error {
	allLocations, err := r.Index.AllLocations()
	if err != nil {
		return err
	}

	conflictSet := map[string]bool{}
	for locName, packets := range allLocations {
		if locName == name {
			continue
		}
		for id, recorded := range packets {
			reported, ok := knownThere[id]
			if !ok {
				continue
			}
			if reported.Hash != recorded.Hash {
				conflictSet[id] = true
			}
		}
	}
	if len(conflictSet) == 0 {
		return nil
	}

	ids := make([]string, 0, len(conflictSet))
	for id := range conflictSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	metrics.MetadataConflicts.Inc()
	return &outpackerr.ConflictingMetadataError{Location: name, Ids: ids}
}
