// Package push implements the push half of the location sync protocol:
// building a plan of packets and files a destination location is missing,
// then uploading them in dependency order. Grounded on pyorderly's
// outpack/location_push.py.
package push

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/reside-ic/outpack-go/config"
	outpackerr "github.com/reside-ic/outpack-go/errors"
	"github.com/reside-ic/outpack-go/internal/dlog"
	"github.com/reside-ic/outpack-go/internal/hash"
	"github.com/reside-ic/outpack-go/internal/metrics"
	"github.com/reside-ic/outpack-go/location"
	"github.com/reside-ic/outpack-go/metadata"
	"github.com/reside-ic/outpack-go/root"
)

// Plan describes the work a push will perform: the packets that need to be
// sent, in dependency order, and the distinct file hashes among them the
// destination does not already hold.
type Plan struct {
	Packets []string
	Files   []hash.Hash
}

// Packets pushes ids (and their transitive dependencies) to locationName,
// returning the plan that was executed. Everything referenced must already
// be known locally; push never reaches outside the local root for sources.
func Packets(ctx context.Context, r *root.Root, ids []string, locationName string) (*Plan, error) {
	names, err := location.ResolveValid(r, []string{locationName}, false, false, false, false)
	if err != nil {
		return nil, err
	}
	name := names[0]

	driver, err := location.Open(r, name)
	if err != nil {
		return nil, err
	}
	if err := driver.Open(ctx); err != nil {
		return nil, err
	}
	defer driver.Close()

	plan, err := BuildPlan(ctx, r, driver, ids)
	if err != nil {
		return nil, err
	}

	for _, h := range plan.Files {
		path, err := r.FindFileByHash(h, plan.Packets)
		if err != nil {
			return nil, fmt.Errorf("did not find suitable file for push, can't push this packet: %w", err)
		}
		if err := driver.PushFile(ctx, path, h); err != nil {
			return nil, err
		}
		metrics.FilesTransferred.WithValues(metrics.DirectionPush).Inc()
	}

	local, err := r.Index.Location(config.ReservedLocal)
	if err != nil {
		return nil, err
	}
	for _, id := range plan.Packets {
		loc, ok := local[id]
		if !ok {
			return nil, &outpackerr.NotFoundError{Kind: outpackerr.NotFoundPacket, Name: id}
		}
		path := filepath.Join(r.Path, ".outpack", "metadata", id)
		if err := driver.PushMetadata(ctx, path, loc.Hash); err != nil {
			return nil, err
		}
	}

	dlog.GetLogger(ctx).WithField("location", name).Infof(
		"pushed %d packet(s), %d file(s)", len(plan.Packets), len(plan.Files))
	return plan, nil
}

// BuildPlan expands ids to their full transitive dependency set, asks
// driver which of those packets and which of their files it is missing, and
// orders the missing packets lexicographically as an approximation of
// dependency order (packet ids are date-time prefixed, see internal/id).
func BuildPlan(ctx context.Context, r *root.Root, driver location.Driver, ids []string) (*Plan, error) {
	allMeta, err := r.Index.AllMetadata()
	if err != nil {
		return nil, err
	}

	allPackets := closure(ids, allMeta)

	missingPackets, err := driver.ListUnknownPackets(ctx, allPackets)
	if err != nil {
		return nil, err
	}

	fileSet := map[hash.Hash]bool{}
	for _, id := range missingPackets {
		m, ok := allMeta[id]
		if !ok {
			continue
		}
		for _, f := range m.Files {
			fileSet[f.Hash] = true
		}
	}
	allFiles := make([]hash.Hash, 0, len(fileSet))
	for h := range fileSet {
		allFiles = append(allFiles, h)
	}
	sort.Slice(allFiles, func(i, j int) bool { return allFiles[i] < allFiles[j] })

	missingFiles, err := driver.ListUnknownFiles(ctx, allFiles)
	if err != nil {
		return nil, err
	}

	orderedPackets := append([]string(nil), missingPackets...)
	sort.Strings(orderedPackets)

	return &Plan{Packets: orderedPackets, Files: missingFiles}, nil
}

// closure expands ids to their full transitive dependency set using
// already-known local metadata; unlike pull's closure, every id here is
// expected to resolve (push only ever deals in locally-authored packets).
func closure(ids []string, meta map[string]*metadata.Core) []string {
	seen := map[string]bool{}
	var walk func(id string)
	walk = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		m, ok := meta[id]
		if !ok {
			return
		}
		for _, d := range m.Depends {
			walk(d.Packet)
		}
	}
	for _, id := range ids {
		walk(id)
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
