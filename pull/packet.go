package pull

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/reside-ic/outpack-go/config"
	outpackerr "github.com/reside-ic/outpack-go/errors"
	"github.com/reside-ic/outpack-go/internal/dlog"
	"github.com/reside-ic/outpack-go/internal/hash"
	"github.com/reside-ic/outpack-go/internal/metrics"
	"github.com/reside-ic/outpack-go/location"
	"github.com/reside-ic/outpack-go/metadata"
	"github.com/reside-ic/outpack-go/root"
)

// Packet pulls the files for ids (and, when recursive, their transitive
// dependencies) from whichever of locationNames (nil means every
// configured non-local location) already claims them via prior metadata
// pulls. It returns the ids newly unpacked, in fetch order; an id already
// present locally is skipped silently.
func Packet(ctx context.Context, r *root.Root, ids []string, recursive *bool, locationNames []string) ([]string, error) {
	effectiveRecursive, err := resolveRecursive(r, recursive)
	if err != nil {
		return nil, err
	}

	candidates, err := location.ResolveValid(r, locationNames, len(locationNames) == 0, false, false, true)
	if err != nil {
		return nil, err
	}

	allMeta, err := r.Index.AllMetadata()
	if err != nil {
		return nil, err
	}

	var wanted []string
	if effectiveRecursive {
		wanted = closure(ids, allMeta)
	} else {
		wanted = closureOneLevel(ids)
	}

	plan, err := buildPlan(r, ids, wanted, candidates)
	if err != nil {
		return nil, err
	}

	var newlyUnpacked []string
	local, err := r.Index.Location(config.ReservedLocal)
	if err != nil {
		return nil, err
	}

	for _, id := range plan.order {
		if _, ok := local[id]; ok {
			continue
		}
		if err := fetchPacket(ctx, r, id, plan.source[id]); err != nil {
			return newlyUnpacked, err
		}
		newlyUnpacked = append(newlyUnpacked, id)
		metrics.PacketsUnpacked.Inc()
	}
	return newlyUnpacked, nil
}

func resolveRecursive(r *root.Root, recursive *bool) (bool, error) {
	if r.Config.Core.RequireCompleteTree {
		if recursive != nil && !*recursive {
			return false, outpackerr.ErrRecursionRequired
		}
		return true, nil
	}
	if recursive != nil {
		return *recursive, nil
	}
	return false, nil
}

// closureOneLevel is the non-recursive case: only the requested ids
// themselves are wanted, no dependency expansion.
func closureOneLevel(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}

// closure expands ids to their transitive dependency set, using whatever
// metadata is locally known; an id whose metadata is absent is included as
// a leaf (it still needs to be resolved) but is not expanded further. The
// result is sorted lexicographically, which approximates dependency order
// (see internal/id).
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

type plan struct {
	order  []string
	source map[string]string // id -> location name
}

// buildPlan chooses, for each wanted id, the first candidate location
// (in order) whose recorded membership claims it. Any id nobody claims is
// reported via PacketNotFoundError, distinguishing directly-requested ids
// from ids pulled in only as dependencies.
func buildPlan(r *root.Root, requested, wanted, candidates []string) (*plan, error) {
	requestedSet := map[string]bool{}
	for _, id := range requested {
		requestedSet[id] = true
	}

	source := map[string]string{}
	var missing []string
	for _, id := range wanted {
		for _, name := range candidates {
			members, err := r.Index.Location(name)
			if err != nil {
				return nil, err
			}
			if _, ok := members[id]; ok {
				source[id] = name
				break
			}
		}
		if _, ok := source[id]; !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		primary := missing[0]
		for _, id := range missing {
			if requestedSet[id] {
				primary = id
				break
			}
		}
		return nil, &outpackerr.PacketNotFoundError{Id: primary, Locations: candidates, MissingDepends: len(missing) - 1}
	}

	return &plan{order: wanted, source: source}, nil
}

func fetchPacket(ctx context.Context, r *root.Root, id, locationName string) error {
	meta, err := r.Index.Metadata(id)
	if err != nil {
		return err
	}

	driver, err := location.Open(r, locationName)
	if err != nil {
		return err
	}
	if err := driver.Open(ctx); err != nil {
		return err
	}
	defer driver.Close()

	found, toFetch := tally(r, meta)
	var fetchedBytes int64
	for _, f := range toFetch {
		fetchedBytes += f.Size
	}
	dlog.GetLogger(ctx).WithField("location", locationName).Infof(
		"Found %d file(s) in the file store; need to fetch %d file(s) (%d bytes) from '%s'",
		found, len(toFetch), fetchedBytes, locationName)

	if r.Files != nil {
		for _, f := range toFetch {
			if err := fetchIntoFileStore(ctx, driver, r, meta, f); err != nil {
				return err
			}
		}
		if r.Archive != nil {
			if _, err := r.Archive.ImportPacketFromStore(meta, r.Files); err != nil {
				return err
			}
		}
	} else if r.Archive != nil {
		for _, f := range toFetch {
			dest := r.Archive.FilePath(meta, f.Path)
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			if err := driver.FetchFile(ctx, meta, f, dest); err != nil {
				return err
			}
			if err := hash.ValidateFile(dest, f.Hash, f.Path); err != nil {
				return err
			}
		}
	}

	metaHash, err := meta.Hash(r.Config.Core.HashAlgorithm)
	if err != nil {
		return err
	}
	for _, f := range toFetch {
		metrics.FilesTransferred.WithValues(metrics.DirectionPull).Inc()
		metrics.BytesTransferred.WithValues(metrics.DirectionPull).Inc(float64(f.Size))
	}
	return r.MarkKnown(config.ReservedLocal, id, metaHash, time.Now())
}

// tally splits meta's declared files into those already present in the
// local FileStore and those that must be fetched, for the user-facing
// report emitted before fetching begins.
func tally(r *root.Root, meta *metadata.Core) (found int, toFetch []metadata.PacketFile) {
	if r.Files == nil {
		return 0, meta.Files
	}
	for _, f := range meta.Files {
		if r.Files.Exists(f.Hash) {
			found++
		} else {
			toFetch = append(toFetch, f)
		}
	}
	return found, toFetch
}

func fetchIntoFileStore(ctx context.Context, driver location.Driver, r *root.Root, meta *metadata.Core, f metadata.PacketFile) error {
	tmp, err := os.CreateTemp("", "outpack-pull-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	if err := driver.FetchFile(ctx, meta, f, tmpName); err != nil {
		return err
	}
	if err := hash.ValidateFile(tmpName, f.Hash, filepath.Join(meta.Name, meta.Id, f.Path)); err != nil {
		return err
	}
	_, err = r.Files.Put(tmpName)
	return err
}
