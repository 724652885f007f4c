// Package search resolves outpack's minimal query language against an
// index: "latest", "latest(parameter:<name> == <literal>)", or a literal
// packet id. The small regex-driven grammar mirrors the way distribution's
// own reference package parses the compact "name:tag" / "name@digest"
// grammar out of a single string rather than building a general parser.
package search

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	outpackerr "github.com/reside-ic/outpack-go/errors"
	"github.com/reside-ic/outpack-go/index"
	"github.com/reside-ic/outpack-go/internal/id"
)

// Universe selects which packet ids a query may match.
type Universe int

const (
	// Local restricts matches to packets already unpacked in this
	// repository (index.unpacked()).
	Local Universe = iota
	// LocalAndRemote additionally includes every id any configured
	// location has reported, via pull_metadata, under any location name.
	LocalAndRemote
)

var parameterQuery = regexp.MustCompile(`^latest\(\s*parameter:([A-Za-z0-9_.]+)\s*==\s*(.+?)\s*\)$`)

// Resolve evaluates query against idx, restricted to universe, and returns
// the single matching packet id.
func Resolve(idx *index.Index, query string, universe Universe) (string, error) {
	query = strings.TrimSpace(query)

	switch {
	case query == "latest":
		return latest(idx, universe, nil)

	case parameterQuery.MatchString(query):
		m := parameterQuery.FindStringSubmatch(query)
		name := m[1]
		want := parseLiteral(m[2])
		return latest(idx, universe, func(idx *index.Index, candidate string) (bool, error) {
			meta, err := idx.Metadata(candidate)
			if err != nil {
				return false, nil
			}
			v, ok := meta.Parameters[name]
			if !ok {
				return false, nil
			}
			return parametersEqual(v, want), nil
		})

	case id.Valid(query):
		all, err := ids(idx, universe)
		if err != nil {
			return "", err
		}
		for _, candidate := range all {
			if candidate == query {
				return query, nil
			}
		}
		return "", &outpackerr.NotFoundError{Kind: outpackerr.NotFoundPacket, Name: query}

	default:
		return "", fmt.Errorf("invalid query: '%s'", query)
	}
}

// Unique is Resolve under another name, matching spec.md's search_unique:
// every query form this grammar supports already resolves to at most one
// id, so failing on zero matches (which Resolve already does) is the whole
// of "fails unless exactly one match".
func Unique(idx *index.Index, query string, universe Universe) (string, error) {
	return Resolve(idx, query, universe)
}

func ids(idx *index.Index, universe Universe) ([]string, error) {
	if universe == Local {
		return idx.Unpacked()
	}
	all, err := idx.AllLocations()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, packets := range all {
		for packetID := range packets {
			if !seen[packetID] {
				seen[packetID] = true
				out = append(out, packetID)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func latest(idx *index.Index, universe Universe, filter func(*index.Index, string) (bool, error)) (string, error) {
	all, err := ids(idx, universe)
	if err != nil {
		return "", err
	}
	best := ""
	for _, candidate := range all {
		if filter != nil {
			ok, err := filter(idx, candidate)
			if err != nil {
				return "", err
			}
			if !ok {
				continue
			}
		}
		if candidate > best {
			best = candidate
		}
	}
	if best == "" {
		return "", &outpackerr.NotFoundError{Kind: outpackerr.NotFoundPacket, Name: "latest", Hint: "no packets matched the query"}
	}
	return best, nil
}

func parseLiteral(s string) interface{} {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	default:
		return s
	}
}

func parametersEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return av == bv
		}
	case string:
		if bv, ok := b.(string); ok {
			return av == bv
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return av == bv
		}
	}
	return false
}
