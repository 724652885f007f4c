package config

import (
	"bytes"
	"encoding/json"
)

// ReservedLocal is the location name every repository has implicitly: the
// packets present in this repository's own store/archive.
const ReservedLocal = "local"

// ReservedOrphan is the location name reserved for packets whose originating
// location has since been removed from configuration.
const ReservedOrphan = "orphan"

// Reserved reports whether name is one of the names users cannot create,
// rename, or remove.
func Reserved(name string) bool {
	return name == ReservedLocal || name == ReservedOrphan
}

// Location is a single configured peer: a name, a driver type ("local",
// "path", "http", "https", "ssh"), and driver-specific arguments.
type Location struct {
	Name string            `json:"name"`
	Type string            `json:"type"`
	Args map[string]string `json:"args,omitempty"`
}

// Locations is an insertion-ordered name -> Location mapping. It serializes
// as a JSON array (preserving order) rather than an object, because a JSON
// object's key order is not something most encoders treat as meaningful,
// and the invariant that location order is preserved is load-bearing here
// (see Config).
type Locations struct {
	order  []string
	byName map[string]Location
}

// NewLocations builds an empty ordered location set.
func NewLocations() *Locations {
	return &Locations{byName: map[string]Location{}}
}

// Names returns the locations in insertion order.
func (l *Locations) Names() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Get looks up a location by name.
func (l *Locations) Get(name string) (Location, bool) {
	loc, ok := l.byName[name]
	return loc, ok
}

// Has reports whether name is configured.
func (l *Locations) Has(name string) bool {
	_, ok := l.byName[name]
	return ok
}

// Len reports the number of configured locations.
func (l *Locations) Len() int {
	return len(l.order)
}

// Add appends a new location. It does not check for reserved names or
// duplicates; callers (the location package) are responsible for that.
func (l *Locations) Add(loc Location) {
	if !l.Has(loc.Name) {
		l.order = append(l.order, loc.Name)
	}
	l.byName[loc.Name] = loc
}

// Remove deletes a location, preserving the relative order of the rest.
func (l *Locations) Remove(name string) {
	if !l.Has(name) {
		return
	}
	delete(l.byName, name)
	for i, n := range l.order {
		if n == name {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// Rename changes a location's key and its Name field in place, preserving
// its position.
func (l *Locations) Rename(oldName, newName string) {
	loc, ok := l.byName[oldName]
	if !ok {
		return
	}
	delete(l.byName, oldName)
	loc.Name = newName
	l.byName[newName] = loc
	for i, n := range l.order {
		if n == oldName {
			l.order[i] = newName
			break
		}
	}
}

// MarshalJSON encodes the locations as an ordered array.
func (l *Locations) MarshalJSON() ([]byte, error) {
	list := make([]Location, 0, len(l.order))
	for _, name := range l.order {
		list = append(list, l.byName[name])
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(list); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	return out[:len(out)-1], nil // trim the trailing newline Encode adds
}

// UnmarshalJSON decodes the ordered array form back into a Locations value.
func (l *Locations) UnmarshalJSON(data []byte) error {
	var list []Location
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	l.order = nil
	l.byName = map[string]Location{}
	for _, loc := range list {
		l.Add(loc)
	}
	return nil
}
