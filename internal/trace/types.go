// Package trace provides types for trace event collection and analysis
// over the memory proxy's activity: stores, fills, loads, prefetches,
// skips, patches, hooks, HLE calls, and branches.
package trace

import "time"

// Tag represents a trace event category.
// Tags are stored without # prefix; the prefix is added on rendering.
type Tag string

// Standard tags for trace events.
const (
	Store    Tag = "store"
	Fill     Tag = "fill"
	Load     Tag = "load"
	Prefetch Tag = "prefetch"
	Skip     Tag = "skip"
	Patch    Tag = "patch"
	Hook     Tag = "hook"
	HLE      Tag = "hle"
	Branch   Tag = "branch"
	Bulk     Tag = "bulk"
	Flash    Tag = "flash"
)

// Tags is a collection of tags with helper methods.
type Tags []Tag

// Has returns true if the tag collection contains the given tag.
func (t Tags) Has(tag Tag) bool {
	for _, x := range t {
		if x == tag {
			return true
		}
	}
	return false
}

// Add adds a tag if not already present.
func (t *Tags) Add(tag Tag) {
	if !t.Has(tag) {
		*t = append(*t, tag)
	}
}

// Strings returns tags as strings with # prefix for display.
func (t Tags) Strings() []string {
	out := make([]string, len(t))
	for i, tag := range t {
		out[i] = "#" + string(tag)
	}
	return out
}

// Raw returns tags as strings without # prefix.
func (t Tags) Raw() []string {
	out := make([]string, len(t))
	for i, tag := range t {
		out[i] = string(tag)
	}
	return out
}

// Primary returns the first tag or empty string if none.
func (t Tags) Primary() Tag {
	if len(t) > 0 {
		return t[0]
	}
	return ""
}

// Annotations holds key-value metadata for trace events.
type Annotations map[string]string

// Set adds or updates an annotation.
func (a Annotations) Set(k, v string) {
	a[k] = v
}

// Get retrieves an annotation value.
func (a Annotations) Get(k string) string {
	return a[k]
}

// Has returns true if the annotation exists.
func (a Annotations) Has(k string) bool {
	_, ok := a[k]
	return ok
}

// Event represents one memory-proxy trace event with rich metadata.
type Event struct {
	Address     uint64      // address the event concerns
	Tags        Tags        // multiple hashtags, first is primary
	Name        string      // the operation's short name (e.g. "store", "hle_00401000")
	Detail      string      // additional detail (e.g. "size=4 value=0xdeadbeef")
	Annotations Annotations // key-value metadata
	Timestamp   time.Time   // when the event occurred
}

// NewEvent creates a new trace event with the given parameters.
func NewEvent(address uint64, category, name, detail string) *Event {
	return &Event{
		Address:     address,
		Tags:        Tags{Tag(category)},
		Name:        name,
		Detail:      detail,
		Annotations: make(Annotations),
		Timestamp:   time.Now(),
	}
}

// AddTag adds a tag to the event.
func (e *Event) AddTag(tag Tag) {
	e.Tags.Add(tag)
}

// Annotate sets an annotation on the event.
func (e *Event) Annotate(k, v string) {
	if e.Annotations == nil {
		e.Annotations = make(Annotations)
	}
	e.Annotations.Set(k, v)
}

// PrimaryTag returns the primary (first) tag with # prefix.
func (e *Event) PrimaryTag() string {
	if len(e.Tags) > 0 {
		return "#" + string(e.Tags[0])
	}
	return ""
}

// Enricher enriches trace events based on category and name.
type Enricher func(e *Event)

// DefaultEnricher adds additional tags and annotations to a raw memory
// proxy event, based on its primary category.
func DefaultEnricher(e *Event) {
	if len(e.Tags) == 0 {
		return
	}

	switch e.Tags[0] {
	case Store:
		if e.Address < 0x00200000 {
			e.AddTag(Flash)
		}
	case Fill:
		e.AddTag(Bulk)
	case Skip:
		e.Annotate("suppressed", "true")
	case HLE:
		e.Annotate("console", "captured")
	case Branch:
		e.Annotate("target", e.Detail)
	}
}
