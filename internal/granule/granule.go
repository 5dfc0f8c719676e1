// Package granule defines the value types exchanged between discovery
// crawlers and the dedup store: the Granule record, its Fingerprint, and the
// Batch a single discovery run produces.
package granule

import (
	"fmt"
	"sort"
	"strings"
)

// Fingerprint is the change signal for a granule. Both fields are opaque;
// they are compared for equality and never parsed.
type Fingerprint struct {
	ETag         string `json:"ETag" yaml:"ETag"`
	LastModified string `json:"Last-Modified" yaml:"Last-Modified"`
}

// Equal reports whether both fields match exactly.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.ETag == other.ETag && f.LastModified == other.LastModified
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("etag=%q modified=%q", f.ETag, f.LastModified)
}

// Granule is a remotely discovered data file.
//
// Link, Filename and the split modification columns are presentation only.
// They may be empty and never take part in change detection.
type Granule struct {
	Name        string      `json:"name"`
	Fingerprint Fingerprint `json:"fingerprint"`

	Link         string `json:"link,omitempty"`
	Filename     string `json:"filename,omitempty"`
	DateModified string `json:"date_modified,omitempty"`
	TimeModified string `json:"time_modified,omitempty"`
	Meridiem     string `json:"meridiem,omitempty"`
}

func (g Granule) String() string {
	return strings.Join([]string{g.Link, g.Filename, g.DateModified, g.TimeModified, g.Meridiem}, ", ")
}

// Batch maps granule name to fingerprint for one discovery run.
type Batch map[string]Fingerprint

// Names returns the batch keys in sorted order.
func (b Batch) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subset returns a batch restricted to the given names. Names missing from b
// are ignored.
func (b Batch) Subset(names []string) Batch {
	out := make(Batch, len(names))
	for _, name := range names {
		if fp, ok := b[name]; ok {
			out[name] = fp
		}
	}
	return out
}

// Granules expands the batch into records ordered by name.
func (b Batch) Granules() []Granule {
	names := b.Names()
	out := make([]Granule, 0, len(names))
	for _, name := range names {
		out = append(out, Granule{Name: name, Fingerprint: b[name]})
	}
	return out
}

// FromGranules builds a batch from records. Later records win when a name
// repeats.
func FromGranules(granules []Granule) Batch {
	b := make(Batch, len(granules))
	for _, g := range granules {
		b[g.Name] = g.Fingerprint
	}
	return b
}
