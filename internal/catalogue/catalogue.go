// Package catalogue holds the working set of batches that may still be
// inspected: batches from the production registry whose identifier carries
// the current-period marker and that are not yet in the inspection log.
package catalogue

import (
	"strings"

	"kontrol/internal/schema"
)

// DefaultMarker is the eligibility marker for the 2025 season.
const DefaultMarker = "/25"

// Batch is one production run from the registry.
type Batch struct {
	ID   string
	Name string
}

// Catalogue is an ordered, de-duplicated set of eligible batches. It is
// immutable; reload after every persist to pick up new exclusions.
type Catalogue struct {
	batches []Batch
	index   map[string]int
}

// Load keeps the batches whose identifier contains marker and is not in
// excluded, in source order, first occurrence wins. An empty marker keeps
// every identifier. Identifiers are compared after schema.Canonical.
func Load(source []Batch, excluded map[string]struct{}, marker string) *Catalogue {
	c := &Catalogue{index: make(map[string]int)}
	marker = schema.Canonical(marker)
	for _, b := range source {
		id := schema.Canonical(b.ID)
		if id == "" || !strings.Contains(id, marker) {
			continue
		}
		if _, skip := excluded[id]; skip {
			continue
		}
		if _, dup := c.index[id]; dup {
			continue
		}
		c.index[id] = len(c.batches)
		c.batches = append(c.batches, Batch{ID: id, Name: strings.TrimSpace(b.Name)})
	}
	return c
}

// Empty returns a catalogue with no batches, used when the registry is
// unavailable.
func Empty() *Catalogue { return &Catalogue{index: map[string]int{}} }

// Len returns the number of inspectable batches.
func (c *Catalogue) Len() int { return len(c.batches) }

// Batches returns a copy of the batches in source order.
func (c *Catalogue) Batches() []Batch {
	out := make([]Batch, len(c.batches))
	copy(out, c.batches)
	return out
}

// IDs returns the identifiers in source order.
func (c *Catalogue) IDs() []string {
	out := make([]string, len(c.batches))
	for i, b := range c.batches {
		out[i] = b.ID
	}
	return out
}

// Contains reports whether id is inspectable.
func (c *Catalogue) Contains(id string) bool {
	_, ok := c.index[schema.Canonical(id)]
	return ok
}

// ResolveName returns the descriptive name of id, or "" when id is empty or
// unknown. The result only feeds a display field, so absence is not an error.
func (c *Catalogue) ResolveName(id string) string {
	i, ok := c.index[schema.Canonical(id)]
	if !ok {
		return ""
	}
	return c.batches[i].Name
}

// Set builds a canonical identifier set, the shape Load expects for
// exclusions.
func Set(ids ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = schema.Canonical(id); id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}
