package types

import (
	"slices"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

// Label is a single key-value pair attached to a Target.
type Label struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Labels is an ordered set of labels. Names are unique within a set and the
// slice is kept sorted by name so that two label sets with the same content
// always compare and hash identically regardless of discovery order.
type Labels []Label

// NewLabels builds a Labels value from a map, sorted by name.
//
// Parameters:
//   - m: Label names mapped to values
//
// Returns:
//   - Labels: Sorted label set (nil if m is empty)
func NewLabels(m map[string]string) Labels {
	if len(m) == 0 {
		return nil
	}

	ls := make(Labels, 0, len(m))
	for name, value := range m {
		ls = append(ls, Label{Name: name, Value: value})
	}
	ls.Sort()

	return ls
}

// Sort orders the labels by name. Labels must be sorted before hashing or
// comparison; NewLabels and Target.Validate handle this for callers.
func (ls Labels) Sort() {
	slices.SortFunc(ls, func(a, b Label) int {
		return strings.Compare(a.Name, b.Name)
	})
}

// Get returns the value for a label name, or "" when absent.
func (ls Labels) Get(name string) string {
	for _, l := range ls {
		if l.Name == name {
			return l.Value
		}
	}

	return ""
}

// Equal reports whether two label sets have identical content.
func (ls Labels) Equal(other Labels) bool {
	if len(ls) != len(other) {
		return false
	}
	for i := range ls {
		if ls[i] != other[i] {
			return false
		}
	}

	return true
}

// HashKey derives the 64-bit routing key for this label set.
//
// Only the values of the selector names participate; a nil or empty selector
// folds every label value. Each value is folded into a seeded xxh3 hash where
// the previous hash becomes the seed for the next value. This is
// zero-allocation and stable: identical selected values always produce the
// same key, across processes and restarts.
//
// Parameters:
//   - selector: Label names that form the key (nil means all labels)
//   - seed: Base hash seed (0 for the default)
//
// Returns:
//   - uint64: Deterministic routing key
func (ls Labels) HashKey(selector []string, seed uint64) uint64 {
	h := seed
	if len(selector) == 0 {
		for _, l := range ls {
			h = xxh3.HashStringSeed(l.Value, h)
		}

		return h
	}

	for _, name := range selector {
		// Missing selector labels fold the empty string so that targets
		// lacking a label still hash deterministically.
		h = xxh3.HashStringSeed(ls.Get(name), h)
	}

	return h
}

// Target represents a scrape target or metric stream known to the router.
//
// A target is the unit of shard assignment. The registry owns its lifecycle:
// it is created on discovery, refreshed on re-discovery, and removed after
// the configured absence timeout.
type Target struct {
	// ID uniquely identifies the target (opaque to the router).
	ID string `json:"id"`

	// Labels carries the identifying label set, sorted by name.
	Labels Labels `json:"labels"`

	// LastSeen is the time of the most recent discovery notification.
	LastSeen time.Time `json:"lastSeen"`
}

// Validate checks the target for routing suitability and normalizes its
// label order. It returns ErrInvalidLabelSet when the ID is empty, a label
// name is empty, or a label name appears more than once.
func (t *Target) Validate() error {
	if t.ID == "" {
		return ErrInvalidLabelSet
	}

	t.Labels.Sort()
	for i, l := range t.Labels {
		if l.Name == "" {
			return ErrInvalidLabelSet
		}
		if i > 0 && l.Name == t.Labels[i-1].Name {
			return ErrInvalidLabelSet
		}
	}

	return nil
}

// HashKey derives the routing key for this target from the configured label
// selector. See Labels.HashKey.
func (t Target) HashKey(selector []string, seed uint64) uint64 {
	return t.Labels.HashKey(selector, seed)
}
