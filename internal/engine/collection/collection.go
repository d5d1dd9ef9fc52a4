package collection

import (
	"errors"

	"github.com/rendis/mapharvest/internal/model"
)

var ErrAlreadySeeded = errors.New("collection already seeded or in use")

// Collection is an ordered, insert-only set of businesses for one search key.
// It is not safe for concurrent use; a run owns its collection exclusively.
type Collection struct {
	policy KeyPolicy
	items  []model.Business
	seen   map[Fingerprint]struct{}
	seeded int
	added  int
	locked bool
}

// New creates an empty collection. A nil policy means DefaultPolicy.
func New(policy KeyPolicy) *Collection {
	if len(policy) == 0 {
		policy = DefaultPolicy
	}
	return &Collection{
		policy: policy,
		seen:   make(map[Fingerprint]struct{}),
	}
}

// Seed places previously persisted businesses at the front of the collection
// and marks their fingerprints as seen. It must run once, before any Insert.
// Seeded records are kept verbatim, even if two of them share a fingerprint.
func (c *Collection) Seed(existing []model.Business) error {
	if c.locked {
		return ErrAlreadySeeded
	}
	c.locked = true
	for _, b := range existing {
		c.items = append(c.items, b)
		c.seen[c.policy.Fingerprint(b)] = struct{}{}
	}
	c.seeded = len(existing)
	return nil
}

// Insert appends b unless its fingerprint was already seen. It reports
// whether b was new.
func (c *Collection) Insert(b model.Business) bool {
	c.locked = true
	fp := c.policy.Fingerprint(b)
	if _, dup := c.seen[fp]; dup {
		return false
	}
	c.seen[fp] = struct{}{}
	c.items = append(c.items, b)
	c.added++
	return true
}

// Contains reports whether a business with b's fingerprint is present.
func (c *Collection) Contains(b model.Business) bool {
	_, ok := c.seen[c.policy.Fingerprint(b)]
	return ok
}

func (c *Collection) Len() int    { return len(c.items) }
func (c *Collection) Seeded() int { return c.seeded }
func (c *Collection) Added() int  { return c.added }

// Businesses returns the contents in insertion order: seeded records first,
// then the ones accepted by Insert.
func (c *Collection) Businesses() []model.Business {
	out := make([]model.Business, len(c.items))
	copy(out, c.items)
	return out
}

// Rows flattens the collection into a header row followed by one row per
// business.
func (c *Collection) Rows() [][]string {
	rows := make([][]string, 0, len(c.items)+1)
	rows = append(rows, model.Header())
	for _, b := range c.items {
		rows = append(rows, b.Values())
	}
	return rows
}
