// Package draft simulates a snake draft: teams take turns picking items from
// a shared pool under per-category limits, and every pick is recorded as a
// learning transition.
package draft

import (
	"errors"
	"fmt"
)

// Item is one draftable entry. Items are immutable once loaded.
type Item struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Category int     `json:"category"`
	Value    float64 `json:"value"`
}

// Categories is the fixed, ordered category enumeration. A category's index is
// the action a category-mode policy emits for it.
type Categories []string

// Index returns the position of name.
func (c Categories) Index(name string) (int, bool) {
	for i, n := range c {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func (c Categories) Validate() error {
	if len(c) == 0 {
		return errors.New("at least one category is required")
	}
	seen := make(map[string]struct{}, len(c))
	for _, n := range c {
		if n == "" {
			return errors.New("category names cannot be empty")
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("duplicate category %q", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}
