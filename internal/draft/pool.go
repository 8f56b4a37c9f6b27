package draft

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"
)

// Pool is the shrinking set of draftable items. The inventory is sorted by
// descending value once at construction and each item's ID is its position in
// that order, so lower IDs are always worth at least as much within a
// category. Not safe for concurrent use.
type Pool struct {
	inventory  []Item
	byCategory [][]int // item IDs per category, value order
	available  []bool
	left       []int // available items per category
	remaining  int
	maxValue   []float64
}

// NewPool sorts items by value (ties by name) and assigns IDs. Incoming IDs
// are ignored.
func NewPool(items []Item, categories int) (*Pool, error) {
	if categories <= 0 {
		return nil, fmt.Errorf("pool needs at least one category, got %d", categories)
	}
	inv := slices.Clone(items)
	for _, it := range inv {
		if it.Category < 0 || it.Category >= categories {
			return nil, fmt.Errorf("item %q: category %d out of range", it.Name, it.Category)
		}
		if it.Value < 0 || math.IsNaN(it.Value) || math.IsInf(it.Value, 0) {
			return nil, fmt.Errorf("item %q: invalid value %v", it.Name, it.Value)
		}
	}
	slices.SortStableFunc(inv, func(a, b Item) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	p := &Pool{
		inventory:  inv,
		byCategory: make([][]int, categories),
		available:  make([]bool, len(inv)),
		left:       make([]int, categories),
		maxValue:   make([]float64, categories),
	}
	for i := range p.inventory {
		p.inventory[i].ID = i
		it := p.inventory[i]
		if len(p.byCategory[it.Category]) == 0 {
			p.maxValue[it.Category] = it.Value
		}
		p.byCategory[it.Category] = append(p.byCategory[it.Category], i)
	}
	p.Reset()
	return p, nil
}

// Reset restores the full inventory.
func (p *Pool) Reset() {
	for i := range p.available {
		p.available[i] = true
	}
	for c, ids := range p.byCategory {
		p.left[c] = len(ids)
	}
	p.remaining = len(p.inventory)
}

// Filter returns the available items of category in value order.
func (p *Pool) Filter(category int) []Item {
	if category < 0 || category >= len(p.byCategory) {
		return nil
	}
	ids := lo.Filter(p.byCategory[category], func(id int, _ int) bool { return p.available[id] })
	return lo.Map(ids, func(id int, _ int) Item { return p.inventory[id] })
}

// Best returns the most valuable available item of category.
func (p *Pool) Best(category int) (Item, bool) {
	if p.IsEmpty(category) {
		return Item{}, false
	}
	for _, id := range p.byCategory[category] {
		if p.available[id] {
			return p.inventory[id], true
		}
	}
	return Item{}, false
}

func (p *Pool) IsEmpty(category int) bool {
	if category < 0 || category >= len(p.left) {
		return true
	}
	return p.left[category] == 0
}

// Remove takes id out of the pool until the next Reset.
func (p *Pool) Remove(id int) error {
	if !p.Contains(id) {
		return fmt.Errorf("remove %d: %w", id, ErrNotFound)
	}
	p.available[id] = false
	p.left[p.inventory[id].Category]--
	p.remaining--
	return nil
}

func (p *Pool) Contains(id int) bool {
	return id >= 0 && id < len(p.available) && p.available[id]
}

// Get returns the inventory entry for id whether or not it is still available.
func (p *Pool) Get(id int) (Item, bool) {
	if id < 0 || id >= len(p.inventory) {
		return Item{}, false
	}
	return p.inventory[id], true
}

// Len is the number of items still available.
func (p *Pool) Len() int { return p.remaining }

// Size is the full inventory size.
func (p *Pool) Size() int { return len(p.inventory) }

// Categories is the number of categories the pool was built for.
func (p *Pool) Categories() int { return len(p.byCategory) }

// MaxValue is the highest value in category across the full inventory.
func (p *Pool) MaxValue(category int) float64 {
	if category < 0 || category >= len(p.maxValue) {
		return 0
	}
	return p.maxValue[category]
}

// Inventory returns a copy of every item in value order.
func (p *Pool) Inventory() []Item {
	return slices.Clone(p.inventory)
}

// Available returns the IDs still in the pool, in value order.
func (p *Pool) Available() []int {
	out := make([]int, 0, p.remaining)
	for id, ok := range p.available {
		if ok {
			out = append(out, id)
		}
	}
	return out
}
