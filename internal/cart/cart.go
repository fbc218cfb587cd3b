// Package cart holds the shopping cart value and its transitions. Every
// operation returns a new Cart and leaves its input untouched.
package cart

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"

	"github.com/loqalabs/kadai/internal/catalog"
)

type Entry struct {
	Item     catalog.Item `json:"item"`
	Quantity int          `json:"quantity"`
}

func (e Entry) Subtotal() decimal.Decimal {
	return e.Item.Price.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// Cart keeps entries in insertion order with at most one entry per item name
// and every quantity at least 1.
type Cart struct {
	entries []Entry
}

func (c Cart) Len() int { return len(c.entries) }

func (c Cart) Empty() bool { return len(c.entries) == 0 }

func (c Cart) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c Cart) At(index int) (Entry, bool) {
	if index < 0 || index >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[index], true
}

// Quantity returns the quantity held for the named item, 0 if absent.
func (c Cart) Quantity(name string) int {
	if i := c.indexOf(name); i >= 0 {
		return c.entries[i].Quantity
	}
	return 0
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range c.entries {
		total = total.Add(e.Subtotal())
	}
	return total
}

func (c Cart) indexOf(name string) int {
	for i, e := range c.entries {
		if e.Item.Name == name {
			return i
		}
	}
	return -1
}

func (c Cart) MarshalJSON() ([]byte, error) {
	entries := c.entries
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(struct {
		Entries []Entry     `json:"entries"`
		Total   json.Number `json:"total"`
	}{entries, json.Number(c.Total().String())})
}

// Add appends item with quantity 1, or bumps the quantity of the entry that
// already carries the same name. Items with a negative price are refused.
func Add(c Cart, item catalog.Item) Cart {
	if item.Price.IsNegative() {
		return c
	}
	next := c.Entries()
	if i := c.indexOf(item.Name); i >= 0 {
		next[i].Quantity++
		return Cart{entries: next}
	}
	return Cart{entries: append(next, Entry{Item: item, Quantity: 1})}
}

// UpdateQuantity adds delta to the entry at index, never going below 1 and
// saturating at math.MaxInt.
func UpdateQuantity(c Cart, index, delta int) Cart {
	if index < 0 || index >= len(c.entries) {
		return c
	}
	next := c.Entries()
	q := next[index].Quantity
	if delta > 0 && q > math.MaxInt-delta {
		next[index].Quantity = math.MaxInt
	} else {
		next[index].Quantity = max(1, q+delta)
	}
	return Cart{entries: next}
}

func Remove(c Cart, index int) Cart {
	if index < 0 || index >= len(c.entries) {
		return c
	}
	next := make([]Entry, 0, len(c.entries)-1)
	next = append(next, c.entries[:index]...)
	next = append(next, c.entries[index+1:]...)
	return Cart{entries: next}
}

