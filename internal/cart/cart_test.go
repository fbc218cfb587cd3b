package cart

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/loqalabs/kadai/internal/catalog"
)

func item(name, price string) catalog.Item {
	return catalog.Item{Name: name, Price: decimal.RequireFromString(price)}
}

func TestAddMergesByName(t *testing.T) {
	var c Cart
	c = Add(c, item("Rice", "60"))
	c = Add(c, item("Dal", "110"))
	c = Add(c, item("Rice", "60"))

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	first, _ := c.At(0)
	if first.Item.Name != "Rice" || first.Quantity != 2 {
		t.Fatalf("expected Rice x2 first, got %+v", first)
	}
	if !c.Total().Equal(decimal.NewFromInt(230)) {
		t.Fatalf("expected total 230, got %s", c.Total())
	}
}

func TestUpdateQuantityClamps(t *testing.T) {
	c := Add(Cart{}, item("Milk", "30"))
	c = UpdateQuantity(c, 0, 2)
	if c.Quantity("Milk") != 3 {
		t.Fatalf("expected 3, got %d", c.Quantity("Milk"))
	}
	c = UpdateQuantity(c, 0, -10)
	if c.Quantity("Milk") != 1 {
		t.Fatalf("expected clamp at 1, got %d", c.Quantity("Milk"))
	}
}

func TestUpdateQuantitySaturates(t *testing.T) {
	c := UpdateQuantity(Add(Cart{}, item("Rice", "25")), 0, 1)
	c = UpdateQuantity(c, 0, math.MaxInt)
	if got := c.Quantity("Rice"); got != math.MaxInt {
		t.Fatalf("expected quantity to saturate at MaxInt, got %d", got)
	}
	c = UpdateQuantity(c, 0, 1)
	if got := c.Quantity("Rice"); got != math.MaxInt {
		t.Fatalf("expected quantity to stay at MaxInt, got %d", got)
	}
	c = UpdateQuantity(c, 0, math.MinInt)
	if got := c.Quantity("Rice"); got != 1 {
		t.Fatalf("expected clamp at 1, got %d", got)
	}
}

func TestOutOfRangeIsNoop(t *testing.T) {
	c := Add(Cart{}, item("Milk", "30"))
	for _, index := range []int{-1, 1, 99} {
		if got := UpdateQuantity(c, index, 1); got.Quantity("Milk") != 1 || got.Len() != 1 {
			t.Fatalf("update at %d changed cart", index)
		}
		if got := Remove(c, index); got.Len() != 1 {
			t.Fatalf("remove at %d changed cart", index)
		}
	}
}

func TestNegativePriceRefused(t *testing.T) {
	c := Add(Cart{}, item("Refund", "-5"))
	if !c.Empty() {
		t.Fatal("expected negative-price item to be refused")
	}
}

func TestInputNotMutated(t *testing.T) {
	base := Add(Add(Cart{}, item("A", "1")), item("B", "2"))
	_ = Add(base, item("A", "1"))
	_ = UpdateQuantity(base, 1, 5)
	_ = Remove(base, 0)

	if base.Len() != 2 || base.Quantity("A") != 1 || base.Quantity("B") != 1 {
		t.Fatalf("base cart mutated: %+v", base.Entries())
	}
}

func TestMarshalJSON(t *testing.T) {
	c := Add(Add(Cart{}, item("Rice", "60.5")), item("Rice", "60.5"))
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out struct {
		Entries []json.RawMessage `json:"entries"`
		Total   float64           `json:"total"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Entries) != 1 || out.Total != 121 {
		t.Fatalf("unexpected json %s", data)
	}

	empty, _ := json.Marshal(Cart{})
	if string(empty) != `{"entries":[],"total":0}` {
		t.Fatalf("unexpected empty cart json %s", empty)
	}
}

var names = []string{"Rice", "Dal", "Milk", "Curd", "Onion"}

func TestCartInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var c Cart
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			before := c
			beforeEntries := before.Entries()
			switch rapid.IntRange(0, 2).Draw(t, fmt.Sprintf("op%d", i)) {
			case 0:
				name := rapid.SampledFrom(names).Draw(t, "name")
				price := rapid.IntRange(0, 500).Draw(t, "price")
				c = Add(c, catalog.Item{Name: name, Price: decimal.NewFromInt(int64(price))})
			case 1:
				index := rapid.IntRange(-2, 6).Draw(t, "index")
				delta := rapid.IntRange(-5, 5).Draw(t, "delta")
				c = UpdateQuantity(c, index, delta)
			case 2:
				index := rapid.IntRange(-2, 6).Draw(t, "index")
				c = Remove(c, index)
			}
			assertEntriesEqual(t, beforeEntries, before.Entries())
			assertInvariants(t, c)
		}
	})
}

// Prices are fixed per name within a run so the derived total can be checked.
func TestAddThenRemoveRestoresTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var c Cart
		count := rapid.IntRange(0, 10).Draw(t, "count")
		for i := 0; i < count; i++ {
			c = Add(c, catalog.Item{Name: rapid.SampledFrom(names).Draw(t, "name"), Price: decimal.NewFromInt(10)})
		}
		before := c.Total()
		fresh := catalog.Item{Name: "Fresh", Price: decimal.NewFromInt(int64(rapid.IntRange(0, 999).Draw(t, "price")))}
		c = Add(c, fresh)
		c = Remove(c, c.Len()-1)
		if !c.Total().Equal(before) {
			t.Fatalf("total changed: %s != %s", c.Total(), before)
		}
	})
}

func assertInvariants(t *rapid.T, c Cart) {
	seen := map[string]bool{}
	total := decimal.Zero
	for _, e := range c.Entries() {
		if seen[e.Item.Name] {
			t.Fatalf("duplicate entry %q", e.Item.Name)
		}
		seen[e.Item.Name] = true
		if e.Quantity < 1 {
			t.Fatalf("quantity below 1 for %q: %d", e.Item.Name, e.Quantity)
		}
		total = total.Add(e.Item.Price.Mul(decimal.NewFromInt(int64(e.Quantity))))
	}
	if !total.Equal(c.Total()) {
		t.Fatalf("total %s does not match entries %s", c.Total(), total)
	}
}

func assertEntriesEqual(t *rapid.T, want, got []Entry) {
	if len(want) != len(got) {
		t.Fatalf("input cart mutated: %d entries became %d", len(want), len(got))
	}
	for i := range want {
		if want[i].Item.Name != got[i].Item.Name || want[i].Quantity != got[i].Quantity {
			t.Fatalf("input cart mutated at %d", i)
		}
	}
}
