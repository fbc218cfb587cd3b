package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Wire keys used by the shop service. "Price (₹)" is not a valid struct tag
// name for encoding/json, so Item marshals itself.
const (
	keyName        = "Item Name"
	keyCategory    = "Category"
	keyPrice       = "Price (₹)"
	keyDescription = "Description"
)

// Item is a single catalog entry. Name is its identity.
type Item struct {
	Name        string
	Category    string
	Price       decimal.Decimal
	Description string
}

func (i Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		keyName:        i.Name,
		keyCategory:    i.Category,
		keyPrice:       json.Number(i.Price.String()),
		keyDescription: i.Description,
	})
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Item{}
	for key, target := range map[string]*string{
		keyName:        &i.Name,
		keyCategory:    &i.Category,
		keyDescription: &i.Description,
	} {
		value, ok := raw[key]
		if !ok || string(value) == "null" {
			continue
		}
		if err := json.Unmarshal(value, target); err != nil {
			return fmt.Errorf("item field %q: %w", key, err)
		}
	}
	if value, ok := raw[keyPrice]; ok && string(value) != "null" {
		if err := i.Price.UnmarshalJSON(value); err != nil {
			return fmt.Errorf("item field %q: %w", keyPrice, err)
		}
	}
	return nil
}
