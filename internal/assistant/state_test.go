package assistant

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/loqalabs/kadai/internal/catalog"
	"github.com/loqalabs/kadai/internal/order"
	"github.com/loqalabs/kadai/internal/shoperr"
)

func TestSearchedTransitions(t *testing.T) {
	base := initialState("")
	cases := []struct {
		name    string
		items   []catalog.Item
		err     error
		message string
		results int
	}{
		{"found", []catalog.Item{rice, apple}, nil, "Rice விலை ₹52.5 ரூபாய்", 2},
		{"nil result", nil, nil, MsgNotFound, 0},
		{"transport", nil, shoperr.Transport("catalog.search", errors.New("dial")), MsgServerError, 0},
		{"validation", nil, shoperr.Validation(shoperr.EmptyQuery), MsgEmptyQuery, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, speech := base.searched(tc.items, tc.err)
			if next.Message != tc.message || speech != tc.message {
				t.Fatalf("expected %q, got message %q speech %q", tc.message, next.Message, speech)
			}
			if len(next.Results) != tc.results || next.Results == nil {
				t.Fatalf("unexpected results %#v", next.Results)
			}
		})
	}
}

func TestTransitionsDoNotTouchInput(t *testing.T) {
	start := initialState("")
	start, _ = start.added(rice)
	added, _ := start.added(rice)
	if start.Cart.Quantity("Rice") != 1 || added.Cart.Quantity("Rice") != 2 {
		t.Fatalf("expected new value, got %d and %d", start.Cart.Quantity("Rice"), added.Cart.Quantity("Rice"))
	}

	removed, speech, ok := added.removed(0)
	if !ok || speech != MsgRemoved || !removed.Cart.Empty() || added.Cart.Empty() {
		t.Fatal("remove should produce a new empty cart")
	}
	if _, _, ok := added.removed(1); ok {
		t.Fatal("expected out of range remove to be rejected")
	}
}

func TestOrderPlacedClearsSelectively(t *testing.T) {
	s := initialState("")
	s, _ = s.added(rice)
	s.Customer = order.Customer{Name: "Anbu", Phone: "9876543210", Address: "x"}
	conf := order.Confirmation{Total: decimal.RequireFromString("52.50")}

	next, speech := s.orderPlaced(conf, false, true)
	if next.Cart.Empty() {
		t.Fatal("cart must be kept when not cleared")
	}
	if next.Customer != (order.Customer{}) {
		t.Fatal("customer should be cleared")
	}
	if speech != "✅ ஆர்டர் வெற்றிகரமாக வைக்கப்பட்டது | மொத்தம் ₹52.5" {
		t.Fatalf("unexpected speech %q", speech)
	}
}

func TestCloneDetachesResults(t *testing.T) {
	s := initialState("")
	s.Results = []catalog.Item{rice}
	c := s.clone()
	c.Results[0] = apple
	if s.Results[0].Name != "Rice" {
		t.Fatal("clone shares results")
	}
}
