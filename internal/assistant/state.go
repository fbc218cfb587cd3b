package assistant

import (
	"slices"

	"github.com/loqalabs/kadai/internal/cart"
	"github.com/loqalabs/kadai/internal/catalog"
	"github.com/loqalabs/kadai/internal/order"
)

// State is everything the presentation layer renders. Values handed out by
// the Assistant are snapshots and never change afterwards.
type State struct {
	Query        string         `json:"query"`
	Message      string         `json:"message"`
	Speaking     bool           `json:"speaking"`
	Listening    bool           `json:"listening"`
	MicSession   uint64         `json:"micSession"`
	Results      []catalog.Item `json:"results"`
	Cart         cart.Cart      `json:"cart"`
	Customer     order.Customer `json:"customer"`
	Preview      *catalog.Item  `json:"preview,omitempty"`
	PreviewOpen  bool           `json:"previewOpen"`
	PreviewMedia string         `json:"previewMedia"`
	Revision     uint64         `json:"revision"`
}

func initialState(previewMedia string) State {
	return State{Results: []catalog.Item{}, PreviewMedia: previewMedia}
}

func (s State) clone() State {
	s.Results = slices.Clone(s.Results)
	return s
}

// The transitions below are pure. Each returns the next state and the text
// to speak, which is empty for silent steps.

func (s State) say(msg string) (State, string) {
	s.Message = msg
	return s, msg
}

func (s State) searched(items []catalog.Item, err error) (State, string) {
	if err != nil {
		return s.say(errorMessage(err, MsgServerError))
	}
	if items == nil {
		items = []catalog.Item{}
	}
	s.Results = items
	if len(items) == 0 {
		return s.say(MsgNotFound)
	}
	return s.say(foundMessage(items[0]))
}

func (s State) added(item catalog.Item) (State, string) {
	s.Cart = cart.Add(s.Cart, item)
	return s.say(addedMessage(item))
}

func (s State) quantityChanged(index, delta int) (State, bool) {
	if _, ok := s.Cart.At(index); !ok {
		return s, false
	}
	s.Cart = cart.UpdateQuantity(s.Cart, index, delta)
	return s, true
}

func (s State) removed(index int) (State, string, bool) {
	if _, ok := s.Cart.At(index); !ok {
		return s, "", false
	}
	s.Cart = cart.Remove(s.Cart, index)
	next, speech := s.say(MsgRemoved)
	return next, speech, true
}

func (s State) orderFailed(err error) (State, string) {
	return s.say(errorMessage(err, MsgOrderFailed))
}

// orderPlaced applies a confirmation. The cart and customer are cleared only
// when they still hold what was submitted.
func (s State) orderPlaced(conf order.Confirmation, clearCart, clearCustomer bool) (State, string) {
	if clearCart {
		s.Cart = cart.Cart{}
	}
	if clearCustomer {
		s.Customer = order.Customer{}
	}
	return s.say(orderPlacedMessage(conf.Total))
}

func (s State) previewOpened(item catalog.Item) State {
	s.Preview = &item
	s.PreviewOpen = true
	return s
}

func (s State) previewClosed() State {
	s.PreviewOpen = false
	return s
}

func (s State) previewCleared() State {
	if !s.PreviewOpen {
		s.Preview = nil
	}
	return s
}
