// Package assistant owns the kiosk's interaction state. Every user action is
// applied as one step under a single lock; search and order calls run in the
// background and re-enter through the same path when they complete.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loqalabs/kadai/internal/cart"
	"github.com/loqalabs/kadai/internal/catalog"
	"github.com/loqalabs/kadai/internal/order"
)

type Searcher interface {
	Search(ctx context.Context, term string) ([]catalog.Item, error)
}

type Submitter interface {
	Submit(ctx context.Context, c cart.Cart, customer order.Customer) (order.Confirmation, error)
}

type Speaker interface {
	Speak(text string) uint64
}

type Microphone interface {
	Start() (uint64, bool)
	Stop(ctx context.Context) error
	Listening() bool
}

type Timeline interface {
	Record(ctx context.Context, kind string, payload any)
}

// Deps are the collaborators of an Assistant. Speaker, Microphone and
// Timeline may be nil.
type Deps struct {
	Catalog    Searcher
	Orders     Submitter
	Speaker    Speaker
	Microphone Microphone
	Timeline   Timeline
}

type Options struct {
	PreviewMedia      string
	PreviewCloseDelay time.Duration
	// OrderPlaced runs after a confirmed order has been applied.
	OrderPlaced func(conf order.Confirmation, entries []cart.Entry)
}

type Assistant struct {
	ctx    context.Context
	deps   Deps
	opts   Options
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	searchGen   uint64
	cartRev     uint64
	customerRev uint64
	previewGen  uint64

	// pubMu keeps subscribers seeing snapshots in revision order.
	pubMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int

	// speechSeq is assigned under mu; spokenSeq under speakMu. Speech older
	// than the last one handed to the speaker is dropped.
	speechSeq uint64
	speakMu   sync.Mutex
	spokenSeq uint64

	wg sync.WaitGroup
}

// New creates an Assistant. Background calls use ctx; cancelling it is the
// only way they are abandoned.
func New(ctx context.Context, deps Deps, opts Options, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		ctx:    ctx,
		deps:   deps,
		opts:   opts,
		logger: logger.With(slog.String("component", "assistant")),
		state:  initialState(opts.PreviewMedia),
		subs:   make(map[int]func(State)),
	}
}

// Subscribe registers fn for every state change. fn must not call back into
// the Assistant. The returned func unsubscribes.
func (a *Assistant) Subscribe(fn func(State)) func() {
	a.pubMu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	a.pubMu.Unlock()
	return func() {
		a.pubMu.Lock()
		delete(a.subs, id)
		a.pubMu.Unlock()
	}
}

func (a *Assistant) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.clone()
}

// Wait blocks until background searches, submissions and preview timers
// have finished.
func (a *Assistant) Wait() {
	a.wg.Wait()
}

// apply runs fn against the current state under the lock. fn reports the
// text to speak and whether anything changed. Subscribers are notified
// before the lock on publication is released, and speech starts last,
// outside both.
func (a *Assistant) apply(fn func(s *State) (speech string, changed bool)) State {
	a.mu.Lock()
	next := a.state
	speech, changed := fn(&next)
	if !changed {
		snap := a.state.clone()
		a.mu.Unlock()
		return snap
	}
	next.Revision = a.state.Revision + 1
	a.state = next
	snap := next.clone()
	var seq uint64
	if speech != "" {
		a.speechSeq++
		seq = a.speechSeq
	}

	a.pubMu.Lock()
	a.mu.Unlock()
	for _, sub := range a.subs {
		sub(snap)
	}
	a.pubMu.Unlock()

	if speech != "" {
		a.speak(seq, speech)
	}
	return snap
}

// speak hands text to the speaker unless a later step already spoke. The
// speaker's observer re-enters apply, which never takes speakMu.
func (a *Assistant) speak(seq uint64, text string) {
	if a.deps.Speaker == nil {
		return
	}
	a.speakMu.Lock()
	defer a.speakMu.Unlock()
	if seq <= a.spokenSeq {
		a.logger.Debug("dropping superseded speech", slog.Uint64("seq", seq))
		return
	}
	a.spokenSeq = seq
	a.deps.Speaker.Speak(text)
}

func (a *Assistant) record(kind string, payload any) {
	if a.deps.Timeline == nil {
		return
	}
	a.deps.Timeline.Record(a.ctx, kind, payload)
}

func (a *Assistant) SetQuery(query string) {
	a.apply(func(s *State) (string, bool) {
		if s.Query == query {
			return "", false
		}
		s.Query = query
		return "", true
	})
}

func (a *Assistant) SetCustomerName(name string) {
	a.editCustomer(func(c *order.Customer) { c.Name = name })
}

func (a *Assistant) SetPhone(phone string) {
	a.editCustomer(func(c *order.Customer) { c.Phone = phone })
}

func (a *Assistant) SetAddress(address string) {
	a.editCustomer(func(c *order.Customer) { c.Address = address })
}

func (a *Assistant) editCustomer(edit func(*order.Customer)) {
	a.apply(func(s *State) (string, bool) {
		updated := s.Customer
		edit(&updated)
		if updated == s.Customer {
			return "", false
		}
		s.Customer = updated
		a.customerRev++
		return "", true
	})
}

// Search looks term up in the catalog. An empty term is answered right away;
// otherwise the lookup runs in the background and only the newest search may
// change the results.
func (a *Assistant) Search(term string) {
	trimmed := strings.TrimSpace(term)
	var gen uint64
	a.apply(func(s *State) (string, bool) {
		s.Query = term
		if trimmed == "" {
			next, speech := s.say(MsgEmptyQuery)
			*s = next
			return speech, true
		}
		a.searchGen++
		gen = a.searchGen
		return "", true
	})
	if trimmed == "" {
		a.record("search.rejected", nil)
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		items, err := a.deps.Catalog.Search(a.ctx, trimmed)
		a.finishSearch(gen, trimmed, items, err)
	}()
}

func (a *Assistant) finishSearch(gen uint64, term string, items []catalog.Item, err error) {
	stale := false
	a.apply(func(s *State) (string, bool) {
		if gen != a.searchGen {
			stale = true
			return "", false
		}
		next, speech := s.searched(items, err)
		*s = next
		return speech, true
	})
	if stale {
		a.logger.Debug("dropping stale search result", slog.String("term", term))
		return
	}
	if err != nil {
		a.logger.Warn("search failed", slog.String("term", term), slogError(err))
		a.record("search.failed", map[string]string{"term": term, "error": err.Error()})
		return
	}
	a.record("search", map[string]any{"term": term, "results": len(items)})
}

// HandleTranscript treats recognized speech as a typed search.
func (a *Assistant) HandleTranscript(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	a.logger.Info("voice query", slog.String("text", text))
	a.Search(text)
}

// ToggleMic starts a capture session when idle and ends the current one
// when listening. Ending a session forwards its transcript. A started
// session's id is published as State.MicSession.
func (a *Assistant) ToggleMic(ctx context.Context) error {
	mic := a.deps.Microphone
	if mic == nil {
		a.logger.Debug("no microphone configured")
		return nil
	}
	if mic.Listening() {
		a.record("mic", map[string]bool{"listening": false})
		return mic.Stop(ctx)
	}
	if session, ok := mic.Start(); ok {
		a.apply(func(s *State) (string, bool) {
			if session <= s.MicSession {
				return "", false
			}
			s.MicSession = session
			return "", true
		})
		a.record("mic", map[string]any{"listening": true, "session": session})
	}
	return nil
}

// SetListening reflects a capture transition. session is the capture
// session the client must tag its audio frames with.
func (a *Assistant) SetListening(listening bool, session uint64) {
	a.apply(func(s *State) (string, bool) {
		if s.Listening == listening && s.MicSession == session {
			return "", false
		}
		s.Listening = listening
		s.MicSession = session
		return "", true
	})
}

func (a *Assistant) SetSpeaking(speaking bool) {
	a.apply(func(s *State) (string, bool) {
		if s.Speaking == speaking {
			return "", false
		}
		s.Speaking = speaking
		return "", true
	})
}

// AddToCart adds the search result at index. It reports false when index
// does not name a current result.
func (a *Assistant) AddToCart(index int) bool {
	var item catalog.Item
	ok := false
	a.apply(func(s *State) (string, bool) {
		if index < 0 || index >= len(s.Results) {
			return "", false
		}
		item, ok = s.Results[index], true
		next, speech := s.added(item)
		*s = next
		a.cartRev++
		return speech, true
	})
	if ok {
		a.recordCart("cart.add", item.Name)
	}
	return ok
}

func (a *Assistant) AddItem(item catalog.Item) {
	a.apply(func(s *State) (string, bool) {
		next, speech := s.added(item)
		*s = next
		a.cartRev++
		return speech, true
	})
	a.recordCart("cart.add", item.Name)
}

// UpdateQuantity changes the quantity of the entry at index. It is silent.
func (a *Assistant) UpdateQuantity(index, delta int) bool {
	ok := false
	a.apply(func(s *State) (string, bool) {
		var next State
		if next, ok = s.quantityChanged(index, delta); !ok {
			return "", false
		}
		*s = next
		a.cartRev++
		return "", true
	})
	if ok {
		a.record("cart.quantity", map[string]int{"index": index, "delta": delta})
	}
	return ok
}

func (a *Assistant) RemoveFromCart(index int) bool {
	var name string
	ok := false
	a.apply(func(s *State) (string, bool) {
		entry, found := s.Cart.At(index)
		if !found {
			return "", false
		}
		name = entry.Item.Name
		next, speech, _ := s.removed(index)
		*s = next
		a.cartRev++
		ok = true
		return speech, true
	})
	if ok {
		a.recordCart("cart.remove", name)
	}
	return ok
}

func (a *Assistant) recordCart(kind, name string) {
	a.record(kind, map[string]string{"item": name})
}

type orderSnapshot struct {
	cart        cart.Cart
	customer    order.Customer
	cartRev     uint64
	customerRev uint64
}

// PlaceOrder validates the cart and customer details and, when they pass,
// submits them in the background. A failed submission leaves both intact.
func (a *Assistant) PlaceOrder() {
	var (
		snap     orderSnapshot
		rejected error
	)
	a.apply(func(s *State) (string, bool) {
		if _, err := order.Validate(s.Cart, s.Customer); err != nil {
			rejected = err
			next, speech := s.orderFailed(err)
			*s = next
			return speech, true
		}
		snap = orderSnapshot{
			cart:        s.Cart,
			customer:    s.Customer,
			cartRev:     a.cartRev,
			customerRev: a.customerRev,
		}
		return "", false
	})
	if rejected != nil {
		a.logger.Info("order rejected", slogError(rejected))
		a.record("order.rejected", map[string]string{"error": rejected.Error()})
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		conf, err := a.deps.Orders.Submit(a.ctx, snap.cart, snap.customer)
		a.finishOrder(snap, conf, err)
	}()
}

func (a *Assistant) finishOrder(snap orderSnapshot, conf order.Confirmation, err error) {
	a.apply(func(s *State) (string, bool) {
		var (
			next   State
			speech string
		)
		if err != nil {
			next, speech = s.orderFailed(err)
		} else {
			clearCart := a.cartRev == snap.cartRev
			clearCustomer := a.customerRev == snap.customerRev
			next, speech = s.orderPlaced(conf, clearCart, clearCustomer)
			if clearCart {
				a.cartRev++
			}
			if clearCustomer {
				a.customerRev++
			}
		}
		*s = next
		return speech, true
	})
	if err != nil {
		a.logger.Warn("order submission failed", slogError(err))
		a.record("order.failed", map[string]string{"error": err.Error()})
		return
	}
	a.logger.Info("order placed",
		slog.String("total", conf.Total.String()),
		slog.Int("lines", snap.cart.Len()),
	)
	a.record("order.placed", map[string]any{"total": conf.Total.String(), "lines": snap.cart.Len()})
	if a.opts.OrderPlaced != nil {
		a.opts.OrderPlaced(conf, snap.cart.Entries())
	}
}

// OpenPreview shows the search result at index. It is silent.
func (a *Assistant) OpenPreview(index int) bool {
	ok := false
	a.apply(func(s *State) (string, bool) {
		if index < 0 || index >= len(s.Results) {
			return "", false
		}
		*s = s.previewOpened(s.Results[index])
		a.previewGen++
		ok = true
		return "", true
	})
	return ok
}

// ClosePreview hides the preview at once and drops the selected item after
// the configured delay, unless another preview opened in between.
func (a *Assistant) ClosePreview() {
	var gen uint64
	closed := false
	a.apply(func(s *State) (string, bool) {
		if !s.PreviewOpen {
			return "", false
		}
		*s = s.previewClosed()
		gen = a.previewGen
		closed = true
		return "", true
	})
	if !closed {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		timer := time.NewTimer(a.opts.PreviewCloseDelay)
		defer timer.Stop()
		select {
		case <-a.ctx.Done():
			return
		case <-timer.C:
		}
		a.apply(func(s *State) (string, bool) {
			if gen != a.previewGen || s.Preview == nil {
				return "", false
			}
			*s = s.previewCleared()
			return "", true
		})
	}()
}

func slogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}
