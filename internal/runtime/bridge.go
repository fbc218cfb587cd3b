package runtime

import (
	"log/slog"
	"time"

	"github.com/loqalabs/kadai/internal/assistant"
	"github.com/loqalabs/kadai/internal/cart"
	"github.com/loqalabs/kadai/internal/order"
	"github.com/loqalabs/kadai/internal/protocol"
	"github.com/loqalabs/kadai/internal/tts"
)

type publisher interface {
	PublishJSON(subject string, v any) error
}

// uiBridge mirrors assistant output onto the bus for the kiosk display and
// avatar renderer.
type uiBridge struct {
	bus     publisher
	session string
	logger  *slog.Logger
	now     func() time.Time
}

func newUIBridge(bus publisher, session string, logger *slog.Logger) *uiBridge {
	return &uiBridge{
		bus:     bus,
		session: session,
		logger:  logger.With(slog.String("component", "ui-bridge")),
		now:     time.Now,
	}
}

func (b *uiBridge) state(st assistant.State) {
	b.publish(protocol.SubjectUIState, st)
}

func (b *uiBridge) speaking(sig tts.Signal) {
	b.publish(protocol.SubjectUISpeaking, protocol.Speaking{
		Speaking:  sig.Speaking,
		Utterance: sig.ID,
		Timestamp: b.now().UTC(),
	})
}

func (b *uiBridge) orderPlaced(conf order.Confirmation, entries []cart.Entry) {
	b.publish(protocol.SubjectOrderPlaced, protocol.OrderPlaced{
		Session:   b.session,
		Total:     conf.Total.String(),
		Phone:     conf.Phone,
		Lines:     len(entries),
		Timestamp: b.now().UTC(),
	})
}

func (b *uiBridge) publish(subject string, v any) {
	if err := b.bus.PublishJSON(subject, v); err != nil {
		b.logger.Warn("failed to publish", slog.String("subject", subject), slogError(err))
	}
}
