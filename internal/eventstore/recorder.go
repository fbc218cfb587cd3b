package eventstore

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Recorder appends events for one session. Write failures are logged and
// never surface to the caller.
type Recorder struct {
	store     *Store
	sessionID string
	log       *slog.Logger
}

func (s *Store) Recorder(sessionID string) *Recorder {
	return &Recorder{store: s, sessionID: sessionID, log: s.log}
}

func (r *Recorder) Record(ctx context.Context, kind string, payload any) {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			r.log.Warn("failed to encode timeline event", slog.String("kind", kind), slog.String("error", err.Error()))
			return
		}
	}
	if err := r.store.AppendEvent(ctx, Event{SessionID: r.sessionID, Kind: kind, Payload: data}); err != nil {
		r.log.Warn("failed to append timeline event", slog.String("kind", kind), slog.String("error", err.Error()))
	}
}
