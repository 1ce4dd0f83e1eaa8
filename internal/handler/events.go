package handler

import (
	"log/slog"
	"net/http"
	"time"

	"rostra/internal/domain/debate"
	"rostra/internal/events"
	"rostra/internal/handler/sse"
	"rostra/internal/httputil"
	"rostra/internal/store"
)

// subscriberBuffer absorbs bursts of streaming chunks; the bus drops
// nothing, but a subscriber that cannot drain this falls back to replay.
const subscriberBuffer = 256

// EventsHandler serves GET /debate/{id}/events as a server-sent stream.
type EventsHandler struct {
	bus    *events.Bus
	store  *store.Store
	config *sse.Config
	logger *slog.Logger
}

func NewEventsHandler(bus *events.Bus, st *store.Store, cfg *sse.Config, logger *slog.Logger) *EventsHandler {
	if cfg == nil {
		cfg = sse.DefaultConfig()
	}
	return &EventsHandler{bus: bus, store: st, config: cfg, logger: logger}
}

func (h *EventsHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := debateID(w, r)
	if !ok {
		return
	}
	if _, err := h.store.GetSession(r.Context(), id); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		since = &t
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Subscribe before replaying so no event falls between the two. The
	// sequence filter below keeps replayed events from appearing twice;
	// timestamps cannot do that, two events may share one.
	ch := make(chan debate.Event, subscriberBuffer)
	unsubscribe := h.bus.Subscribe(id, func(e debate.Event) {
		select {
		case ch <- e:
		default:
			// drop; the client catches up via replay on reconnect
		}
	})
	defer unsubscribe()

	var lastSeq uint64
	for _, e := range h.bus.Recent(id, since) {
		if err := writer.WriteEvent(string(e.Type), e); err != nil {
			return
		}
		lastSeq = e.Seq
	}

	keepAlive := sse.NewTickerKeepAlive(h.config.KeepAliveInterval)
	stopped := keepAlive.Start(writer, h.logger)
	defer keepAlive.Stop()

	h.logger.Debug("sse subscriber attached", "debate_id", id, "replay_since", since)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-stopped:
			return
		case e := <-ch:
			if e.Seq <= lastSeq {
				continue
			}
			if err := writer.WriteEvent(string(e.Type), e); err != nil {
				return
			}
			lastSeq = e.Seq
		}
	}
}
