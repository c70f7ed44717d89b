package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"storefront-sync/internal/collection"
	"storefront-sync/internal/model"
	"storefront-sync/internal/view"
)

const (
	eventBuffer = 32

	// heartbeatInterval keeps idle streams open through proxies and marks
	// the session as in use.
	heartbeatInterval = 15 * time.Second
)

// mutationEvent is the data of one server-sent event. Items is the
// collection after the change settled.
type mutationEvent struct {
	Kind    model.CollectionKind `json:"kind"`
	Op      collection.Op        `json:"op"`
	ItemID  string               `json:"itemId,omitempty"`
	State   string               `json:"state"`
	Error   *errorBody           `json:"error,omitempty"`
	Items   model.Collection     `json:"items"`
	Summary view.Summary         `json:"summary"`
}

// handleEvents streams settled mutations of one collection as server-sent
// events named after their final state. A "rolled_back" event carries the
// error the storefront shows as a notice.
// GET /session/{kind}/events
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	sr, err := requireSession(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ctl, err := controllerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	events, cancel := ctl.Subscribe(eventBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Warn("event stream not flushable", slog.String("error", err.Error()))
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.writeEvent(w, ctl, ev); err != nil {
				return
			}
		case <-ticker.C:
			h.registry.GetOrCreate(sr.Session.ID())
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (h *Handler) writeEvent(w http.ResponseWriter, ctl *collection.Controller, ev collection.Event) error {
	items := ctl.Items()
	if items == nil {
		items = model.Collection{}
	}
	payload := mutationEvent{
		Kind:    model.CollectionKind(ev.Kind),
		Op:      ev.Op,
		ItemID:  ev.ItemID,
		State:   ev.State.String(),
		Items:   items,
		Summary: view.Totals(items),
	}
	if ev.Err != nil {
		body := newErrorBody(h.asAPIError(ev.Err))
		payload.Error = &body
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", payload.State, data)
	return err
}
