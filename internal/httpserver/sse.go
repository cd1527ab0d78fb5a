package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleEvents streams a game's presentation events as Server-Sent Events.
// The first message is a "snapshot" of the current view; after that each
// card/counters/victory event is sent under its own event name.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.ownedGame(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming_unsupported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := rec.Events.Subscribe()
	defer cancel()

	writeSSE(w, "snapshot", rec.Session.Snapshot())
	flusher.Flush()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeSSE(w, ev.Type, ev)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, name string, v any) {
	data, _ := json.Marshal(v)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}
