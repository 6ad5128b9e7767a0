package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleStream serves job progress as server-sent events. The underlying
// publisher emits deltas only and ends the stream on a terminal status or
// after its bounded wait.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadOwnedJob(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, err := s.publisher.Stream(r.Context(), rec.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
