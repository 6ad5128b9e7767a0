package httpapi

import (
	"net/http"

	"github.com/oMygpt/readitdeep/pkg/log"
)

// handleStreamWS serves the same progress events as the SSE endpoint over a
// websocket, for clients behind proxies that buffer event streams.
func (s *Server) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadOwnedJob(w, r)
	if !ok {
		return
	}

	events, err := s.publisher.Stream(r.Context(), rec.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Websocket upgrade failed for job %s: %v", rec.ID, err)
		return
	}
	defer conn.Close()

	// Reads are discarded; the read loop only notices a closed peer.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
