package server

import (
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status      string `json:"status"`
	Subscribers int    `json:"subscribers"`
	History     int    `json:"history"`
	Relay       bool   `json:"relay"`
}

// liveStats reports the state of the live event stream.
type liveStats interface {
	Subscribers() int
	HistoryLen() int
}

func healthHandler(stats liveStats, relayEnabled bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		resp := healthResponse{Status: "ok", Relay: relayEnabled}
		if stats != nil {
			resp.Subscribers = stats.Subscribers()
			resp.History = stats.HistoryLen()
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
}
