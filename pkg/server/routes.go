package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/relaymesh/postrelay/pkg/core"
	"github.com/relaymesh/postrelay/pkg/relay"
)

type indexResponse struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}

func indexHandler() http.Handler {
	body := indexResponse{
		Message: "Workplace Post Processor API",
		Endpoints: map[string]string{
			"process_post":   "/process-post/{post_id}",
			"webhook":        "/webhook",
			"websocket":      "/ws",
			"verify_webhook": "/verify-webhook",
			"health":         "/healthz",
		},
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	})
}

type postProcessor interface {
	ProcessWithLogger(ctx context.Context, postID string, logger *log.Logger) relay.Result
}

// processPostHandler always answers 200; the outcome is in the body.
func processPostHandler(processor postProcessor, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger := core.WithRequestID(logger, r.Header.Get("X-Request-Id"))
		postID := r.PathValue("postId")
		result := processor.ProcessWithLogger(r.Context(), postID, reqLogger)
		writeJSON(w, http.StatusOK, result)
	})
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
