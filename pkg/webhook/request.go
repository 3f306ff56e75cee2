package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/relaymesh/postrelay/pkg/core"
)

func requestID(r *http.Request) string {
	if r == nil {
		return uuid.NewString()
	}
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	if id := r.Header.Get("X-Correlation-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}

// prepareWebhookRequest tags the request with an id and reads the body,
// answering 413 or 400 itself when the body cannot be read.
func prepareWebhookRequest(w http.ResponseWriter, r *http.Request, maxBody int64, logger *log.Logger) (*http.Request, *log.Logger, string, []byte, bool) {
	if logger == nil {
		logger = log.Default()
	}
	reqID := requestID(r)
	w.Header().Set("X-Request-Id", reqID)
	logger = core.WithRequestID(logger, reqID)

	body := r.Body
	if maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBody)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Printf("webhook body too large limit=%d", tooLarge.Limit)
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request body too large"))
			return r, logger, reqID, nil, false
		}
		logger.Printf("webhook read body failed err=%v", err)
		writeJSON(w, http.StatusBadRequest, errorBody("unable to read request body"))
		return r, logger, reqID, nil, false
	}
	return r, logger, reqID, raw, true
}

func logDebugEvent(logger *log.Logger, body []byte) {
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("debug event payload=%s", string(body))
}

type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func errorBody(message string) statusBody {
	return statusBody{Status: "error", Message: message}
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
