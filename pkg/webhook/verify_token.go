package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
)

const (
	msgVerified        = "Webhook verification successful"
	msgInvalidToken    = "Invalid verification token"
	msgVerifyErrPrefix = "Error during verification: "
)

type verifyRequest struct {
	VerifyToken string `json:"verify_token"`
}

type verifyResponse struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
}

func tokenMatches(expected, got string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// NewVerifyTokenHandler checks a {verify_token} body against the configured token.
func NewVerifyTokenHandler(verifyToken string, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
		if err == nil {
			var req verifyRequest
			if err = json.Unmarshal(raw, &req); err == nil {
				if tokenMatches(verifyToken, req.VerifyToken) {
					writeJSON(w, http.StatusOK, verifyResponse{Verified: true, Message: msgVerified})
					return
				}
				logger.Printf("verify token mismatch")
				writeJSON(w, http.StatusBadRequest, verifyResponse{Verified: false, Message: msgInvalidToken})
				return
			}
		}
		logger.Printf("verify token request failed err=%v", err)
		writeJSON(w, http.StatusInternalServerError, verifyResponse{
			Verified: false,
			Message:  fmt.Sprintf("%s%v", msgVerifyErrPrefix, err),
		})
	})
}

// NewHandshakeHandler answers the Graph API subscription challenge.
func NewHandshakeHandler(verifyToken string, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("hub.mode") != "subscribe" || !tokenMatches(verifyToken, query.Get("hub.verify_token")) {
			logger.Printf("webhook handshake rejected mode=%q", query.Get("hub.mode"))
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, query.Get("hub.challenge"))
	})
}
