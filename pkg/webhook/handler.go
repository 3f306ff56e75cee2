package webhook

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/relaymesh/postrelay/pkg/core"
	"github.com/relaymesh/postrelay/pkg/relay"
)

// EventRecorder stores an event in the live history and pushes it to viewers.
type EventRecorder interface {
	Publish(event core.WebhookEvent) error
}

// PostProcessor runs fetch and forward for a post id.
type PostProcessor interface {
	ProcessWithLogger(ctx context.Context, postID string, logger *log.Logger) relay.Result
}

// Options configures a Handler.
type Options struct {
	AppSecret   string
	MaxBody     int64
	DebugEvents bool
	Recorder    EventRecorder
	Processor   PostProcessor
	// Rules skip matching change values before fetch. Optional.
	Rules *core.RuleEngine
	// Relay and RelayTopic publish every recorded event to a bus. Optional.
	Relay      core.Publisher
	RelayTopic string
	Logger     *log.Logger
	Now        func() time.Time
}

// Handler ingests Workplace webhook deliveries.
type Handler struct {
	secret      string
	maxBody     int64
	debugEvents bool
	recorder    EventRecorder
	processor   PostProcessor
	rules       *core.RuleEngine
	relay       core.Publisher
	relayTopic  string
	logger      *log.Logger
	now         func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		secret:      opts.AppSecret,
		maxBody:     opts.MaxBody,
		debugEvents: opts.DebugEvents,
		recorder:    opts.Recorder,
		processor:   opts.Processor,
		rules:       opts.Rules,
		relay:       opts.Relay,
		relayTopic:  opts.RelayTopic,
		logger:      logger,
		now:         now,
	}
}

// ServeHTTP verifies, records and processes one delivery. Once the body is
// verified and parsed the response is 200 unless the post id is missing, so
// the platform does not retry deliveries that failed downstream.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r, logger, reqID, rawBody, ok := prepareWebhookRequest(w, r, h.maxBody, h.logger)
	if !ok {
		return
	}
	receivedAt := h.now()

	if !VerifySignature(h.secret, rawBody, r.Header.Get(SignatureHeader)) {
		logger.Printf("webhook signature mismatch")
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if h.debugEvents {
		logDebugEvent(logger, rawBody)
	}

	var payload interface{}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		logger.Printf("webhook parse failed err=%v", err)
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON payload"))
		return
	}

	h.record(r.Context(), logger, core.NewWebhookEvent(receivedAt, payload, reqID))

	value, ok := changeValue(payload)
	if !ok {
		logger.Printf("webhook change value is not an object")
		writeJSON(w, http.StatusOK, errorBody("change value is not an object"))
		return
	}
	if isDelete(value) {
		logger.Printf("webhook skipped reason=delete post_id=%v", value["post_id"])
		w.WriteHeader(http.StatusOK)
		return
	}
	if match, skip := h.rules.Match(value, logger); skip {
		logger.Printf("webhook skipped reason=rule rule_id=%s post_id=%v", match.ID, value["post_id"])
		w.WriteHeader(http.StatusOK)
		return
	}

	postID := postIDFromValue(value)
	if postID == "" {
		logger.Printf("webhook missing post_id")
		writeJSON(w, http.StatusBadRequest, errorBody("missing post_id"))
		return
	}

	if h.processor != nil {
		result := h.processor.ProcessWithLogger(r.Context(), postID, logger)
		logger.Printf("webhook processed post_id=%s stage=%s", postID, result.Stage)
	}
	writeJSON(w, http.StatusOK, statusBody{Status: "received"})
}

func (h *Handler) record(ctx context.Context, logger *log.Logger, event core.WebhookEvent) {
	if h.recorder != nil {
		if err := h.recorder.Publish(event); err != nil {
			logger.Printf("webhook record failed err=%v", err)
		}
	}
	if h.relay != nil {
		if err := h.relay.Publish(ctx, h.relayTopic, event); err != nil {
			logger.Printf("webhook relay publish failed topic=%s err=%v", h.relayTopic, err)
		}
	}
}
