package core

import "time"

// TimestampLayout is the ISO-8601 layout used for recorded events.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// WebhookEvent is a verified inbound webhook as shown to live viewers.
type WebhookEvent struct {
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
	// RequestID ties the event to the inbound request in logs and relay metadata.
	RequestID string `json:"-"`
}

// NewWebhookEvent stamps a decoded platform payload with the receive time.
func NewWebhookEvent(receivedAt time.Time, data interface{}, requestID string) WebhookEvent {
	return WebhookEvent{
		Timestamp: receivedAt.UTC().Format(TimestampLayout),
		Data:      data,
		RequestID: requestID,
	}
}
