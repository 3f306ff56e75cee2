package core

import (
	"log"
	"os"
	"strings"
)

const loggerPrefix = "postrelay"

// NewLogger returns a stdout logger prefixed with the component name.
func NewLogger(component string) *log.Logger {
	prefix := loggerPrefix
	if component = strings.Trim(strings.TrimSpace(component), "/"); component != "" {
		prefix += "/" + component
	}
	return log.New(os.Stdout, prefix+" ", log.LstdFlags|log.LUTC)
}

// WithRequestID derives a logger whose prefix carries the request id.
func WithRequestID(logger *log.Logger, requestID string) *log.Logger {
	if logger == nil {
		logger = log.Default()
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return logger
	}
	return log.New(logger.Writer(), logger.Prefix()+"request_id="+requestID+" ", logger.Flags())
}
