package relay

import (
	"context"
	"log"

	"github.com/relaymesh/postrelay/pkg/workplace"
)

// Result status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Stage records how far a Process call got.
type Stage string

const (
	StageFetchFailed   Stage = "fetch_failed"
	StageForwardFailed Stage = "forward_failed"
	StageForwarded     Stage = "forwarded"
)

// Result messages.
const (
	MessageSuccess       = "Successfully processed post"
	MessageFetchFailed   = "Failed to get post details from Workplace"
	MessageForwardFailed = "Failed to forward to downstream webhook"
)

// PostFetcher loads post details by id.
type PostFetcher interface {
	FetchPost(ctx context.Context, postID string) (workplace.PostDetails, error)
}

// PayloadForwarder delivers a payload downstream.
type PayloadForwarder interface {
	Forward(ctx context.Context, payload interface{}) error
}

// Result is the outcome of processing one post.
type Result struct {
	Status  string                `json:"status"`
	Message string                `json:"message"`
	Data    workplace.PostDetails `json:"data,omitempty"`
	Stage   Stage                 `json:"-"`
	Err     error                 `json:"-"`
}

// OK reports whether the post was fetched and forwarded.
func (r Result) OK() bool {
	return r.Stage == StageForwarded
}

// Processor runs the fetch-then-forward flow for a post id.
type Processor struct {
	fetcher   PostFetcher
	forwarder PayloadForwarder
	logger    *log.Logger
}

// NewProcessor wires a fetcher and forwarder.
func NewProcessor(fetcher PostFetcher, forwarder PayloadForwarder, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.Default()
	}
	return &Processor{fetcher: fetcher, forwarder: forwarder, logger: logger}
}

// Process fetches the post and, when that succeeds, forwards it. Forwarding
// is never attempted without details.
func (p *Processor) Process(ctx context.Context, postID string) Result {
	return p.ProcessWithLogger(ctx, postID, nil)
}

// ProcessWithLogger is Process with a request-scoped logger.
func (p *Processor) ProcessWithLogger(ctx context.Context, postID string, logger *log.Logger) Result {
	if logger == nil {
		logger = p.logger
	}
	details, err := p.fetcher.FetchPost(ctx, postID)
	if err != nil {
		logger.Printf("fetch failed post_id=%s err=%v", postID, err)
		return Result{Status: StatusError, Message: MessageFetchFailed, Stage: StageFetchFailed, Err: err}
	}
	if err := p.forwarder.Forward(ctx, details); err != nil {
		logger.Printf("forward failed post_id=%s err=%v", postID, err)
		return Result{Status: StatusError, Message: MessageForwardFailed, Data: details, Stage: StageForwardFailed, Err: err}
	}
	logger.Printf("forwarded post_id=%s", postID)
	return Result{Status: StatusSuccess, Message: MessageSuccess, Data: details, Stage: StageForwarded}
}
