package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/relaymesh/postrelay/pkg/broadcast"
	"github.com/relaymesh/postrelay/pkg/core"
	"github.com/relaymesh/postrelay/pkg/forward"
	"github.com/relaymesh/postrelay/pkg/relay"
	"github.com/relaymesh/postrelay/pkg/webhook"
	"github.com/relaymesh/postrelay/pkg/workplace"
)

// BuildHandler constructs the HTTP handler and returns a cleanup function.
func BuildHandler(ctx context.Context, config core.AppConfig, logger *log.Logger, middlewares ...Middleware) (http.Handler, func(), error) {
	if logger == nil {
		logger = core.NewLogger("server")
	}
	var closers []func()
	addCloser := func(fn func()) {
		if fn != nil {
			closers = append(closers, fn)
		}
	}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	rules, err := core.NewRuleEngine(core.RulesConfig{
		Rules:  config.Webhook.SkipRules,
		Logger: core.NewLogger("rules"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("compile skip rules: %w", err)
	}

	var publisher core.Publisher
	if config.Watermill.Enabled() {
		publisher, err = core.NewPublisher(config.Watermill)
		if err != nil {
			return nil, nil, fmt.Errorf("publisher: %w", err)
		}
		addCloser(func() {
			if err := publisher.Close(); err != nil {
				logger.Printf("publisher close: %v", err)
			}
		})
		logger.Printf("event relay enabled topic=%s", config.Watermill.Topic)
	}

	broadcaster := broadcast.New(config.Broadcast.HistorySize, config.Broadcast.Buffer, core.NewLogger("broadcast"))
	addCloser(broadcaster.Close)

	graph := workplace.NewClient(workplace.Config{
		BaseURL:     config.Workplace.GraphAPI,
		AccessToken: config.Workplace.AccessToken,
		Fields:      config.Workplace.Fields,
		Timeout:     time.Duration(config.Workplace.TimeoutMS) * time.Millisecond,
		Logger:      core.NewLogger("workplace"),
	})
	forwarder, err := forward.New(forward.Config{
		URL:         config.Forward.URL,
		Timeout:     time.Duration(config.Forward.TimeoutMS) * time.Millisecond,
		TransformJS: config.Forward.TransformJS,
		Logger:      core.NewLogger("forward"),
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("forwarder: %w", err)
	}
	processor := relay.NewProcessor(graph, forwarder, core.NewLogger("relay"))

	webhookLogger := core.NewLogger("webhook")
	mux := http.NewServeMux()
	mux.Handle("GET /{$}", indexHandler())
	mux.Handle("GET /healthz", healthHandler(broadcaster, publisher != nil))
	mux.Handle("GET /process-post/{postId}", processPostHandler(processor, logger))
	mux.Handle("POST /verify-webhook", webhook.NewVerifyTokenHandler(config.Workplace.VerifyToken, webhookLogger))
	mux.Handle("GET /webhook", webhook.NewHandshakeHandler(config.Workplace.VerifyToken, webhookLogger))
	mux.Handle("POST /webhook", webhook.NewHandler(webhook.Options{
		AppSecret:   config.Workplace.AppSecret,
		MaxBody:     config.Server.MaxBodyBytes,
		DebugEvents: config.Server.DebugEvents,
		Recorder:    broadcaster,
		Processor:   processor,
		Rules:       rules,
		Relay:       publisher,
		RelayTopic:  config.Watermill.Topic,
		Logger:      webhookLogger,
	}))
	mux.Handle("GET /ws", broadcast.NewWSHandler(broadcaster, broadcast.WSOptions{
		AllowedOrigins: config.Server.AllowedOrigins,
		Logger:         core.NewLogger("ws"),
	}))
	logger.Printf("routes registered webhook=/webhook ws=/ws process=/process-post/{postId} skip_rules=%d history=%d",
		rules.Len(), config.Broadcast.HistorySize)

	corsHandler := cors.New(corsOptions(config.Server.AllowedOrigins))
	baseMiddlewares := []Middleware{recoverMiddleware(logger), requestLogMiddleware(logger)}
	appHandler := applyMiddlewares(mux, append(baseMiddlewares, middlewares...))
	handler := h2c.NewHandler(corsHandler.Handler(appHandler), &http2.Server{})
	return handler, cleanup, nil
}

func corsOptions(allowedOrigins []string) cors.Options {
	opts := cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           int(2 * time.Hour / time.Second),
	}
	if len(allowedOrigins) == 0 {
		opts.AllowOriginFunc = func(_ string) bool { return true }
	} else {
		opts.AllowedOrigins = allowedOrigins
	}
	return opts
}
