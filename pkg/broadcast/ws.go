package broadcast

import (
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteWait  = 10 * time.Second
	defaultPongWait   = 60 * time.Second
	maxInboundMessage = 64 << 10
)

// WSOptions configures the websocket endpoint.
type WSOptions struct {
	// AllowedOrigins lists origins permitted to connect. Empty allows all.
	AllowedOrigins []string
	WriteWait      time.Duration
	PongWait       time.Duration
	Logger         *log.Logger
}

type wsHandler struct {
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
	writeWait   time.Duration
	pongWait    time.Duration
	pingPeriod  time.Duration
	logger      *log.Logger
}

// NewWSHandler streams the broadcaster's history and live events to
// websocket clients as JSON text frames. Client frames are read and ignored.
func NewWSHandler(b *Broadcaster, opts WSOptions) http.Handler {
	h := &wsHandler{
		broadcaster: b,
		writeWait:   opts.WriteWait,
		pongWait:    opts.PongWait,
		logger:      opts.Logger,
	}
	if h.writeWait <= 0 {
		h.writeWait = defaultWriteWait
	}
	if h.pongWait <= 0 {
		h.pongWait = defaultPongWait
	}
	h.pingPeriod = h.pongWait * 9 / 10
	if h.logger == nil {
		h.logger = log.Default()
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(opts.AllowedOrigins)}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		if origin != "" {
			set[strings.ToLower(origin)] = struct{}{}
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws upgrade failed remote=%s err=%v", r.RemoteAddr, err)
		return
	}
	sub := h.broadcaster.Subscribe()
	h.logger.Printf("ws connected id=%d remote=%s", sub.id, r.RemoteAddr)

	go h.writePump(conn, sub)
	h.readPump(conn, sub)
}

// readPump discards client frames until the connection fails, then ends the
// subscription, which in turn stops the writer.
func (h *wsHandler) readPump(conn *websocket.Conn, sub *Subscription) {
	defer h.broadcaster.Unsubscribe(sub)

	conn.SetReadLimit(maxInboundMessage)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Printf("ws read failed id=%d err=%v", sub.id, err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	}
}

func (h *wsHandler) writePump(conn *websocket.Conn, sub *Subscription) {
	ticker := time.NewTicker(h.pingPeriod)
	defer func() {
		ticker.Stop()
		h.broadcaster.Unsubscribe(sub)
		_ = conn.Close()
		h.logger.Printf("ws disconnected id=%d", sub.id)
	}()

	for {
		select {
		case frame, ok := <-sub.Frames():
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Printf("ws write failed id=%d err=%v", sub.id, err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeWait)); err != nil {
				return
			}
		}
	}
}
