package notify

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// Client actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Acknowledgement and error events sent to a single client.
const (
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventError        = "error"
)

// ClientMessage is a frame sent by a websocket client.
type ClientMessage struct {
	Action    string `json:"action"`
	AccountID string `json:"accountId"`
}

// ServeHTTP upgrades the request to a websocket and serves the client until
// it disconnects. An accountId query parameter subscribes on connect.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warnw("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := h.Register()
	if id := r.URL.Query().Get("accountId"); id != "" {
		h.Subscribe(client, id)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(ctx, conn, client)
		cancel()
	}()

	h.readLoop(ctx, conn, client)
	h.Remove(client)
	<-done

	if r.Context().Err() != nil || h.isClosed() {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) readLoop(ctx context.Context, conn *websocket.Conn, c *Client) {
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				h.log.Debugw("websocket read ended", "error", err)
			}
			return
		}

		if msg.AccountID == "" {
			h.send(c, EventError, map[string]string{"message": "accountId is required"})
			continue
		}
		switch msg.Action {
		case ActionSubscribe:
			h.Subscribe(c, msg.AccountID)
			h.send(c, EventSubscribed, map[string]string{"accountId": msg.AccountID})
		case ActionUnsubscribe:
			h.Unsubscribe(c, msg.AccountID)
			h.send(c, EventUnsubscribed, map[string]string{"accountId": msg.AccountID})
		default:
			h.send(c, EventError, map[string]string{"message": "unknown action " + msg.Action})
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, c *Client) {
	for env := range c.Events() {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := wsjson.Write(wctx, conn, env)
		cancel()
		if err != nil {
			h.log.Debugw("websocket write failed", "error", err)
			return
		}
	}
}
