package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/surveyplot/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to feeds.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "plots" | "imports"
	PlotID  string `json:"plot_id"` // narrows "plots" to one plot's events (optional)
}

// channelSubject maps a client channel onto a NATS subject.
func channelSubject(m wsMessage) (string, bool) {
	switch m.Channel {
	case "", "plots":
		return "survey.plots.>", true
	case "imports":
		return "survey.imports.completed", true
	}
	return "", false
}

// WebSocketHandler returns a handler that relays survey events from NATS
// to connected clients. Clients start subscribed to plot events and send
// {"action":"subscribe","channel":"imports"} for more. With plot_id set,
// only events for that plot are forwarded.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		relay := func(plotID string) nats.MsgHandler {
			return func(msg *nats.Msg) {
				if plotID != "" {
					var ev struct {
						PlotID string `json:"plot_id"`
					}
					if json.Unmarshal(msg.Data, &ev) != nil || ev.PlotID != plotID {
						return
					}
				}
				_ = writeJSON(wsEvent{Subject: msg.Subject, Data: json.RawMessage(msg.Data)})
			}
		}

		subs := make(map[string]*nats.Subscription) // subject[|plot] -> subscription
		subscribe := func(key, subject, plotID string) error {
			s, err := nc.Subscribe(subject, relay(plotID))
			if err != nil {
				return err
			}
			subs[key] = s
			return nil
		}

		if err := subscribe("survey.plots.>", "survey.plots.>", ""); err != nil {
			slog.Error("ws default subscribe", "error", err)
			return
		}

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}
			subject, ok := channelSubject(m)
			if !ok {
				_ = writeJSON(map[string]string{"error": "unknown channel: " + m.Channel})
				continue
			}
			key := subject
			if m.PlotID != "" {
				key += "|" + m.PlotID
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[key]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				if err := subscribe(key, subject, m.PlotID); err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				s, exists := subs[key]
				if !exists {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
					continue
				}
				_ = s.Unsubscribe()
				delete(subs, key)
				_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}

// wsEvent is the frame relayed to clients.
type wsEvent struct {
	Subject string          `json:"subject"`
	Data    json.RawMessage `json:"data"`
}
