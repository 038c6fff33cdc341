package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/routemap/internal/adapters/nats"
	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/usecases"
	"github.com/samirrijal/routemap/internal/pkg/metrics"
)

// wsMessage is sent from client to follow surfaces or change their selection.
type wsMessage struct {
	Action  string                 `json:"action"` // "subscribe" | "unsubscribe" | "select" | "clear"
	Surface string                 `json:"surface"`
	Channel domain.Channel         `json:"channel,omitempty"`
	Items   []domain.SelectionItem `json:"items,omitempty"`
}

// WebSocketHandler relays the command batches of surfaces to map clients, which
// replay them against their vendor SDK. Clients connect with ?surface=<id> to
// follow one surface right away and may send JSON messages:
//
//	{"action":"subscribe","surface":"<id>"}
//	{"action":"select","surface":"<id>","channel":"route","items":[{"file_id":"A"}]}
//	{"action":"clear","surface":"<id>","channel":"space"}
func WebSocketHandler(nc *nats.Conn, surfaces *usecases.SurfaceService) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // surface id -> subscription

		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		follow := func(id string) {
			if _, exists := subs[id]; exists {
				_ = writeJSON(map[string]string{"status": "already subscribed", "surface": id})
				return
			}
			if _, err := surfaces.Get(id); err != nil {
				_ = writeJSON(map[string]string{"error": err.Error()})
				return
			}
			if nc == nil {
				_ = writeJSON(map[string]string{"error": "command relay unavailable"})
				return
			}
			s, err := nc.Subscribe(natsadapter.CommandSubject(id), func(msg *nats.Msg) {
				_ = writeJSON(json.RawMessage(msg.Data))
			})
			if err != nil {
				_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
				return
			}
			subs[id] = s
			_ = writeJSON(map[string]string{"status": "subscribed", "surface": id})
		}

		if id := c.Query("surface"); id != "" {
			follow(id)
		}

		// Keep-alive ping
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

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}
			if m.Surface == "" {
				_ = writeJSON(map[string]string{"error": "surface is required"})
				continue
			}

			switch m.Action {
			case "subscribe":
				follow(m.Surface)

			case "unsubscribe":
				if s, exists := subs[m.Surface]; exists {
					_ = s.Unsubscribe()
					delete(subs, m.Surface)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "surface": m.Surface})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + m.Surface})
				}

			case "select":
				plan, err := surfaces.Select(ctx, m.Surface, m.Channel, m.Items)
				if err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
					continue
				}
				_ = writeJSON(map[string]any{"status": "applied", "plan": plan})

			case "clear":
				var channels []domain.Channel
				if m.Channel != "" {
					channels = append(channels, m.Channel)
				}
				plans, err := surfaces.Clear(ctx, m.Surface, channels...)
				if err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
					continue
				}
				_ = writeJSON(map[string]any{"status": "cleared", "plans": plans})

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
