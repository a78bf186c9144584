package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"txmanager/internal/model"
	"txmanager/internal/utils/log"
)

const writeWait = 5 * time.Second

type (
	subscriber struct {
		conn *websocket.Conn
		// filter limits the feed to payloads addressed to one key.
		filter model.OptionalKey
	}

	// eventHub fans stored payload notifications out to websocket clients.
	eventHub struct {
		mu          sync.Mutex
		subscribers map[string]*subscriber
		upgrader    websocket.Upgrader
	}
)

func newEventHub() *eventHub {
	return &eventHub{
		subscribers: make(map[string]*subscriber),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleEvents upgrades to a websocket that receives a model.StoredEvent for
// every payload pushed to this node. ?key=<public key> narrows the feed.
func (h *eventHub) HandleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := model.ParseOptionalKey(r.URL.Query().Get("key"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid key: "+err.Error())
			return
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("upgrade events connection failed", zap.Error(err))
			return
		}

		id := uuid.NewString()
		h.mu.Lock()
		h.subscribers[id] = &subscriber{conn: conn, filter: filter}
		h.mu.Unlock()
		log.Debug("events subscriber connected", zap.String("id", id))

		go h.readUntilClosed(id, conn)
	}
}

// readUntilClosed drains client frames so close messages are noticed.
func (h *eventHub) readUntilClosed(id string, conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Debug("events subscriber closed", zap.String("id", id), zap.Error(err))
			h.remove(id)
			return
		}
	}
}

func (h *eventHub) publish(hash model.MessageHash, p *model.EncodedPayloadWithRecipients) {
	event := model.StoredEvent{
		Key:        hash.String(),
		Sender:     p.SenderKey.String(),
		Recipients: make([]string, 0, len(p.RecipientKeys)),
	}
	for _, k := range p.RecipientKeys {
		event.Recipients = append(event.Recipients, k.String())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		if k, ok := sub.filter.Get(); ok && !p.HasRecipient(k) {
			continue
		}
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteJSON(&event); err != nil {
			log.Warn("write event failed", zap.String("id", id), zap.Error(err))
			sub.conn.Close()
			delete(h.subscribers, id)
		}
	}
}

func (h *eventHub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[id]; ok {
		sub.conn.Close()
		delete(h.subscribers, id)
	}
}

func (h *eventHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		sub.conn.Close()
		delete(h.subscribers, id)
	}
}

func (h *eventHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
