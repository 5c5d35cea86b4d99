package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ds124wfegd/openmic-lineup/internal/entity"
	"github.com/ds124wfegd/openmic-lineup/internal/metrics"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/sirupsen/logrus"
)

type Config struct {
	SendBuffer   int
	WriteTimeout time.Duration
}

// Hub is the registry of live connections. Registration, removal and
// broadcast iteration may run concurrently.
type Hub struct {
	clients *xsync.Map[string, *Client]
	config  Config
	metrics *metrics.Metrics
}

func NewHub(config Config, m *metrics.Metrics) *Hub {
	if config.SendBuffer <= 0 {
		config.SendBuffer = 64
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	return &Hub{
		clients: xsync.NewMap[string, *Client](),
		config:  config,
		metrics: m,
	}
}

// Register adds conn under identity and starts its writer.
func (h *Hub) Register(conn Conn, identity entity.Identity) *Client {
	id := uuid.NewString()
	if identity.Kind == entity.IdentityAnonymous {
		if identity.ConnID == "" {
			identity.ConnID = id
		}
		id = identity.ConnID
	}

	c := newClient(id, identity, conn, h.config.SendBuffer, h.config.WriteTimeout)
	h.clients.Store(id, c)
	c.open()
	h.metrics.ConnOpened()

	logrus.WithFields(logrus.Fields{
		"conn_id":  id,
		"identity": identity.Key(),
	}).Debug("Websocket client registered")
	return c
}

func (h *Hub) Unregister(c *Client) {
	if _, loaded := h.clients.LoadAndDelete(c.id); loaded {
		h.metrics.ConnClosed()
		logrus.WithField("conn_id", c.id).Debug("Websocket client unregistered")
	}
	c.close()
}

// Run reads from the client until the peer goes away or ctx ends, then
// unregisters it. Inbound frames are ignored.
func (h *Hub) Run(ctx context.Context, c *Client) {
	defer h.Unregister(c)

	go func() {
		select {
		case <-ctx.Done():
			c.close()
		case <-c.done:
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) BroadcastToAll(env entity.Envelope) int {
	return h.broadcast(env, func(*Client) bool { return true })
}

// BroadcastToIdentity reaches only connections authenticated as userID.
func (h *Hub) BroadcastToIdentity(userID int64, env entity.Envelope) int {
	return h.broadcast(env, func(c *Client) bool {
		return c.identity.IsUser() && c.identity.UserID == userID
	})
}

func (h *Hub) broadcast(env entity.Envelope, match func(*Client) bool) int {
	frame, err := json.Marshal(env)
	if err != nil {
		logrus.WithError(err).WithField("type", env.Type).Error("Failed to encode broadcast")
		return 0
	}

	queued, dropped := 0, 0
	h.clients.Range(func(_ string, c *Client) bool {
		if !match(c) {
			return true
		}
		if c.enqueue(frame) {
			queued++
		} else {
			dropped++
		}
		return true
	})

	h.metrics.ObserveFrame(string(env.Type), queued, dropped)
	if dropped > 0 {
		logrus.WithFields(logrus.Fields{
			"type":    env.Type,
			"dropped": dropped,
		}).Warn("Dropped frames for slow or closed clients")
	}
	return queued
}

func (h *Hub) Count() int {
	return h.clients.Size()
}

// CloseAll disconnects every client; used on shutdown.
func (h *Hub) CloseAll() {
	h.clients.Range(func(_ string, c *Client) bool {
		h.Unregister(c)
		return true
	})
}
