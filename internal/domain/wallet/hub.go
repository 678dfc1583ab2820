package wallet

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/smartpay/smartpay-api/internal/pkg/metrics"
)

// EventsChannel is the Redis Pub/Sub channel shared by all instances.
const EventsChannel = "wallet:events"

const sendBufferSize = 64

type eventEnvelope struct {
	AccountID        string          `json:"account_id"`
	Payload          json.RawMessage `json:"payload"`
	SenderInstanceID string          `json:"sender_instance_id"`
}

// Connection is one live feed subscriber
type Connection struct {
	AccountID uuid.UUID
	Conn      *websocket.Conn
	Send      chan []byte
}

func NewConnection(accountID uuid.UUID, conn *websocket.Conn) *Connection {
	return &Connection{AccountID: accountID, Conn: conn, Send: make(chan []byte, sendBufferSize)}
}

// Hub fans wallet events out to websocket connections, across instances when Redis is configured.
type Hub struct {
	// Local connections (this server instance only)
	connections map[uuid.UUID]map[*Connection]bool

	redis  *redis.Client
	pubsub *redis.PubSub

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc

	instanceID string
}

func NewHub(redisClient *redis.Client) *Hub {
	return NewHubWithInstanceID(redisClient, uuid.NewString())
}

// NewHubWithInstanceID creates a hub with an explicit instance identifier.
func NewHubWithInstanceID(redisClient *redis.Client, instanceID string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		redis:       redisClient,
		ctx:         ctx,
		cancel:      cancel,
		instanceID:  instanceID,
	}

	if redisClient != nil {
		h.pubsub = redisClient.Subscribe(ctx, EventsChannel)
		// wait for the subscription so events published right after start are not lost
		waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
		if _, err := h.pubsub.Receive(waitCtx); err != nil {
			log.Warn().Err(err).Msg("Wallet events subscription not confirmed")
		}
		waitCancel()
	}

	return h
}

// Run relays events from other instances until Shutdown (call in goroutine)
func (h *Hub) Run() {
	if h.pubsub == nil {
		<-h.ctx.Done()
		return
	}
	h.runRedisSubscriber()
}

func (h *Hub) runRedisSubscriber() {
	ch := h.pubsub.Channel()

	for {
		select {
		case <-h.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.handleEnvelope(msg.Payload)
		}
	}
}

func (h *Hub) handleEnvelope(payload string) {
	var env eventEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return
	}
	// already delivered locally by the sender
	if env.SenderInstanceID == h.instanceID {
		return
	}
	accountID, err := uuid.Parse(env.AccountID)
	if err != nil {
		return
	}
	h.sendLocal(accountID, env.Payload)
}

// Register adds a connection. It is visible to Publish once Register returns.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	if h.connections[conn.AccountID] == nil {
		h.connections[conn.AccountID] = make(map[*Connection]bool)
	}
	h.connections[conn.AccountID][conn] = true
	h.mu.Unlock()

	metrics.WSConnected()
	log.Debug().Str("account_id", conn.AccountID.String()).Msg("Wallet feed connected")
}

// Unregister removes a connection and closes its Send channel. Safe to call twice.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	conns, ok := h.connections[conn.AccountID]
	if !ok || !conns[conn] {
		h.mu.Unlock()
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.connections, conn.AccountID)
	}
	close(conn.Send)
	h.mu.Unlock()

	metrics.WSDisconnected()
	log.Debug().Str("account_id", conn.AccountID.String()).Msg("Wallet feed disconnected")
}

// Publish delivers event to every connection of the account on any instance.
func (h *Hub) Publish(ctx context.Context, accountID uuid.UUID, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal wallet event")
		return
	}

	h.sendLocal(accountID, data)

	if h.redis == nil {
		return
	}
	env, err := json.Marshal(eventEnvelope{
		AccountID:        accountID.String(),
		Payload:          data,
		SenderInstanceID: h.instanceID,
	})
	if err != nil {
		return
	}
	if err := h.redis.Publish(ctx, EventsChannel, env).Err(); err != nil {
		log.Warn().Err(err).Str("account_id", accountID.String()).Msg("Redis publish of wallet event failed")
	}
}

// SendTo queues data on a single connection without blocking.
func (h *Hub) SendTo(conn *Connection, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.connections[conn.AccountID][conn] {
		return
	}
	h.enqueue(conn, data)
}

func (h *Hub) sendLocal(accountID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.connections[accountID] {
		h.enqueue(conn, data)
	}
}

// enqueue must run under h.mu so Send is not closed underneath it.
func (h *Hub) enqueue(conn *Connection, data []byte) {
	select {
	case conn.Send <- data:
		metrics.WSEvent("sent")
	default:
		metrics.WSEvent("dropped")
		log.Warn().Str("account_id", conn.AccountID.String()).Msg("Wallet feed send buffer full")
	}
}

// ConnectionCount returns number of local connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.connections {
		total += len(conns)
	}
	return total
}

func (h *Hub) Shutdown() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}
