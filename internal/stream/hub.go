package stream

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "walk:"
	channelSuffix  = ":events"
	channelPattern = channelPrefix + "*" + channelSuffix
	sendBuffer     = 64
	mirrorBuffer   = 256
)

// Hub fans session events out to websocket clients. With a redis client the
// events are mirrored on walk:{session}:events so a companion process sees them
// too.
type Hub struct {
	id      string
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex

	mirror chan mirrored
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type mirrored struct {
	channel string
	msg     []byte
}

type Client struct {
	SessionID string
	Send      chan []byte
}

type envelope struct {
	Origin  string `json:"origin"`
	Payload []byte `json:"payload"`
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		id:      uuid.NewString(),
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		pubsub := redisClient.PSubscribe(ctx, channelPattern)
		h.cancel = cancel
		h.mirror = make(chan mirrored, mirrorBuffer)
		h.wg.Add(2)
		go h.subscribeRedis(ctx, pubsub)
		go h.publishRedis(ctx)
	}
	return h
}

func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessionClients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	if _, ok := sessionClients[client]; !ok {
		return
	}
	delete(sessionClients, client)
	if len(sessionClients) == 0 {
		delete(h.clients, client.SessionID)
	}
	close(client.Send)
}

func (h *Hub) Clients(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Broadcast never blocks on redis: the mirror is queued and published from its
// own goroutine.
func (h *Hub) Broadcast(sessionID string, payload []byte) {
	h.deliver(sessionID, payload)

	if h.redis == nil {
		return
	}
	msg, err := json.Marshal(envelope{Origin: h.id, Payload: payload})
	if err != nil {
		log.Printf("stream: encode envelope: %v", err)
		return
	}
	select {
	case h.mirror <- mirrored{channel: redisChannel(sessionID), msg: msg}:
	default:
		log.Printf("stream %s: redis mirror backlog full, event not mirrored", sessionID)
	}
}

func (h *Hub) publishRedis(ctx context.Context) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-h.mirror:
			if err := h.redis.Publish(ctx, m.channel, m.msg).Err(); err != nil {
				log.Printf("redis publish error: %v", err)
			}
		}
	}
}

// deliver holds the read lock while sending so Unregister cannot close a
// channel mid-send. Slow clients lose the event.
func (h *Hub) deliver(sessionID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[sessionID] {
		select {
		case client.Send <- payload:
		default:
			log.Printf("stream %s: client too slow, event dropped", sessionID)
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer h.wg.Done()
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			sessionID := sessionIDFromChannel(msg.Channel)
			if sessionID == "" {
				continue
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("stream: malformed event on %s: %v", msg.Channel, err)
				continue
			}
			if env.Origin == h.id {
				continue
			}
			h.deliver(sessionID, env.Payload)
		}
	}
}

func (h *Hub) Close() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	h.wg.Wait()
}

func redisChannel(sessionID string) string {
	return channelPrefix + sessionID + channelSuffix
}

func sessionIDFromChannel(ch string) string {
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
