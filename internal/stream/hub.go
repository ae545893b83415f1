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

// Hub fans full participant snapshots out to WebSocket viewers per route.
// Every change pushes the whole current roster, never a diff. With Redis
// configured, snapshots also cross instance boundaries via pub/sub.
type Hub struct {
	id      string
	redis   *redis.Client
	viewers map[string]map[*Viewer]struct{}
	mu      sync.RWMutex
}

// envelope wraps a snapshot on the Redis wire so an instance can tell its own
// publishes apart from a peer's; local viewers already got the snapshot
// directly in Broadcast.
type envelope struct {
	Source string          `json:"source"`
	Data   json.RawMessage `json:"data"`
}

type Viewer struct {
	RouteKey string
	Send     chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		id:      uuid.NewString(),
		redis:   redisClient,
		viewers: map[string]map[*Viewer]struct{}{},
	}

	if redisClient != nil {
		go h.followRedis()
	}
	return h
}

func (h *Hub) Register(routeKey string) *Viewer {
	viewer := &Viewer{
		RouteKey: routeKey,
		Send:     make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.viewers[routeKey] == nil {
		h.viewers[routeKey] = map[*Viewer]struct{}{}
	}
	h.viewers[routeKey][viewer] = struct{}{}
	return viewer
}

func (h *Hub) Unregister(viewer *Viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if routeViewers, ok := h.viewers[viewer.RouteKey]; ok {
		delete(routeViewers, viewer)
		if len(routeViewers) == 0 {
			delete(h.viewers, viewer.RouteKey)
		}
	}
	close(viewer.Send)
}

// Broadcast delivers the snapshot to local viewers and, when Redis is
// configured, to viewers attached to other instances. Slow viewers are
// skipped rather than blocked on.
func (h *Hub) Broadcast(routeKey string, snapshot []byte) {
	h.deliverLocal(routeKey, snapshot)

	if h.redis != nil {
		payload, err := json.Marshal(envelope{Source: h.id, Data: snapshot})
		if err != nil {
			log.Printf("stream: snapshot marshal error: %v", err)
			return
		}
		if err := h.redis.Publish(context.Background(), snapshotChannel(routeKey), payload).Err(); err != nil {
			log.Printf("stream: redis publish error: %v", err)
		}
	}
}

// deliverLocal sends under the read lock so Unregister cannot delete from the
// map or close a Send channel mid-iteration. Sends never block, so holding the
// lock across them is safe.
func (h *Hub) deliverLocal(routeKey string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for viewer := range h.viewers[routeKey] {
		select {
		case viewer.Send <- payload:
		default:
		}
	}
}

func (h *Hub) followRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "liverun:*:snapshot")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		routeKey := routeKeyFromChannel(msg.Channel)
		if routeKey == "" {
			continue
		}
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			log.Printf("stream: dropping malformed snapshot envelope: %v", err)
			continue
		}
		if env.Source == h.id {
			// our own publish; local viewers were served in Broadcast
			continue
		}
		h.deliverLocal(routeKey, env.Data)
	}
}

func snapshotChannel(routeKey string) string {
	return "liverun:" + routeKey + ":snapshot"
}

func routeKeyFromChannel(ch string) string {
	const prefix = "liverun:"
	const suffix = ":snapshot"
	if !strings.HasPrefix(ch, prefix) || !strings.HasSuffix(ch, suffix) || len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
