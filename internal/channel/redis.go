package channel

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Sabathrodriguez/trunV3/internal/live"
	"github.com/redis/go-redis/v9"
)

// disconnectTTL is how long an armed participant record survives without a
// refreshing write before Redis drops it. Readers additionally apply their
// own 30s staleness filter, so expiry here is cleanup, not liveness.
const disconnectTTL = 60 * time.Second

type event struct {
	Kind   string       `json:"kind"`
	ID     string       `json:"id"`
	Record *live.Record `json:"record,omitempty"`
}

// Redis carries participant records over a Redis key-value layout with a
// pub/sub event feed per route. Records live at liverun:{route}:runner:{id};
// every mutation also publishes an event on liverun:{route}:events so
// subscribers see granular upsert/removed notifications.
type Redis struct {
	client *redis.Client

	mu       sync.Mutex
	armedTTL map[string]struct{}
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		client:   client,
		armedTTL: make(map[string]struct{}),
	}
}

func recordKey(routeKey, participantID string) string {
	return "liverun:" + routeKey + ":runner:" + participantID
}

func recordKeyPrefix(routeKey string) string {
	return "liverun:" + routeKey + ":runner:"
}

func eventsChannel(routeKey string) string {
	return "liverun:" + routeKey + ":events"
}

// Write stores the record under the participant's key and publishes an
// upsert event. The timestamp is server-assigned: Redis server time when
// reachable, the local clock otherwise.
func (r *Redis) Write(ctx context.Context, routeKey, participantID string, rec live.Record) error {
	rec.T = r.serverNow(ctx).UnixMilli()

	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	var ttl time.Duration
	r.mu.Lock()
	if _, armed := r.armedTTL[recordKey(routeKey, participantID)]; armed {
		ttl = disconnectTTL
	}
	r.mu.Unlock()

	if err := r.client.Set(ctx, recordKey(routeKey, participantID), payload, ttl).Err(); err != nil {
		return err
	}
	return r.publish(ctx, routeKey, event{Kind: "upsert", ID: participantID, Record: &rec})
}

// Remove deletes the participant's record and publishes a removed event.
func (r *Redis) Remove(ctx context.Context, routeKey, participantID string) error {
	if err := r.client.Del(ctx, recordKey(routeKey, participantID)).Err(); err != nil {
		return err
	}
	return r.publish(ctx, routeKey, event{Kind: "removed", ID: participantID})
}

// RegisterRemovalOnDisconnect arms a TTL on the participant's record so a
// client that vanishes without stopping is eventually cleaned up. Each Write
// refreshes the TTL while armed.
func (r *Redis) RegisterRemovalOnDisconnect(ctx context.Context, routeKey, participantID string) error {
	key := recordKey(routeKey, participantID)
	r.mu.Lock()
	r.armedTTL[key] = struct{}{}
	r.mu.Unlock()

	// best effort on an existing record; the next write applies it anyway
	_ = r.client.Expire(ctx, key, disconnectTTL).Err()
	return nil
}

// CancelRemovalOnDisconnect disarms the TTL so a late-firing cleanup cannot
// delete a future session's record under the same key.
func (r *Redis) CancelRemovalOnDisconnect(ctx context.Context, routeKey, participantID string) error {
	key := recordKey(routeKey, participantID)
	r.mu.Lock()
	delete(r.armedTTL, key)
	r.mu.Unlock()

	_ = r.client.Persist(ctx, key).Err()
	return nil
}

// Subscribe follows the route's event feed. Records already present are
// replayed as upserts first, approximating an added/changed listener pair.
// The returned func tears the subscription down.
func (r *Redis) Subscribe(ctx context.Context, routeKey string, h live.Handlers) (func(), error) {
	pubsub := r.client.Subscribe(ctx, eventsChannel(routeKey))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	go func() {
		r.replay(ctx, routeKey, h)
		for msg := range pubsub.Channel() {
			var ev event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("channel: dropping malformed event: %v", err)
				continue
			}
			dispatch(h, ev)
		}
	}()

	return func() { _ = pubsub.Close() }, nil
}

func (r *Redis) replay(ctx context.Context, routeKey string, h live.Handlers) {
	prefix := recordKeyPrefix(routeKey)
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return
		}
		for _, key := range keys {
			raw, err := r.client.Get(ctx, key).Result()
			if err != nil {
				continue
			}
			var rec live.Record
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				continue
			}
			dispatch(h, event{Kind: "upsert", ID: strings.TrimPrefix(key, prefix), Record: &rec})
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

func dispatch(h live.Handlers, ev event) {
	switch ev.Kind {
	case "upsert":
		if h.OnUpsert != nil && ev.Record != nil {
			h.OnUpsert(ev.ID, *ev.Record)
		}
	case "removed":
		if h.OnRemoved != nil {
			h.OnRemoved(ev.ID)
		}
	}
}

func (r *Redis) publish(ctx context.Context, routeKey string, ev event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, eventsChannel(routeKey), payload).Err()
}

func (r *Redis) serverNow(ctx context.Context) time.Time {
	if t, err := r.client.Time(ctx).Result(); err == nil {
		return t
	}
	return time.Now()
}
