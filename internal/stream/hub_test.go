package stream

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	viewer := hub.Register("route-1")
	defer hub.Unregister(viewer)

	hub.Broadcast("route-1", []byte(`[{"id":"runner-1"}]`))

	select {
	case msg := <-viewer.Send:
		if string(msg) != `[{"id":"runner-1"}]` {
			t.Fatalf("unexpected snapshot")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for snapshot")
	}
}

func TestHubChannelHelpers(t *testing.T) {
	ch := snapshotChannel("abc")
	if routeKeyFromChannel(ch) != "abc" {
		t.Fatalf("unexpected route key")
	}
	if routeKeyFromChannel("bad") != "" {
		t.Fatalf("expected empty route key")
	}
	if routeKeyFromChannel("liverun::snapshot") != "" {
		t.Fatalf("expected empty route key for empty segment")
	}
}

func TestUnregisterCloses(t *testing.T) {
	hub := NewHub(nil)
	viewer := hub.Register("route-2")
	hub.Unregister(viewer)
	if _, ok := <-viewer.Send; ok {
		t.Fatalf("expected channel closed")
	}
}

func TestHubRoutesAreIsolated(t *testing.T) {
	hub := NewHub(nil)
	a := hub.Register("route-a")
	defer hub.Unregister(a)
	b := hub.Register("route-b")
	defer hub.Unregister(b)

	hub.Broadcast("route-a", []byte("only-a"))

	select {
	case <-a.Send:
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("route-a viewer should receive")
	}
	select {
	case <-b.Send:
		t.Fatalf("route-b viewer must not receive route-a snapshots")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRedisFanOut(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	hub := NewHub(client)
	viewer := hub.Register("route-redis")
	defer hub.Unregister(viewer)

	// give the pattern subscription a moment to attach
	time.Sleep(20 * time.Millisecond)

	// another instance publishes a snapshot for this route
	peer := `{"source":"other-instance","data":["from-peer"]}`
	if err := client.Publish(context.Background(), "liverun:route-redis:snapshot", peer).Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-viewer.Send:
		if string(msg) != `["from-peer"]` {
			t.Fatalf("unexpected snapshot from redis: %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for redis fan-out")
	}
}

func TestBroadcastDeliversOnceWithRedis(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	hub := NewHub(client)
	viewer := hub.Register("route-once")
	defer hub.Unregister(viewer)

	// give the pattern subscription a moment to attach
	time.Sleep(20 * time.Millisecond)

	hub.Broadcast("route-once", []byte(`["snapshot"]`))

	select {
	case <-viewer.Send:
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for local delivery")
	}

	// the instance's own publish comes back through the subscription; it must
	// not reach local viewers a second time
	select {
	case msg := <-viewer.Send:
		t.Fatalf("duplicate delivery of one broadcast: %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcastDuringUnregister(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hub.Broadcast("route-churn", []byte("snapshot"))
		}
	}()

	for i := 0; i < 200; i++ {
		viewer := hub.Register("route-churn")
		hub.Unregister(viewer)
	}
	<-done
}

func TestHubRedisPublishError(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	server.Close()
	defer client.Close()

	hub := NewHub(client)
	viewer := hub.Register("route-bad")
	defer hub.Unregister(viewer)

	// local delivery still works with redis down
	hub.Broadcast("route-bad", []byte("snapshot"))
	select {
	case <-viewer.Send:
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("expected local delivery despite redis error")
	}
}
