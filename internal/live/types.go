package live

import (
	"context"
	"time"
)

// Origin distinguishes the locally-authored participant record from records
// reconciled off the channel. Self records only ever enter the session via
// Publish; handleRemote refuses them.
type Origin string

const (
	OriginSelf   Origin = "self"
	OriginRemote Origin = "remote"
)

// Participant is one runner's current known state within a session.
type Participant struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Lat           float64   `json:"lat"`
	Lon           float64   `json:"lon"`
	Progress      float64   `json:"progress"`
	Pace          string    `json:"pace"`
	DistanceMiles float64   `json:"distance_miles"`
	Origin        Origin    `json:"origin"`
	JoinRank      int       `json:"join_rank"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Fix is one smoothed device location sample handed in by the caller.
// DistanceMiles and Pace come from the device's own run bookkeeping; when
// Pace is empty it is derived from the session's progress history instead.
type Fix struct {
	Lat           float64
	Lon           float64
	DistanceMiles float64
	Pace          string
}

// Record is the compact wire shape published per participant key. T is the
// server-assigned timestamp in epoch milliseconds; implementations overwrite
// whatever the caller put there on Write.
type Record struct {
	La float64 `json:"la"`
	Lo float64 `json:"lo"`
	P  float64 `json:"p"`
	T  int64   `json:"t"`
}

// Handlers receives channel notifications for a subscribed route. Upserts
// cover both first appearance and subsequent changes of a key.
type Handlers struct {
	OnUpsert  func(participantID string, rec Record)
	OnRemoved func(participantID string)
}

// Channel is the external pub/sub key-value feed that carries participant
// records for a route. Writes are fire-and-forget from the session's point
// of view; delivery failure is the channel's concern.
type Channel interface {
	Subscribe(ctx context.Context, routeKey string, h Handlers) (func(), error)
	Write(ctx context.Context, routeKey, participantID string, rec Record) error
	Remove(ctx context.Context, routeKey, participantID string) error
	RegisterRemovalOnDisconnect(ctx context.Context, routeKey, participantID string) error
	CancelRemovalOnDisconnect(ctx context.Context, routeKey, participantID string) error
}
