package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sabathrodriguez/trunV3/internal/shared/geo"
	"github.com/Sabathrodriguez/trunV3/internal/shared/pace"
	"github.com/google/uuid"
)

// staleAfter bounds the live roster to recently-active participants without
// an explicit leave signal.
const staleAfter = 30 * time.Second

// ErrNoIdentity is returned when a session is started without a resolvable
// participant identifier.
var ErrNoIdentity = errors.New("live: participant identity required")

// Session tracks one local participant's live run: their own published
// position plus the reconciled set of peers on the same route. All state
// sits behind one mutex; channel callbacks are tagged with the session epoch
// they were subscribed under and discarded if a later Start has superseded it.
type Session struct {
	participantID string
	channel       Channel
	onSnapshot    func(routeKey string, participants []Participant)
	now           func() time.Time

	mu           sync.Mutex
	epoch        string
	routeKey     string
	geom         geo.Geometry
	participants map[string]Participant
	joinOrder    []string
	paceHist     map[string]pace.Sample
	unsubscribe  func()
}

func NewSession(participantID string, ch Channel, onSnapshot func(string, []Participant)) *Session {
	return &Session{
		participantID: participantID,
		channel:       ch,
		onSnapshot:    onSnapshot,
		now:           time.Now,
	}
}

// Start discards any prior session unconditionally, precomputes the route
// geometry, writes the initial zero record, registers channel cleanup for an
// unclean disconnect, and subscribes to peer updates.
func (s *Session) Start(ctx context.Context, routeKey string, coords []geo.Point) error {
	if s.participantID == "" {
		return ErrNoIdentity
	}

	s.Stop(ctx)

	s.mu.Lock()
	epoch := uuid.NewString()
	s.epoch = epoch
	s.routeKey = routeKey
	s.geom = geo.Precompute(coords)
	s.participants = make(map[string]Participant)
	s.joinOrder = nil
	s.paceHist = make(map[string]pace.Sample)
	s.mu.Unlock()

	// Fire-and-forget: the next periodic publish self-heals the shared state.
	_ = s.channel.RegisterRemovalOnDisconnect(ctx, routeKey, s.participantID)
	_ = s.channel.Write(ctx, routeKey, s.participantID, Record{})

	unsub, err := s.channel.Subscribe(ctx, routeKey, Handlers{
		OnUpsert:  func(id string, rec Record) { s.handleRemote(epoch, id, rec) },
		OnRemoved: func(id string) { s.handleRemoval(epoch, id) },
	})
	if err != nil {
		s.mu.Lock()
		if s.epoch == epoch {
			s.resetLocked()
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.epoch != epoch {
		// stopped or restarted while the subscription was being set up
		s.mu.Unlock()
		unsub()
		return nil
	}
	s.unsubscribe = unsub
	s.mu.Unlock()
	return nil
}

// Publish records the local participant's position and pushes the compact
// record to the channel. A no-op when the session is idle. The channel write
// happens off the caller's path; only the in-memory update is synchronous.
func (s *Session) Publish(ctx context.Context, fix Fix) {
	s.mu.Lock()
	if s.epoch == "" {
		s.mu.Unlock()
		return
	}

	now := s.now()
	routeKey := s.routeKey
	point := geo.Point{Lat: fix.Lat, Lon: fix.Lon}
	progress := s.geom.Progress(point)

	paceStr := fix.Pace
	sample := pace.Sample{Progress: progress, At: now}
	if paceStr == "" {
		var prev *pace.Sample
		if h, ok := s.paceHist[s.participantID]; ok {
			prev = &h
		}
		paceStr = pace.Derive(prev, sample, s.geom.TotalM)
	}
	s.paceHist[s.participantID] = sample

	distance := fix.DistanceMiles
	if distance == 0 {
		distance = pace.DistanceMiles(progress, s.geom.TotalM)
	}

	rank := s.joinRankLocked(s.participantID)
	s.participants[s.participantID] = Participant{
		ID:            s.participantID,
		Name:          "You",
		Lat:           fix.Lat,
		Lon:           fix.Lon,
		Progress:      progress,
		Pace:          paceStr,
		DistanceMiles: distance,
		Origin:        OriginSelf,
		JoinRank:      rank,
		UpdatedAt:     now,
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	go func() {
		_ = s.channel.Write(ctx, routeKey, s.participantID, Record{
			La: fix.Lat,
			Lo: fix.Lon,
			P:  progress,
			T:  now.UnixMilli(),
		})
	}()

	s.emit(routeKey, snapshot)
}

// Stop unsubscribes, removes the participant's record explicitly (disconnect
// cleanup is best-effort, stopping is deterministic), cancels the disconnect
// directive so late cleanup cannot delete a future session's data, clears all
// state and pushes an empty snapshot. Safe to call when already idle.
func (s *Session) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.epoch == "" {
		s.mu.Unlock()
		return
	}
	routeKey := s.routeKey
	unsub := s.unsubscribe
	s.resetLocked()
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	_ = s.channel.Remove(ctx, routeKey, s.participantID)
	_ = s.channel.CancelRemovalOnDisconnect(ctx, routeKey, s.participantID)

	s.emit(routeKey, nil)
}

// Participants returns a copy of the current roster in join order.
func (s *Session) Participants() []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Active reports whether a session is running, and for which route.
func (s *Session) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.routeKey, s.epoch != ""
}

func (s *Session) handleRemote(epoch, id string, rec Record) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}

	now := s.now()
	if rec.T > 0 && now.Sub(time.UnixMilli(rec.T)) > staleAfter {
		s.mu.Unlock()
		return
	}

	// Self updates are authored only via Publish; an echo off the channel
	// must never race the locally-owned record, and must not claim a join
	// rank a real peer would otherwise get.
	if id == s.participantID {
		s.mu.Unlock()
		return
	}

	rank := s.joinRankLocked(id)

	var prev *pace.Sample
	if h, ok := s.paceHist[id]; ok {
		prev = &h
	}
	sample := pace.Sample{Progress: rec.P, At: now}
	derived := pace.Derive(prev, sample, s.geom.TotalM)
	// history advances even when derivation failed, so one bad sample does
	// not block pace forever
	s.paceHist[id] = sample

	s.participants[id] = Participant{
		ID:            id,
		Name:          fmt.Sprintf("Runner %d", rank),
		Lat:           rec.La,
		Lon:           rec.Lo,
		Progress:      rec.P,
		Pace:          derived,
		DistanceMiles: pace.DistanceMiles(rec.P, s.geom.TotalM),
		Origin:        OriginRemote,
		JoinRank:      rank,
		UpdatedAt:     now,
	}
	routeKey := s.routeKey
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(routeKey, snapshot)
}

func (s *Session) handleRemoval(epoch, id string) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}

	delete(s.participants, id)
	delete(s.paceHist, id)
	for i, existing := range s.joinOrder {
		if existing == id {
			s.joinOrder = append(s.joinOrder[:i], s.joinOrder[i+1:]...)
			break
		}
	}
	routeKey := s.routeKey
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(routeKey, snapshot)
}

// joinRankLocked returns the 1-based first-seen index for id, appending it
// on first observation. Ranks are never reused within a session.
func (s *Session) joinRankLocked(id string) int {
	for i, existing := range s.joinOrder {
		if existing == id {
			return i + 1
		}
	}
	s.joinOrder = append(s.joinOrder, id)
	return len(s.joinOrder)
}

func (s *Session) snapshotLocked() []Participant {
	out := make([]Participant, 0, len(s.participants))
	for _, id := range s.joinOrder {
		if p, ok := s.participants[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) resetLocked() {
	s.epoch = ""
	s.routeKey = ""
	s.geom = geo.Geometry{}
	s.participants = nil
	s.joinOrder = nil
	s.paceHist = nil
	s.unsubscribe = nil
}

func (s *Session) emit(routeKey string, snapshot []Participant) {
	if s.onSnapshot != nil {
		s.onSnapshot(routeKey, snapshot)
	}
}
