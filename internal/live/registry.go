package live

import "sync"

// Registry hands out one Session per participant. Sessions are created
// lazily and kept for the life of the process; an idle session holds no
// route state.
type Registry struct {
	channel    Channel
	onSnapshot func(routeKey string, participants []Participant)

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(ch Channel, onSnapshot func(string, []Participant)) *Registry {
	return &Registry{
		channel:    ch,
		onSnapshot: onSnapshot,
		sessions:   make(map[string]*Session),
	}
}

// Session returns the participant's session, creating it on first use.
func (r *Registry) Session(participantID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[participantID]
	if !ok {
		s = NewSession(participantID, r.channel, r.onSnapshot)
		r.sessions[participantID] = s
	}
	return s
}
