package leaderboard

import "time"

// Run is one completed-run record in the route's append log.
type Run struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	ElapsedSec    float64   `json:"elapsed_sec" validate:"gt=0"`
	DistanceMiles float64   `json:"distance_miles" validate:"gte=0"`
	Pace          string    `json:"pace"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Entry is a presentation-ready ranked row. Immutable once built; a fresh
// set is produced per query.
type Entry struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	Rank          int       `json:"rank"`
	Pace          string    `json:"pace"`
	ElapsedSec    float64   `json:"elapsed_sec"`
	DistanceMiles float64   `json:"distance_miles"`
	CompletedAt   time.Time `json:"completed_at"`
	IsSelf        bool      `json:"is_self"`
}
