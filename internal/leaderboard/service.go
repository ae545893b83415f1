package leaderboard

import (
	"context"
	"log"
	"time"

	"github.com/Sabathrodriguez/trunV3/internal/db"

	"github.com/google/uuid"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Append records a completed run in the route's log and bumps the shared
// route's popularity counter.
func (s *Service) Append(ctx context.Context, routeKey string, run Run) (Run, error) {
	run.ID = uuid.NewString()
	if run.CompletedAt.IsZero() {
		run.CompletedAt = time.Now()
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO route_runs (id, route_key, participant_id, elapsed_sec, distance_miles, pace, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING completed_at
	`, run.ID, routeKey, run.ParticipantID, run.ElapsedSec, run.DistanceMiles, run.Pace, run.CompletedAt)
	if err := row.Scan(&run.CompletedAt); err != nil {
		return Run{}, err
	}

	// best effort; the run itself is already recorded
	if _, err := s.db.Exec(ctx, `
		UPDATE shared_routes SET run_count = run_count + 1 WHERE id=$1
	`, routeKey); err != nil {
		log.Printf("leaderboard: run_count bump failed for %s: %v", routeKey, err)
	}

	return run, nil
}

// Top fetches the fastest runs for a route and ranks them for display.
func (s *Service) Top(ctx context.Context, routeKey string, limit int, selfID string) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, participant_id, elapsed_sec, COALESCE(distance_miles,0), COALESCE(pace,'--:--'), completed_at
		FROM route_runs WHERE route_key=$1
		ORDER BY elapsed_sec ASC
		LIMIT $2
	`, routeKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.ParticipantID, &r.ElapsedSec, &r.DistanceMiles, &r.Pace, &r.CompletedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return Rank(runs, selfID), nil
}
