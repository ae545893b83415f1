package leaderboard

import (
	"sort"

	"github.com/Sabathrodriguez/trunV3/internal/live"
)

// Rank orders completed runs fastest-first and assigns 1-based ranks. The
// sort is stable so ties keep their original relative order.
func Rank(runs []Run, selfID string) []Entry {
	sorted := make([]Run, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ElapsedSec < sorted[j].ElapsedSec
	})

	entries := make([]Entry, 0, len(sorted))
	for i, run := range sorted {
		entries = append(entries, Entry{
			ID:            run.ID,
			ParticipantID: run.ParticipantID,
			Rank:          i + 1,
			Pace:          run.Pace,
			ElapsedSec:    run.ElapsedSec,
			DistanceMiles: run.DistanceMiles,
			CompletedAt:   run.CompletedAt,
			IsSelf:        run.ParticipantID == selfID,
		})
	}
	return entries
}

// RankLive orders live participants by progress, furthest along first.
// No rank is stored; position is recomputed on every render.
func RankLive(participants []live.Participant) []live.Participant {
	sorted := make([]live.Participant, len(participants))
	copy(sorted, participants)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Progress > sorted[j].Progress
	})
	return sorted
}
