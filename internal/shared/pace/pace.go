package pace

import (
	"fmt"
	"time"
)

// Unknown is returned whenever a pace cannot be derived.
const Unknown = "--:--"

const metersToMiles = 0.000621371

// Sample is a (progress, timestamp) observation for one participant.
type Sample struct {
	Progress float64
	At       time.Time
}

// Derive computes an instantaneous minutes-per-mile pace between the previous
// and current samples. It reflects only the delta between the two most recent
// updates; callers wanting smoother output must window it themselves.
//
// Unknown is returned when there is no previous sample, the route has no
// length, time did not advance, there was no forward motion, or the result
// is implausibly slow (an hour or more per mile).
func Derive(prev *Sample, cur Sample, totalDistanceM float64) string {
	if prev == nil || totalDistanceM <= 0 {
		return Unknown
	}

	elapsed := cur.At.Sub(prev.At)
	progressDelta := cur.Progress - prev.Progress
	if elapsed <= 0 || progressDelta <= 0 {
		return Unknown
	}

	distanceMiles := progressDelta * totalDistanceM * metersToMiles
	minutesPerMile := elapsed.Minutes() / distanceMiles

	whole := int(minutesPerMile)
	if whole >= 60 {
		return Unknown
	}
	seconds := int((minutesPerMile - float64(whole)) * 60)
	return fmt.Sprintf("%d:%02d", whole, seconds)
}

// DistanceMiles converts a route progress fraction into miles covered.
func DistanceMiles(progress, totalDistanceM float64) float64 {
	return progress * totalDistanceM * metersToMiles
}
