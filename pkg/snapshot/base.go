package snapshot

import (
	"time"

	"github.com/snapmirror/snapmirror/pkg/errors"
)

// Distance scores how suitable candidate is as the clone base for building
// target. It returns the number of days between them if the candidate is
// newer than the target, or twice that if it is older. Snapshots mostly
// accumulate growth, so a file missing around the target is more likely to
// exist in a later snapshot than in an earlier one.
func Distance(target, candidate Date) int {
	days := int(candidate.day.Sub(target.day) / (24 * time.Hour))
	if days < 0 {
		return -2 * days
	}
	return days
}

// ClosestTo returns the date in the set with the smallest Distance to
// target. Ties go to the earlier date, so the result doesn't depend on map
// iteration order.
func (s Set) ClosestTo(target Date) (Date, error) {
	var best Date
	bestDistance := 0
	found := false
	for candidate := range s {
		distance := Distance(target, candidate)
		better := distance < bestDistance ||
			(distance == bestDistance && candidate.Before(best))
		if !found || better {
			best = candidate
			bestDistance = distance
			found = true
		}
	}

	if !found {
		return Date{}, errors.ErrNoBaseSnapshot
	}
	return best, nil
}
