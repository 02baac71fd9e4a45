package snapshot

import (
	"sort"
	"time"

	"github.com/spf13/afero"

	"github.com/snapmirror/snapmirror/pkg/errors"
)

const dateLayout = "2006-01-02"

// A Date identifies a snapshot by the day it was taken. Snapshots are
// directories named after their date, so the date doubles as the directory
// name within the volume.
type Date struct {
	day time.Time
}

// ParseDate parses a snapshot directory name of the form YYYY-MM-DD.
func ParseDate(name string) (Date, error) {
	day, err := time.Parse(dateLayout, name)
	if err != nil {
		return Date{}, err
	}
	return Date{day: day}, nil
}

// String returns the snapshot's directory name.
func (d Date) String() string {
	return d.day.Format(dateLayout)
}

// Before reports whether d is an earlier day than other.
func (d Date) Before(other Date) bool {
	return d.day.Before(other.day)
}

// A Set is an unordered collection of snapshot dates.
type Set map[Date]struct{}

// Add inserts d into the set.
func (s Set) Add(d Date) {
	s[d] = struct{}{}
}

// Has reports whether d is in the set.
func (s Set) Has(d Date) bool {
	_, ok := s[d]
	return ok
}

// Diff returns the dates in s that are not in other.
func (s Set) Diff(other Set) Set {
	missing := Set{}
	for d := range s {
		if !other.Has(d) {
			missing.Add(d)
		}
	}
	return missing
}

// Max returns the latest date in the set, or false if the set is empty.
func (s Set) Max() (Date, bool) {
	var latest Date
	found := false
	for d := range s {
		if !found || latest.Before(d) {
			latest = d
			found = true
		}
	}
	return latest, found
}

// Sorted returns the dates in the set in chronological order.
func (s Set) Sorted() []Date {
	dates := make([]Date, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
	return dates
}

// List reads the snapshots in dir. Every entry must be named after its date.
// An entry that isn't is an error rather than being skipped, since it usually
// means dir isn't a snapshot volume at all.
func List(dir string) (Set, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, errors.WithContext(err, "list snapshots")
	}

	snapshots := Set{}
	for _, info := range infos {
		date, err := ParseDate(info.Name())
		if err != nil {
			return nil, errors.InvalidSnapshotName{Name: info.Name(), Dir: dir}
		}
		snapshots.Add(date)
	}
	return snapshots, nil
}
