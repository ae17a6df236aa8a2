package domain

import "time"

// SizeGroup is an ordered run of files archived together.
type SizeGroup struct {
	Files []FileDescriptor

	// sum of sizes of Files.
	TotalSize int64

	// true when this group has a single file which is larger than the group bound by itself.
	Oversized bool
}

// Qualifies reports that the group is large enough to be archived.
func (g SizeGroup) Qualifies(minArchiveBytes int64) bool {
	return minArchiveBytes <= g.TotalSize
}

func (g SizeGroup) Key() GroupKey {
	if len(g.Files) == 0 {
		return GroupKey{}
	}
	return g.Files[0].Key()
}

// RecordingRange returns the earliest and the latest recording time in the group.
func (g SizeGroup) RecordingRange() (time.Time, time.Time) {
	var min, max time.Time
	for nth, f := range g.Files {
		if nth == 0 || f.RecordedAt.Before(min) {
			min = f.RecordedAt
		}
		if nth == 0 || max.Before(f.RecordedAt) {
			max = f.RecordedAt
		}
	}
	return min, max
}

func (g SizeGroup) Ids() []string {
	ids := make([]string, len(g.Files))
	for nth, f := range g.Files {
		ids[nth] = f.Id
	}
	return ids
}
