// Package grouping partitions files into size-bounded groups to be archived together.
package grouping

import (
	"cmp"
	"slices"

	"github.com/opst/fieldarchive/pkg/domain"
)

// SortForGrouping sorts files in the order they are grouped:
// by recording time, then by registration time, then by id.
//
// The input is not modified.
func SortForGrouping(files []domain.FileDescriptor) []domain.FileDescriptor {
	sorted := slices.Clone(files)
	slices.SortStableFunc(sorted, func(a, b domain.FileDescriptor) int {
		if c := a.RecordedAt.Compare(b.RecordedAt); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Id, b.Id)
	})
	return sorted
}

// Group walks files in the given order and accumulates them into groups.
//
// A group is closed when adding the next file would let its total exceed maxGroupBytes.
// A file larger than maxGroupBytes by itself makes an oversized group with just the file.
//
// # Args
//
// - files: files to be grouped. The order is kept in and across groups.
//
// - maxGroupBytes: upper bound of group size. If it is not positive, all files go into one group.
//
// # Returns
//
// Groups covering all files exactly once. Empty input yields no groups.
func Group(files []domain.FileDescriptor, maxGroupBytes int64) []domain.SizeGroup {
	groups := []domain.SizeGroup{}
	current := domain.SizeGroup{}

	flush := func() {
		if len(current.Files) == 0 {
			return
		}
		groups = append(groups, current)
		current = domain.SizeGroup{}
	}

	for _, f := range files {
		if 0 < maxGroupBytes && maxGroupBytes < f.Size {
			flush()
			groups = append(groups, domain.SizeGroup{
				Files:     []domain.FileDescriptor{f},
				TotalSize: f.Size,
				Oversized: true,
			})
			continue
		}
		if 0 < maxGroupBytes && maxGroupBytes < current.TotalSize+f.Size {
			flush()
		}
		current.Files = append(current.Files, f)
		current.TotalSize += f.Size
	}
	flush()

	return groups
}

// Partition splits groups into qualifying ones and too-small ones.
//
// Order of groups is kept in each result.
func Partition(groups []domain.SizeGroup, minArchiveBytes int64) (qualifying []domain.SizeGroup, tooSmall []domain.SizeGroup) {
	qualifying = []domain.SizeGroup{}
	tooSmall = []domain.SizeGroup{}
	for _, g := range groups {
		if g.Qualifies(minArchiveBytes) {
			qualifying = append(qualifying, g)
		} else {
			tooSmall = append(tooSmall, g)
		}
	}
	return qualifying, tooSmall
}

// ByKey splits files by their grouping key, keeping order in each key.
func ByKey(files []domain.FileDescriptor) map[domain.GroupKey][]domain.FileDescriptor {
	ret := map[domain.GroupKey][]domain.FileDescriptor{}
	for _, f := range files {
		k := f.Key()
		ret[k] = append(ret[k], f)
	}
	return ret
}

// Files returns all files in groups, in order.
func Files(groups []domain.SizeGroup) []domain.FileDescriptor {
	ret := []domain.FileDescriptor{}
	for _, g := range groups {
		ret = append(ret, g.Files...)
	}
	return ret
}
