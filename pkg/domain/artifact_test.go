package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/opst/fieldarchive/pkg/domain"
)

func TestArtifact_State(t *testing.T) {
	for name, testcase := range map[string]struct {
		when domain.Artifact
		then domain.ArtifactState
	}{
		"fresh artifact is pending": {
			when: domain.Artifact{LocalStorage: true},
			then: domain.Pending,
		},
		"locked artifact is uploading": {
			when: domain.Artifact{Uploading: true, LocalStorage: true},
			then: domain.Uploading,
		},
		"archived artifact": {
			when: domain.Artifact{Archived: true, LocalStorage: true},
			then: domain.Archived,
		},
		"archived artifact demoted into metadata": {
			when: domain.Artifact{Archived: true, Placeholder: true},
			then: domain.Placeholder,
		},
	} {
		t.Run(name, func(t *testing.T) {
			if got := testcase.when.State(); got != testcase.then {
				t.Errorf("got %s, want %s", got, testcase.then)
			}
		})
	}
}

func TestAsArtifactState(t *testing.T) {
	for _, s := range []string{"pending", "uploading", "archived", "placeholder"} {
		t.Run("it accepts "+s, func(t *testing.T) {
			got, err := domain.AsArtifactState(s)
			if err != nil {
				t.Fatal(err)
			}
			if got.String() != s {
				t.Errorf("got %s", got)
			}
		})
	}

	t.Run("it rejects unknown state", func(t *testing.T) {
		_, err := domain.AsArtifactState("Archived")
		if !errors.Is(err, domain.ErrUnknownArtifactState) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestArtifact_Holds(t *testing.T) {
	member := func(id string, hold bool) domain.FileStatus {
		return domain.FileStatus{
			FileDescriptor: domain.FileDescriptor{Id: id},
			DoNotRemove:    hold,
		}
	}
	a := domain.Artifact{
		Members: []domain.FileStatus{
			member("f1", false), member("f2", true), member("f3", false), member("f4", true),
		},
	}

	got := a.Holds()
	if len(got) != 2 || got[0].Id != "f2" || got[1].Id != "f4" {
		t.Errorf("unexpected holds: %+v", got)
	}

	if h := (domain.Artifact{Members: []domain.FileStatus{member("f1", false)}}).Holds(); len(h) != 0 {
		t.Errorf("unexpected holds: %+v", h)
	}
}

func TestArtifact_Consistent(t *testing.T) {
	archivedMember := domain.FileStatus{Archived: true}
	pendingMember := domain.FileStatus{}

	for name, testcase := range map[string]struct {
		when domain.Artifact
		then bool
	}{
		"pending artifact with pending members": {
			when: domain.Artifact{Members: []domain.FileStatus{pendingMember, pendingMember}},
			then: true,
		},
		"archived artifact with archived members": {
			when: domain.Artifact{Archived: true, Members: []domain.FileStatus{archivedMember, archivedMember}},
			then: true,
		},
		"archived artifact with a member not archived": {
			when: domain.Artifact{Archived: true, Members: []domain.FileStatus{archivedMember, pendingMember}},
			then: false,
		},
		"archived artifact under uploading": {
			when: domain.Artifact{Archived: true, Uploading: true},
			then: false,
		},
	} {
		t.Run(name, func(t *testing.T) {
			if got := testcase.when.Consistent(); got != testcase.then {
				t.Errorf("got %v, want %v", got, testcase.then)
			}
		})
	}
}

func TestSizeGroup(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC)
	}
	file := func(id string, size int64, recordedAt time.Time) domain.FileDescriptor {
		return domain.FileDescriptor{
			Id: id, Project: "p", DeviceType: "cam", Size: size, RecordedAt: recordedAt,
		}
	}

	g := domain.SizeGroup{
		Files: []domain.FileDescriptor{
			file("a", 10, day(5)), file("b", 20, day(2)), file("c", 30, day(9)),
		},
		TotalSize: 60,
	}

	t.Run("RecordingRange spans the earliest and the latest", func(t *testing.T) {
		min, max := g.RecordingRange()
		if !min.Equal(day(2)) || !max.Equal(day(9)) {
			t.Errorf("got (%s, %s)", min, max)
		}
	})

	t.Run("Key is the key of its files", func(t *testing.T) {
		if got := g.Key(); got != (domain.GroupKey{Project: "p", DeviceType: "cam"}) {
			t.Errorf("got %s", got)
		}
		if got := (domain.SizeGroup{}).Key(); got != (domain.GroupKey{}) {
			t.Errorf("empty group has key %s", got)
		}
	})

	t.Run("Ids keeps the order", func(t *testing.T) {
		got := g.Ids()
		if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
			t.Errorf("got %v", got)
		}
	})

	t.Run("Qualifies compares total size", func(t *testing.T) {
		if !g.Qualifies(60) {
			t.Error("60 bytes group does not qualify for 60 bytes")
		}
		if g.Qualifies(61) {
			t.Error("60 bytes group qualifies for 61 bytes")
		}
	})
}

func TestAsLoopType(t *testing.T) {
	for _, lt := range []domain.LoopType{domain.Packaging, domain.Upload, domain.Reconcile} {
		t.Run("it accepts "+lt.String(), func(t *testing.T) {
			got, err := domain.AsLoopType(lt.String())
			if err != nil || got != lt {
				t.Errorf("got (%s, %v)", got, err)
			}
		})
	}

	t.Run("it rejects unknown loop type", func(t *testing.T) {
		_, err := domain.AsLoopType("gc")
		if !errors.Is(err, domain.ErrUnknownLoopType) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestDeletionRefused(t *testing.T) {
	cause := errors.New("held")
	var err error = &domain.DeletionRefused{Artifact: "a", Reason: "hold", HeldBy: []string{"f1"}, Cause: cause}

	if !errors.Is(err, domain.ErrDeletionRefused) {
		t.Error("it is not ErrDeletionRefused")
	}
	if !errors.Is(err, cause) {
		t.Error("it does not unwrap into its cause")
	}
	if got := err.Error(); got != "deletion of a is refused: hold: held" {
		t.Errorf("got %s", got)
	}
}
