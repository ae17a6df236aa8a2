package domain

import (
	"errors"
	"fmt"
	"time"
)

type ArtifactState string

const (
	// created on local storage, waiting to be uploaded.
	Pending ArtifactState = "pending"

	// locked by an upload pass.
	Uploading ArtifactState = "uploading"

	// confirmed on remote.
	Archived ArtifactState = "archived"

	// archived, and the local record is kept only as metadata.
	Placeholder ArtifactState = "placeholder"
)

func (s ArtifactState) String() string {
	return string(s)
}

func AsArtifactState(s string) (ArtifactState, error) {
	switch st := ArtifactState(s); st {
	case Pending, Uploading, Archived, Placeholder:
		return st, nil
	}
	return "", fmt.Errorf(`%w: "%s"`, ErrUnknownArtifactState, s)
}

var ErrUnknownArtifactState = errors.New("unknown artifact state")

// Artifact is one archive created from a SizeGroup.
type Artifact struct {
	// deterministic name. see pkg/archive.Naming
	Name string

	// name of the remote endpoint this artifact goes to.
	Endpoint string

	Project    string
	DeviceType string

	// path to the archive file on local storage.
	LocalPath string

	// path to the archive on the remote endpoint. empty until uploaded.
	RemotePath string

	// size of the archive file in bytes.
	Size      int64
	FileCount int

	Uploading      bool
	UploadingSince *time.Time
	Archived       bool
	LocalStorage   bool
	Placeholder    bool

	CreatedAt time.Time

	// member files, in archive order.
	Members []FileStatus
}

func (a Artifact) State() ArtifactState {
	switch {
	case a.Uploading:
		return Uploading
	case a.Archived && a.Placeholder:
		return Placeholder
	case a.Archived:
		return Archived
	default:
		return Pending
	}
}

// Key returns grouping key of the artifact.
func (a Artifact) Key() GroupKey {
	return GroupKey{Project: a.Project, DeviceType: a.DeviceType}
}

// Holds returns member files which have "do not remove" hold.
func (a Artifact) Holds() []FileStatus {
	held := []FileStatus{}
	for _, m := range a.Members {
		if m.DoNotRemove {
			held = append(held, m)
		}
	}
	return held
}

// Consistent reports that persisted flags of the artifact and its members agree.
//
// An archived artifact should have all members archived.
func (a Artifact) Consistent() bool {
	if a.Uploading && a.Archived {
		return false
	}
	if !a.Archived {
		return true
	}
	for _, m := range a.Members {
		if !m.Archived {
			return false
		}
	}
	return true
}
