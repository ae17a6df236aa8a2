// Package artifacts is the JSON representation of artifacts in the operator API.
package artifacts

import (
	"time"

	"github.com/opst/fieldarchive/pkg/domain"
	"github.com/opst/fieldarchive/pkg/utils/rfctime"
)

type Summary struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	Endpoint   string `json:"endpoint"`
	Project    string `json:"project"`
	DeviceType string `json:"deviceType"`

	Size         int64  `json:"size"`
	FileCount    int    `json:"fileCount"`
	LocalStorage bool   `json:"localStorage"`
	RemotePath   string `json:"remotePath,omitempty"`

	CreatedAt rfctime.RFC3339 `json:"createdAt"`

	// since when the artifact is being uploaded. nil unless uploading.
	UploadingSince *rfctime.RFC3339 `json:"uploadingSince,omitempty"`
}

type Member struct {
	Id           string          `json:"id"`
	RelativePath string          `json:"relativePath"`
	Size         int64           `json:"size"`
	RecordedAt   rfctime.RFC3339 `json:"recordedAt"`
	Archived     bool            `json:"archived"`
	LocalStorage bool            `json:"localStorage"`
	DoNotRemove  bool            `json:"doNotRemove"`
}

type Detail struct {
	Summary
	Members []Member `json:"members"`
}

func ComposeSummary(a domain.Artifact) Summary {
	s := Summary{
		Name:         a.Name,
		State:        a.State().String(),
		Endpoint:     a.Endpoint,
		Project:      a.Project,
		DeviceType:   a.DeviceType,
		Size:         a.Size,
		FileCount:    a.FileCount,
		LocalStorage: a.LocalStorage,
		RemotePath:   a.RemotePath,
		CreatedAt:    rfctime.RFC3339(a.CreatedAt.UTC().Truncate(time.Millisecond)),
	}
	if a.Uploading && a.UploadingSince != nil {
		since := rfctime.RFC3339(a.UploadingSince.UTC().Truncate(time.Millisecond))
		s.UploadingSince = &since
	}
	return s
}

func ComposeDetail(a domain.Artifact) Detail {
	members := make([]Member, len(a.Members))
	for nth, m := range a.Members {
		members[nth] = Member{
			Id:           m.Id,
			RelativePath: m.RelativePath,
			Size:         m.Size,
			RecordedAt:   rfctime.RFC3339(m.RecordedAt.UTC()),
			Archived:     m.Archived,
			LocalStorage: m.LocalStorage,
			DoNotRemove:  m.DoNotRemove,
		}
	}
	return Detail{Summary: ComposeSummary(a), Members: members}
}
