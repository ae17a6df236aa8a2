package bagit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/opst/fieldarchive/pkg/domain"
)

// Metadata is the content of metadata.json sidecar.
type Metadata struct {
	Name        string           `json:"name"`
	Project     string           `json:"project"`
	DeviceType  string           `json:"device_type"`
	RecordedMin time.Time        `json:"recorded_min"`
	RecordedMax time.Time        `json:"recorded_max"`
	CreatedAt   time.Time        `json:"created_at"`
	FileCount   int              `json:"file_count"`
	TotalSize   int64            `json:"total_size"`
	Files       []MetadataMember `json:"files"`
}

type MetadataMember struct {
	Id         string    `json:"id"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewMetadata describes the group packaged as an artifact named name.
//
// createdAt is the only time-derived field.
func NewMetadata(name string, group domain.SizeGroup, createdAt time.Time) (Metadata, error) {
	min, max := group.RecordingRange()
	key := group.Key()
	meta := Metadata{
		Name:        name,
		Project:     key.Project,
		DeviceType:  key.DeviceType,
		RecordedMin: min.UTC(),
		RecordedMax: max.UTC(),
		CreatedAt:   createdAt.UTC(),
		FileCount:   len(group.Files),
		TotalSize:   group.TotalSize,
		Files:       make([]MetadataMember, 0, len(group.Files)),
	}
	for _, f := range group.Files {
		p, err := PayloadPath(f.RelativePath)
		if err != nil {
			return Metadata{}, err
		}
		meta.Files = append(meta.Files, MetadataMember{
			Id:         f.Id,
			Path:       p,
			Size:       f.Size,
			RecordedAt: f.RecordedAt.UTC(),
		})
	}
	return meta, nil
}

// WriteMetadata writes metadata.json into outputDir.
//
// # Returns
//
// - string: path to the written file.
//
// - error: *ManifestBuildError.
func WriteMetadata(meta Metadata, outputDir string) (string, error) {
	dest := filepath.Join(outputDir, MetadataFile)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", &ManifestBuildError{Path: outputDir, Err: err}
	}
	content, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", &ManifestBuildError{Path: dest, Err: err}
	}
	if err := os.WriteFile(dest, append(content, '\n'), 0644); err != nil {
		return "", &ManifestBuildError{Path: dest, Err: err}
	}
	return dest, nil
}
