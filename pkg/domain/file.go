package domain

import "time"

// FileDescriptor identifies one source file to be archived.
//
// Descriptors are values. Once a grouping decision is made for them,
// they are passed down as a snapshot and never re-read implicitly.
type FileDescriptor struct {
	// stable identifier given by the surrounding application.
	Id string

	// grouping key: files in an artifact share Project and DeviceType.
	Project    string
	DeviceType string

	// full path of the file on local storage.
	Path string

	// path of the file inside the archive payload (under "data/").
	RelativePath string

	// size in bytes.
	Size int64

	// when the device recorded the file.
	RecordedAt time.Time

	// when the file is registered.
	CreatedAt time.Time
}

// GroupKey is the key files are grouped by.
type GroupKey struct {
	Project    string
	DeviceType string
}

func (k GroupKey) String() string {
	return k.Project + "/" + k.DeviceType
}

func (f FileDescriptor) Key() GroupKey {
	return GroupKey{Project: f.Project, DeviceType: f.DeviceType}
}

// FileStatus is the persisted state of a file, beside its descriptor.
type FileStatus struct {
	FileDescriptor

	// the file is stored in an archived artifact.
	Archived bool

	// the file content still exists on local storage.
	LocalStorage bool

	// "do not remove" hold.
	//
	// It is set by unrelated logic (favorites, thumbnails, ...) and only respected here.
	DoNotRemove bool

	// name of the artifact containing this file. empty when it is not packaged yet.
	Artifact string
}
