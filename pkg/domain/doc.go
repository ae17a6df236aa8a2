package domain

// domain package contains the domain models of fieldarchive.
//
// `domain/ENTITY.go` has high-level entities and functions.
// For example, `domain/artifact.go` contains the `Artifact` entity.
//
// Persistence of the entities lives in `pkg/db` (interfaces) and `pkg/db/postgres` (RDB),
// and transfer to archival destinations lives in `pkg/remote`.
//
// # Entities
//
// - `file`: a file recorded by a field device (camera trap, audio recorder, ...)
// and registered by the surrounding application.
// Files are identified by Id and grouped by (Project, DeviceType).
//
// - `group`: a size-bounded run of files which are to be archived together.
// Groups are transient. They are computed on each packaging pass from a snapshot of files.
//
// - `artifact`: a packaged, compressed archive (BagIt layout in a tar.gz) made from one group.
// An artifact is created on local storage, then uploaded to a remote endpoint.
//
// # Artifact lifecycle
//
//	pending --(lock)--> uploading --(upload ok)--> archived --(soft delete)--> placeholder
//	                        |
//	                        +--(upload failed)--> pending
//
// Deletion of any artifact is refused while one of its member files has a "do not remove" hold.
