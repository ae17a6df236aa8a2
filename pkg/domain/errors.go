package domain

import "errors"

var (
	// requested entity is not found.
	ErrMissing = errors.New("missing")

	// the entity is changed or locked by other process.
	ErrConflict = errors.New("conflict")

	// deletion is refused. the caller should surface this to operators.
	ErrDeletionRefused = errors.New("deletion refused")

	// remote session cannot be established (or is lost).
	ErrConnection = errors.New("connection failure")

	// transfer to remote is failed on an established session.
	ErrUpload = errors.New("upload failure")

	// manifests of a bag cannot be built.
	ErrManifestBuild = errors.New("manifest build failure")

	// archive file cannot be created.
	ErrPackaging = errors.New("packaging failure")
)

// DeletionRefused describes why deletion of an artifact is refused.
type DeletionRefused struct {
	Artifact string
	Reason   string

	// ids of member files holding the artifact, if any.
	HeldBy []string

	Cause error
}

func (d *DeletionRefused) Error() string {
	msg := "deletion of " + d.Artifact + " is refused: " + d.Reason
	if d.Cause != nil {
		msg += ": " + d.Cause.Error()
	}
	return msg
}

func (d *DeletionRefused) Is(err error) bool {
	return err == ErrDeletionRefused
}

func (d *DeletionRefused) Unwrap() error {
	return d.Cause
}
