package bagit

import "errors"

// relative path is absolute, or escapes from its root.
var ErrUnsafePath = errors.New("unsafe path")

// content of bag does not match with its manifests.
var ErrChecksumMismatch = errors.New("checksum mismatch")
