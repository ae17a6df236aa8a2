// Package remote transfers artifacts to archival endpoints.
//
// An endpoint is either an SFTP server or an S3-compatible object store.
// Remote paths passed to Session are slash-separated and relative to the root of the endpoint.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/opst/fieldarchive/pkg/domain"
)

type Kind string

const (
	SFTP Kind = "sftp"
	S3   Kind = "s3"
)

func AsKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case SFTP, S3:
		return k, nil
	}
	return "", fmt.Errorf(`%w: "%s"`, ErrUnknownKind, s)
}

var ErrUnknownKind = errors.New("unknown endpoint kind")

// Endpoint is a remote archival location.
type Endpoint struct {
	Name string
	Kind Kind

	// host[:port]
	Host string

	User     string
	Password string

	// path to private key file for SFTP.
	PrivateKey string

	// path to known_hosts file for SFTP. If empty, host key is not verified.
	KnownHosts string

	// root directory for SFTP, or "bucket[/prefix]" for S3.
	Root string

	// use TLS. S3 only.
	Secure bool
}

// Session is a connection to an endpoint.
type Session interface {
	// Upload transfers localPath to remoteDir/remoteFilename.
	//
	// The file is written under a temporary name and renamed into place,
	// so remoteFilename never refers to a partial file.
	//
	// # Returns
	//
	// - error: *UploadError, or *ConnectionError when the session is lost.
	Upload(ctx context.Context, localPath string, remoteDir string, remoteFilename string) error

	// RemoveRemote removes remotePath.
	//
	// When remotePath cannot be removed, alternative names given by NamingPolicy are tried.
	//
	// # Returns
	//
	// - error: *RemoveError when no candidates are removed.
	// It is never treated as success even if no candidates exist.
	RemoveRemote(ctx context.Context, remotePath string) error

	// EnsureDir creates remoteDir and its ancestors which do not exist.
	EnsureDir(ctx context.Context, remoteDir string) error

	// Exists reports that remotePath exists.
	Exists(ctx context.Context, remotePath string) (bool, error)

	Close() error
}

type Dialer interface {
	// Dial connects to the endpoint.
	//
	// # Returns
	//
	// - error: *ConnectionError
	Dial(ctx context.Context, endpoint Endpoint) (Session, error)
}

// DialerFunc is a Dialer of a function.
type DialerFunc func(ctx context.Context, endpoint Endpoint) (Session, error)

func (f DialerFunc) Dial(ctx context.Context, endpoint Endpoint) (Session, error) {
	return f(ctx, endpoint)
}

// ConnectionError is caused when a session cannot be established, or is lost.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Is(err error) bool {
	return err == domain.ErrConnection
}

// UploadError is caused when a file cannot be transferred on an established session.
type UploadError struct {
	LocalPath  string
	RemotePath string

	// true when the local file cannot be read. Retrying does not help.
	Local bool

	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s -> %s: %v", e.LocalPath, e.RemotePath, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func (e *UploadError) Is(err error) bool {
	return err == domain.ErrUpload
}

// RemoveError is caused when no candidates of a remote file are removed.
type RemoveError struct {
	RemotePath string

	// names tried, and errors caused for them. They have same length.
	Tried  []string
	Errors []error
}

func (e *RemoveError) Error() string {
	msgs := make([]string, len(e.Tried))
	for n := range e.Tried {
		msgs[n] = fmt.Sprintf("%s (%v)", e.Tried[n], e.Errors[n])
	}
	return fmt.Sprintf("cannot remove %s: tried %s", e.RemotePath, strings.Join(msgs, ", "))
}

func (e *RemoveError) Unwrap() []error {
	return e.Errors
}

// Is reports ErrMissing when all candidates do not exist.
func (e *RemoveError) Is(err error) bool {
	if err != domain.ErrMissing || len(e.Errors) == 0 {
		return false
	}
	for _, cause := range e.Errors {
		if !errors.Is(cause, fs.ErrNotExist) {
			return false
		}
	}
	return true
}
