// this package provide "mock" implementation of remote sessions for testing.
package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/opst/fieldarchive/pkg/remote"
)

type CallLog[T any] []T

func (c CallLog[T]) Times() int {
	return len(c)
}

type Session struct {
	Impl struct {
		Upload       func(ctx context.Context, localPath, remoteDir, remoteFilename string) error
		RemoveRemote func(ctx context.Context, remotePath string) error
		EnsureDir    func(ctx context.Context, remoteDir string) error
		Exists       func(ctx context.Context, remotePath string) (bool, error)
		Close        func() error
	}
	Calls struct {
		Upload CallLog[struct {
			LocalPath      string
			RemoteDir      string
			RemoteFilename string
		}]
		RemoveRemote CallLog[string]
		EnsureDir    CallLog[string]
		Exists       CallLog[string]
		Close        int
	}

	mu sync.Mutex
}

var _ remote.Session = &Session{}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) Upload(ctx context.Context, localPath, remoteDir, remoteFilename string) error {
	s.mu.Lock()
	s.Calls.Upload = append(s.Calls.Upload, struct {
		LocalPath      string
		RemoteDir      string
		RemoteFilename string
	}{
		LocalPath: localPath, RemoteDir: remoteDir, RemoteFilename: remoteFilename,
	})
	s.mu.Unlock()
	if s.Impl.Upload != nil {
		return s.Impl.Upload(ctx, localPath, remoteDir, remoteFilename)
	}
	panic(errors.New("it should not be called"))
}

func (s *Session) RemoveRemote(ctx context.Context, remotePath string) error {
	s.mu.Lock()
	s.Calls.RemoveRemote = append(s.Calls.RemoveRemote, remotePath)
	s.mu.Unlock()
	if s.Impl.RemoveRemote != nil {
		return s.Impl.RemoveRemote(ctx, remotePath)
	}
	panic(errors.New("it should not be called"))
}

func (s *Session) EnsureDir(ctx context.Context, remoteDir string) error {
	s.mu.Lock()
	s.Calls.EnsureDir = append(s.Calls.EnsureDir, remoteDir)
	s.mu.Unlock()
	if s.Impl.EnsureDir != nil {
		return s.Impl.EnsureDir(ctx, remoteDir)
	}
	panic(errors.New("it should not be called"))
}

func (s *Session) Exists(ctx context.Context, remotePath string) (bool, error) {
	s.mu.Lock()
	s.Calls.Exists = append(s.Calls.Exists, remotePath)
	s.mu.Unlock()
	if s.Impl.Exists != nil {
		return s.Impl.Exists(ctx, remotePath)
	}
	panic(errors.New("it should not be called"))
}

// Close does nothing unless Impl.Close is given.
func (s *Session) Close() error {
	s.mu.Lock()
	s.Calls.Close += 1
	s.mu.Unlock()
	if s.Impl.Close != nil {
		return s.Impl.Close()
	}
	return nil
}

// Dialer returns sessions in order. When sessions run out, it returns the error.
type Dialer struct {
	Sessions []remote.Session
	Err      error

	Calls CallLog[remote.Endpoint]

	mu sync.Mutex
}

var _ remote.Dialer = &Dialer{}

func (d *Dialer) Dial(_ context.Context, endpoint remote.Endpoint) (remote.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, endpoint)
	if len(d.Sessions) == 0 {
		err := d.Err
		if err == nil {
			err = errors.New("[MOCK] no more sessions")
		}
		return nil, &remote.ConnectionError{Endpoint: endpoint.Name, Err: err}
	}
	s := d.Sessions[0]
	d.Sessions = d.Sessions[1:]
	return s, nil
}
