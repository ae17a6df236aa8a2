package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	kdb "github.com/opst/fieldarchive/pkg/db"
	"github.com/opst/fieldarchive/pkg/domain"
)

type FileInterface struct {
	Impl struct {
		Register     func(ctx context.Context, files []domain.FileDescriptor) (int, error)
		Keys         func(ctx context.Context) ([]domain.GroupKey, error)
		Claim        func(ctx context.Context, key domain.GroupKey) (kdb.Claim, error)
		Release      func(ctx context.Context, token string, ids []string) error
		ReleaseStale func(ctx context.Context, olderThan time.Duration) (int, error)
		Get          func(ctx context.Context, ids []string) ([]domain.FileStatus, error)
	}
	Calls struct {
		Register CallLog[[]domain.FileDescriptor]
		Keys     int
		Claim    CallLog[domain.GroupKey]
		Release  CallLog[struct {
			Token string
			Ids   []string
		}]
		ReleaseStale CallLog[time.Duration]
		Get          CallLog[[]string]
	}

	mu sync.Mutex
}

var _ kdb.FileInterface = &FileInterface{}

func NewFileInterface() *FileInterface {
	return &FileInterface{}
}

func (m *FileInterface) Register(ctx context.Context, files []domain.FileDescriptor) (int, error) {
	m.mu.Lock()
	m.Calls.Register = append(m.Calls.Register, files)
	m.mu.Unlock()
	if m.Impl.Register != nil {
		return m.Impl.Register(ctx, files)
	}
	panic(errors.New("it should not be called"))
}

func (m *FileInterface) Keys(ctx context.Context) ([]domain.GroupKey, error) {
	m.mu.Lock()
	m.Calls.Keys += 1
	m.mu.Unlock()
	if m.Impl.Keys != nil {
		return m.Impl.Keys(ctx)
	}
	panic(errors.New("it should not be called"))
}

func (m *FileInterface) Claim(ctx context.Context, key domain.GroupKey) (kdb.Claim, error) {
	m.mu.Lock()
	m.Calls.Claim = append(m.Calls.Claim, key)
	m.mu.Unlock()
	if m.Impl.Claim != nil {
		return m.Impl.Claim(ctx, key)
	}
	panic(errors.New("it should not be called"))
}

func (m *FileInterface) Release(ctx context.Context, token string, ids []string) error {
	m.mu.Lock()
	m.Calls.Release = append(m.Calls.Release, struct {
		Token string
		Ids   []string
	}{Token: token, Ids: ids})
	m.mu.Unlock()
	if m.Impl.Release != nil {
		return m.Impl.Release(ctx, token, ids)
	}
	panic(errors.New("it should not be called"))
}

func (m *FileInterface) ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	m.Calls.ReleaseStale = append(m.Calls.ReleaseStale, olderThan)
	m.mu.Unlock()
	if m.Impl.ReleaseStale != nil {
		return m.Impl.ReleaseStale(ctx, olderThan)
	}
	panic(errors.New("it should not be called"))
}

func (m *FileInterface) Get(ctx context.Context, ids []string) ([]domain.FileStatus, error) {
	m.mu.Lock()
	m.Calls.Get = append(m.Calls.Get, ids)
	m.mu.Unlock()
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, ids)
	}
	panic(errors.New("it should not be called"))
}
