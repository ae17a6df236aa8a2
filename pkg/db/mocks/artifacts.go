package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	kdb "github.com/opst/fieldarchive/pkg/db"
	"github.com/opst/fieldarchive/pkg/domain"
)

type ArtifactInterface struct {
	Impl struct {
		Register          func(ctx context.Context, artifact domain.Artifact, claimToken string) error
		Get               func(ctx context.Context, name string) (domain.Artifact, error)
		Find              func(ctx context.Context, query kdb.ArtifactQuery) ([]domain.Artifact, error)
		Lock              func(ctx context.Context, name string) error
		Unlock            func(ctx context.Context, name string) error
		Complete          func(ctx context.Context, name string, remotePath string) error
		ReleaseStaleLocks func(ctx context.Context, olderThan time.Duration) ([]string, error)
		RepairMembers     func(ctx context.Context) ([]string, error)
		Demote            func(ctx context.Context, name string) error
		SetLocalStorage   func(ctx context.Context, name string, local bool) error
		Remove            func(ctx context.Context, name string, withFiles bool, apply func() error) error
	}
	Calls struct {
		Register CallLog[struct {
			Artifact   domain.Artifact
			ClaimToken string
		}]
		Get      CallLog[string]
		Find     CallLog[kdb.ArtifactQuery]
		Lock     CallLog[string]
		Unlock   CallLog[string]
		Complete CallLog[struct {
			Name       string
			RemotePath string
		}]
		ReleaseStaleLocks CallLog[time.Duration]
		RepairMembers     int
		Demote            CallLog[string]
		SetLocalStorage   CallLog[struct {
			Name  string
			Local bool
		}]
		Remove CallLog[struct {
			Name      string
			WithFiles bool
		}]
	}

	mu sync.Mutex
}

var _ kdb.ArtifactInterface = &ArtifactInterface{}

func NewArtifactInterface() *ArtifactInterface {
	return &ArtifactInterface{}
}

func (m *ArtifactInterface) Register(ctx context.Context, artifact domain.Artifact, claimToken string) error {
	m.mu.Lock()
	m.Calls.Register = append(m.Calls.Register, struct {
		Artifact   domain.Artifact
		ClaimToken string
	}{Artifact: artifact, ClaimToken: claimToken})
	m.mu.Unlock()
	if m.Impl.Register != nil {
		return m.Impl.Register(ctx, artifact, claimToken)
	}
	panic(errors.New("it should not be called"))
}

func (m *ArtifactInterface) Get(ctx context.Context, name string) (domain.Artifact, error) {
	m.mu.Lock()
	m.Calls.Get = append(m.Calls.Get, name)
	m.mu.Unlock()
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, name)
	}
	panic(errors.New("it should not be called"))
}

func (m *ArtifactInterface) Find(ctx context.Context, query kdb.ArtifactQuery) ([]domain.Artifact, error) {
	m.mu.Lock()
	m.Calls.Find = append(m.Calls.Find, query)
	m.mu.Unlock()
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, query)
	}
	panic(errors.New("it should not be called"))
}

func (m *ArtifactInterface) Lock(ctx context.Context, name string) error {
	m.mu.Lock()
	m.Calls.Lock = append(m.Calls.Lock, name)
	m.mu.Unlock()
	if m.Impl.Lock != nil {
		return m.Impl.Lock(ctx, name)
	}
	panic(errors.New("it should not be called"))
}

func (m *ArtifactInterface) Unlock(ctx context.Context, name string) error {
	m.mu.Lock()
	m.Calls.Unlock = append(m.Calls.Unlock, name)
	m.mu.Unlock()
	if m.Impl.Unlock != nil {
		return m.Impl.Unlock(ctx, name)
	}
	panic(errors.New("it should not be called"))
}

func (m *ArtifactInterface) Complete(ctx context.Context, name string, remotePath string) error {
	m.mu.Lock()
	m.Calls.Complete = append(m.Calls.Complete, struct {
		Name       string
		RemotePath string
	}{Name: name, RemotePath: remotePath})
	m.mu.Unlock()
	if m.Impl.Complete != nil {
		return m.Impl.Complete(ctx, name, remotePath)
	}
	panic(errors.New("it should not be called"))
}

func (m *ArtifactInterface) ReleaseStaleLocks(ctx context.Context, olderThan time.Duration) ([]string, error) {
	m.mu.Lock()
	m.Calls.ReleaseStaleLocks = append(m.Calls.ReleaseStaleLocks, olderThan)
	m.mu.Unlock()
	if m.Impl.ReleaseStaleLocks != nil {
		return m.Impl.ReleaseStaleLocks(ctx, olderThan)
	}
	panic(errors.New("it should not be called"))
}

func (m *ArtifactInterface) RepairMembers(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	m.Calls.RepairMembers += 1
	m.mu.Unlock()
	if m.Impl.RepairMembers != nil {
		return m.Impl.RepairMembers(ctx)
	}
	panic(errors.New("it should not be called"))
}

func (m *ArtifactInterface) Demote(ctx context.Context, name string) error {
	m.mu.Lock()
	m.Calls.Demote = append(m.Calls.Demote, name)
	m.mu.Unlock()
	if m.Impl.Demote != nil {
		return m.Impl.Demote(ctx, name)
	}
	panic(errors.New("it should not be called"))
}

func (m *ArtifactInterface) SetLocalStorage(ctx context.Context, name string, local bool) error {
	m.mu.Lock()
	m.Calls.SetLocalStorage = append(m.Calls.SetLocalStorage, struct {
		Name  string
		Local bool
	}{Name: name, Local: local})
	m.mu.Unlock()
	if m.Impl.SetLocalStorage != nil {
		return m.Impl.SetLocalStorage(ctx, name, local)
	}
	panic(errors.New("it should not be called"))
}

func (m *ArtifactInterface) Remove(ctx context.Context, name string, withFiles bool, apply func() error) error {
	m.mu.Lock()
	m.Calls.Remove = append(m.Calls.Remove, struct {
		Name      string
		WithFiles bool
	}{Name: name, WithFiles: withFiles})
	m.mu.Unlock()
	if m.Impl.Remove != nil {
		return m.Impl.Remove(ctx, name, withFiles, apply)
	}
	panic(errors.New("it should not be called"))
}
