package mock

import (
	"context"
	"testing"

	"github.com/opst/fieldarchive/cmd/archivectl/rest"
	apiartifacts "github.com/opst/fieldarchive/pkg/api/types/artifacts"
	kdb "github.com/opst/fieldarchive/pkg/db"
)

type DeleteArtifactArgs struct {
	Name  string
	Force bool
}

type mockArchiveClient struct {
	t    *testing.T
	Impl struct {
		FindArtifacts  func(ctx context.Context, query kdb.ArtifactQuery) ([]apiartifacts.Summary, error)
		GetArtifact    func(ctx context.Context, name string) (apiartifacts.Detail, error)
		DeleteArtifact func(ctx context.Context, name string, force bool) error
	}
	Calls struct {
		FindArtifacts  []kdb.ArtifactQuery
		GetArtifact    []string
		DeleteArtifact []DeleteArtifactArgs
	}
}

var _ rest.ArchiveClient = &mockArchiveClient{}

func New(t *testing.T) *mockArchiveClient {
	return &mockArchiveClient{t: t}
}

func (m *mockArchiveClient) FindArtifacts(ctx context.Context, query kdb.ArtifactQuery) ([]apiartifacts.Summary, error) {
	m.t.Helper()
	m.Calls.FindArtifacts = append(m.Calls.FindArtifacts, query)
	if m.Impl.FindArtifacts == nil {
		m.t.Fatal("FindArtifacts is not ready to be called")
	}
	return m.Impl.FindArtifacts(ctx, query)
}

func (m *mockArchiveClient) GetArtifact(ctx context.Context, name string) (apiartifacts.Detail, error) {
	m.t.Helper()
	m.Calls.GetArtifact = append(m.Calls.GetArtifact, name)
	if m.Impl.GetArtifact == nil {
		m.t.Fatal("GetArtifact is not ready to be called")
	}
	return m.Impl.GetArtifact(ctx, name)
}

func (m *mockArchiveClient) DeleteArtifact(ctx context.Context, name string, force bool) error {
	m.t.Helper()
	m.Calls.DeleteArtifact = append(m.Calls.DeleteArtifact, DeleteArtifactArgs{Name: name, Force: force})
	if m.Impl.DeleteArtifact == nil {
		m.t.Fatal("DeleteArtifact is not ready to be called")
	}
	return m.Impl.DeleteArtifact(ctx, name, force)
}
