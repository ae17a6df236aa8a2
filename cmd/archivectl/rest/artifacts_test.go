package rest_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/opst/fieldarchive/cmd/archivectl/rest"
	"github.com/opst/fieldarchive/cmd/archived/handlers"
	"github.com/opst/fieldarchive/pkg/api/auth"
	apierr "github.com/opst/fieldarchive/pkg/api/types/errors"
	kdb "github.com/opst/fieldarchive/pkg/db"
	"github.com/opst/fieldarchive/pkg/db/mocks"
	"github.com/opst/fieldarchive/pkg/domain"
	"github.com/opst/fieldarchive/pkg/utils/try"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

type deleterFunc func(ctx context.Context, name string, force bool) error

func (f deleterFunc) Delete(ctx context.Context, name string, force bool) error {
	return f(ctx, name, force)
}

// serve starts the archive API on db and deleter.
func serve(t *testing.T, db *mocks.Database, deleter deleterFunc) string {
	t.Helper()
	e := echo.New()
	e.Pre(middleware.AddTrailingSlash())
	authn := auth.Middleware(secret)
	e.GET("/api/artifacts/", handlers.ListArtifactsHandler(db.Artifacts()), authn)
	e.GET("/api/artifacts/:name/", handlers.GetArtifactHandler(db.Artifacts(), "name"), authn)
	e.DELETE("/api/artifacts/:name/", handlers.DeleteArtifactHandler(deleter, "name"), authn)

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return server.URL + "/api"
}

func token(t *testing.T) string {
	return try.To(auth.Sign(secret, "operator-1", time.Hour, time.Now())).OrFatal(t)
}

func TestNewClient(t *testing.T) {
	for name, testcase := range map[string]struct{ api, token string }{
		"empty api":   {api: "", token: "token"},
		"empty token": {api: "http://archive.invalid/api", token: ""},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := rest.NewClient(testcase.api, testcase.token)
			if !errors.Is(err, rest.ErrClientInvalid) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestFindArtifacts(t *testing.T) {
	t.Run("it sends the query and returns found artifacts", func(t *testing.T) {
		db := mocks.NewDatabase()
		db.MockArtifacts().Impl.Find = func(ctx context.Context, query kdb.ArtifactQuery) ([]domain.Artifact, error) {
			return []domain.Artifact{
				{Name: "art-1", Archived: true, CreatedAt: time.Now()},
				{Name: "art-2", Archived: true, CreatedAt: time.Now()},
			}, nil
		}
		testee := try.To(rest.NewClient(serve(t, db, nil), token(t))).OrFatal(t)

		query := kdb.ArtifactQuery{State: domain.Archived, Project: "forest survey", Endpoint: "primary"}
		found := try.To(testee.FindArtifacts(context.Background(), query)).OrFatal(t)

		names := []string{}
		for _, a := range found {
			names = append(names, a.Name)
		}
		if !slices.Equal(names, []string{"art-1", "art-2"}) {
			t.Errorf("names: %v", names)
		}
		if got := db.MockArtifacts().Calls.Find; len(got) != 1 || got[0] != query {
			t.Errorf("query: %+v", got)
		}
	})

	t.Run("it returns error when the token is rejected", func(t *testing.T) {
		db := mocks.NewDatabase()
		testee := try.To(rest.NewClient(serve(t, db, nil), "broken")).OrFatal(t)

		_, err := testee.FindArtifacts(context.Background(), kdb.ArtifactQuery{})
		if err == nil {
			t.Fatal("error is not returned")
		}
		em := apierr.ErrorMessage{}
		if !errors.As(err, &em) || em.Reason != "unauthorized" {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestGetArtifact(t *testing.T) {
	db := mocks.NewDatabase()
	db.MockArtifacts().Impl.Get = func(ctx context.Context, name string) (domain.Artifact, error) {
		if name != "art-1" {
			return domain.Artifact{}, kdb.ErrMissing
		}
		return domain.Artifact{
			Name: name, CreatedAt: time.Now(),
			Members: []domain.FileStatus{
				{FileDescriptor: domain.FileDescriptor{Id: "a", RecordedAt: time.Now()}},
			},
		}, nil
	}
	testee := try.To(rest.NewClient(serve(t, db, nil), token(t))).OrFatal(t)

	t.Run("it returns the artifact", func(t *testing.T) {
		got := try.To(testee.GetArtifact(context.Background(), "art-1")).OrFatal(t)
		if got.Name != "art-1" || len(got.Members) != 1 || got.Members[0].Id != "a" {
			t.Errorf("unexpected: %+v", got)
		}
	})

	t.Run("it returns error for missing artifact", func(t *testing.T) {
		_, err := testee.GetArtifact(context.Background(), "art-9")
		if err == nil || !strings.Contains(err.Error(), "art-9 is not found") {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestDeleteArtifact(t *testing.T) {
	for name, force := range map[string]bool{"not forced": false, "forced": true} {
		t.Run("it requests deletion: "+name, func(t *testing.T) {
			called := 0
			deleter := deleterFunc(func(ctx context.Context, name string, f bool) error {
				called += 1
				if name != "art-1" || f != force {
					t.Errorf("args: %s, %v", name, f)
				}
				return nil
			})
			testee := try.To(rest.NewClient(serve(t, mocks.NewDatabase(), deleter), token(t))).OrFatal(t)

			if err := testee.DeleteArtifact(context.Background(), "art-1", force); err != nil {
				t.Fatal(err)
			}
			if called != 1 {
				t.Errorf("called %d times", called)
			}
		})
	}

	t.Run("it returns files holding the artifact when refused", func(t *testing.T) {
		deleter := deleterFunc(func(ctx context.Context, name string, f bool) error {
			return &domain.DeletionRefused{Artifact: name, Reason: "member files are held", HeldBy: []string{"b"}}
		})
		testee := try.To(rest.NewClient(serve(t, mocks.NewDatabase(), deleter), token(t))).OrFatal(t)

		err := testee.DeleteArtifact(context.Background(), "art-1", true)
		em := apierr.ErrorMessage{}
		if !errors.As(err, &em) {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(em.HeldBy, []string{"b"}) {
			t.Errorf("held by: %v", em.HeldBy)
		}
	})
}
