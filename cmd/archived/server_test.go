package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opst/fieldarchive/pkg/api/auth"
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

func TestBuildServer(t *testing.T) {
	db := mocks.NewDatabase()
	db.MockArtifacts().Impl.Find = func(ctx context.Context, query kdb.ArtifactQuery) ([]domain.Artifact, error) {
		return []domain.Artifact{{Name: "art-1", CreatedAt: time.Now()}}, nil
	}
	db.MockArtifacts().Impl.Get = func(ctx context.Context, name string) (domain.Artifact, error) {
		if name != "art-1" {
			return domain.Artifact{}, kdb.ErrMissing
		}
		return domain.Artifact{Name: name, CreatedAt: time.Now()}, nil
	}
	deleted := []string{}
	deleter := deleterFunc(func(ctx context.Context, name string, force bool) error {
		deleted = append(deleted, name)
		return nil
	})

	server := BuildServer(db, deleter, secret, "off")
	token := try.To(auth.Sign(secret, "operator-1", time.Hour, time.Now())).OrFatal(t)

	for name, testcase := range map[string]struct {
		method string
		target string
		token  string
		code   int
	}{
		"list":                   {method: http.MethodGet, target: "/api/artifacts", token: token, code: http.StatusOK},
		"list with slash":        {method: http.MethodGet, target: "/api/artifacts/?state=pending", token: token, code: http.StatusOK},
		"get":                    {method: http.MethodGet, target: "/api/artifacts/art-1", token: token, code: http.StatusOK},
		"get missing":            {method: http.MethodGet, target: "/api/artifacts/art-9", token: token, code: http.StatusNotFound},
		"list without token":     {method: http.MethodGet, target: "/api/artifacts/", code: http.StatusUnauthorized},
		"delete without token":   {method: http.MethodDelete, target: "/api/artifacts/art-1", code: http.StatusUnauthorized},
		"metrics without token":  {method: http.MethodGet, target: "/metrics", code: http.StatusOK},
		"unknown path":           {method: http.MethodGet, target: "/api/files/", token: token, code: http.StatusNotFound},
		"list with broken token": {method: http.MethodGet, target: "/api/artifacts/", token: "broken", code: http.StatusUnauthorized},
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(testcase.method, testcase.target, nil)
			if testcase.token != "" {
				req.Header.Set("Authorization", "Bearer "+testcase.token)
			}
			resp := httptest.NewRecorder()
			server.ServeHTTP(resp, req)

			if resp.Code != testcase.code {
				t.Errorf("status: got %d, want %d (body: %s)", resp.Code, testcase.code, resp.Body.String())
			}
		})
	}

	if 0 < len(deleted) {
		t.Errorf("deleted without token: %v", deleted)
	}

	t.Run("delete with token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/artifacts/art-1?force=true", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		server.ServeHTTP(resp, req)

		if resp.Code != http.StatusNoContent {
			t.Errorf("status: got %d", resp.Code)
		}
		if strings.Join(deleted, ",") != "art-1" {
			t.Errorf("deleted: %v", deleted)
		}
	})
}
