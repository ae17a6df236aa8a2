package rest

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	apiartifacts "github.com/opst/fieldarchive/pkg/api/types/artifacts"
	kdb "github.com/opst/fieldarchive/pkg/db"
)

var ErrClientInvalid = errors.New("client setting is invalid")

type ArchiveClient interface {
	// FindArtifacts lists artifacts matching the query. Zero values in query mean "any".
	FindArtifacts(ctx context.Context, query kdb.ArtifactQuery) ([]apiartifacts.Summary, error)

	// GetArtifact returns an artifact with its members.
	GetArtifact(ctx context.Context, name string) (apiartifacts.Detail, error)

	// DeleteArtifact deletes an artifact.
	//
	// With force, the remote copy and member files are deleted too.
	DeleteArtifact(ctx context.Context, name string, force bool) error
}

type client struct {
	httpclient *http.Client
	api        string
	token      string
}

type Option func(*http.Client) (*http.Client, error)

// WithCACert trusts certificates in the PEM file, beside system ones.
func WithCACert(pemfile string) Option {
	return func(hc *http.Client) (*http.Client, error) {
		pem, err := os.ReadFile(pemfile)
		if err != nil {
			return nil, err
		}
		return trustCa(hc, pem)
	}
}

// NewClient creates a client of the archive API at apiRoot (for example, "https://archive.example.com/api").
//
// # Returns
//
// - ArchiveClient
//
// - error: ErrClientInvalid when apiRoot or token is empty.
func NewClient(apiRoot string, token string, options ...Option) (ArchiveClient, error) {
	if apiRoot == "" {
		return nil, fmt.Errorf("%w: api root is empty", ErrClientInvalid)
	}
	if token == "" {
		return nil, fmt.Errorf("%w: token is empty", ErrClientInvalid)
	}

	httpclient := new(http.Client)
	for _, opt := range options {
		hc, err := opt(httpclient)
		if err != nil {
			return nil, err
		}
		httpclient = hc
	}

	return &client{
		httpclient: httpclient,
		api:        strings.TrimSuffix(apiRoot, "/"),
		token:      token,
	}, nil
}

// build URL with path
func (c *client) apipath(path ...string) string {
	trimmed := make([]string, 0, len(path)+1)
	trimmed = append(trimmed, c.api)
	for _, p := range path {
		trimmed = append(trimmed, strings.Trim(p, "/"))
	}
	return strings.Join(trimmed, "/")
}

func (c *client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.httpclient.Do(req)
}

func trustCa(hc *http.Client, pem []byte) (*http.Client, error) {
	if hc.Transport == nil {
		hc.Transport = http.DefaultTransport
	}

	tran, ok := hc.Transport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("failed to add ca cert")
	}
	tran = tran.Clone()

	tcc := tran.TLSClientConfig.Clone()
	if tcc == nil {
		tcc = &tls.Config{}
	}

	rootcas := tcc.RootCAs
	if rootcas == nil {
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		rootcas = pool
		tcc.RootCAs = rootcas
	}
	if !rootcas.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("failed to add cert")
	}

	tran.TLSClientConfig = tcc
	hc.Transport = tran
	return hc, nil
}
