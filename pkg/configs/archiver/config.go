package archiver

import (
	"time"

	"github.com/opst/fieldarchive/pkg/remote"
	"github.com/opst/fieldarchive/pkg/utils/retry"
)

// Config is the configuration of archiver processes.
//
// To get a Config, use Unmarshal or LoadConfig.
type Config struct {
	database string
	archive  *ArchiveConfig
	remote   *RemoteConfig
	server   *ServerConfig
}

// Connection string for database.
func (c *Config) Database() string {
	return c.database
}

func (c *Config) Archive() *ArchiveConfig {
	return c.archive
}

func (c *Config) Remote() *RemoteConfig {
	return c.remote
}

// Server returns configuration of the operator API.
//
// It is nil when not configured.
func (c *Config) Server() *ServerConfig {
	return c.server
}

type ArchiveConfig struct {
	maxGroupSize     int64
	minArchiveSize   int64
	storageRoot      string
	endpoint         string
	claimTimeout     time.Duration
	uploadingTimeout time.Duration
}

// Upper bound of group size, in bytes.
func (a *ArchiveConfig) MaxGroupSize() int64 {
	return a.maxGroupSize
}

// Groups smaller than this (in bytes) wait for more files.
func (a *ArchiveConfig) MinArchiveSize() int64 {
	return a.minArchiveSize
}

// Directory where artifacts are created.
func (a *ArchiveConfig) StorageRoot() string {
	return a.storageRoot
}

// Name of the endpoint which new artifacts are uploaded to.
func (a *ArchiveConfig) Endpoint() string {
	return a.endpoint
}

func (a *ArchiveConfig) ClaimTimeout() time.Duration {
	return a.claimTimeout
}

func (a *ArchiveConfig) UploadingTimeout() time.Duration {
	return a.uploadingTimeout
}

type RemoteConfig struct {
	endpoints []remote.Endpoint
	retry     retry.Policy
	naming    remote.SuffixNaming
}

// Endpoints in the order of configuration.
func (r *RemoteConfig) Endpoints() []remote.Endpoint {
	return r.endpoints
}

// Endpoint returns the endpoint named name.
func (r *RemoteConfig) Endpoint(name string) (remote.Endpoint, bool) {
	for _, e := range r.endpoints {
		if e.Name == name {
			return e, true
		}
	}
	return remote.Endpoint{}, false
}

// EndpointsByName returns endpoints keyed by their names.
func (r *RemoteConfig) EndpointsByName() map[string]remote.Endpoint {
	m := make(map[string]remote.Endpoint, len(r.endpoints))
	for _, e := range r.endpoints {
		m[e.Name] = e
	}
	return m
}

func (r *RemoteConfig) Retry() retry.Policy {
	return r.retry
}

// Naming gives alternate names tried when removing remote files.
func (r *RemoteConfig) Naming() remote.SuffixNaming {
	return r.naming
}

type ServerConfig struct {
	port        int32
	tokenSecret []byte
}

func (s *ServerConfig) Port() int32 {
	return s.port
}

// Secret to verify HS256 bearer tokens.
func (s *ServerConfig) TokenSecret() []byte {
	return s.tokenSecret
}
