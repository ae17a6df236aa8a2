package archiver

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/opst/fieldarchive/pkg/remote"
	"github.com/opst/fieldarchive/pkg/utils/retry"
	"gopkg.in/yaml.v3"
)

// ErrMisconfigured is the cause of errors from Unmarshal for invalid configurations.
var ErrMisconfigured = errors.New("misconfigured")

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

// Size is a size in bytes. In yaml, it is an integer or a string like "100GB" or "1.5 GiB".
type Size int64

func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	b, err := humanize.ParseBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: size %q (line %d)", ErrMisconfigured, raw, node.Line)
	}
	*s = Size(b)
	return nil
}

func (s Size) MarshalYAML() (any, error) {
	return humanize.IBytes(uint64(s)), nil
}

// Duration is a time.Duration. In yaml, it is a string like "90s" or "1h30m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%w: duration %q (line %d)", ErrMisconfigured, raw, node.Line)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

type ConfigMarshall struct {
	Database string                 `yaml:"database"`
	Archive  *ArchiveConfigMarshall `yaml:"archive"`
	Remote   *RemoteConfigMarshall  `yaml:"remote"`
	Server   *ServerConfigMarshall  `yaml:"server,omitempty"`
}

var _ Marshalled[*Config] = &ConfigMarshall{}

func (c *ConfigMarshall) trySeal(path string) *Config {
	rem := nonnil(c.Remote, path+".remote").trySeal(path + ".remote")
	arc := nonnil(c.Archive, path+".archive").trySeal(path + ".archive")

	if arc.endpoint == "" {
		if len(rem.endpoints) != 1 {
			panic(path + ".archive.endpoint is required when there are multiple endpoints")
		}
		arc.endpoint = rem.endpoints[0].Name
	}
	if _, ok := rem.Endpoint(arc.endpoint); !ok {
		panic(fmt.Sprintf("%s.archive.endpoint: %s is not in %s.remote.endpoints", path, arc.endpoint, path))
	}

	var server *ServerConfig
	if c.Server != nil {
		server = c.Server.trySeal(path + ".server")
	}

	return &Config{
		database: required(c.Database, path+".database"),
		archive:  arc,
		remote:   rem,
		server:   server,
	}
}

type ArchiveConfigMarshall struct {
	MaxGroupSize     Size      `yaml:"maxGroupSize"`
	MinArchiveSize   Size      `yaml:"minArchiveSize,omitempty"`
	StorageRoot      string    `yaml:"storageRoot"`
	Endpoint         string    `yaml:"endpoint,omitempty"`
	ClaimTimeout     *Duration `yaml:"claimTimeout,omitempty"`
	UploadingTimeout *Duration `yaml:"uploadingTimeout,omitempty"`
}

const (
	DefaultClaimTimeout     = 1 * time.Hour
	DefaultUploadingTimeout = 24 * time.Hour
)

func (a *ArchiveConfigMarshall) trySeal(path string) *ArchiveConfig {
	maxGroupSize := int64(required(a.MaxGroupSize, path+".maxGroupSize"))
	minArchiveSize := int64(a.MinArchiveSize)
	if maxGroupSize < minArchiveSize {
		panic(fmt.Sprintf(
			"%s.minArchiveSize (%s) should not be larger than %s.maxGroupSize (%s)",
			path, humanize.IBytes(uint64(minArchiveSize)), path, humanize.IBytes(uint64(maxGroupSize)),
		))
	}

	return &ArchiveConfig{
		maxGroupSize:     maxGroupSize,
		minArchiveSize:   minArchiveSize,
		storageRoot:      required(a.StorageRoot, path+".storageRoot"),
		endpoint:         a.Endpoint,
		claimTimeout:     positive(a.ClaimTimeout, DefaultClaimTimeout, path+".claimTimeout"),
		uploadingTimeout: positive(a.UploadingTimeout, DefaultUploadingTimeout, path+".uploadingTimeout"),
	}
}

type RemoteConfigMarshall struct {
	Endpoints        []*EndpointMarshall `yaml:"endpoints"`
	Retry            *RetryMarshall      `yaml:"retry,omitempty"`
	LegacyNameSuffix string              `yaml:"legacyNameSuffix,omitempty"`
}

func (r *RemoteConfigMarshall) trySeal(path string) *RemoteConfig {
	if len(r.Endpoints) == 0 {
		panic(path + ".endpoints is required")
	}
	endpoints := make([]remote.Endpoint, 0, len(r.Endpoints))
	seen := map[string]struct{}{}
	for nth, e := range r.Endpoints {
		p := fmt.Sprintf("%s.endpoints[%d]", path, nth)
		ep := nonnil(e, p).trySeal(p)
		if _, ok := seen[ep.Name]; ok {
			panic(fmt.Sprintf("%s.name: %s is duplicated", p, ep.Name))
		}
		seen[ep.Name] = struct{}{}
		endpoints = append(endpoints, ep)
	}

	policy := retry.DefaultPolicy()
	if r.Retry != nil {
		policy = r.Retry.trySeal(path + ".retry")
	}

	naming, err := remote.NewSuffixNaming(r.LegacyNameSuffix)
	if err != nil {
		panic(fmt.Errorf("%s.legacyNameSuffix can not be parsed: %w", path, err))
	}

	return &RemoteConfig{
		endpoints: endpoints,
		retry:     policy,
		naming:    naming,
	}
}

type EndpointMarshall struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"`
	Host       string `yaml:"host"`
	User       string `yaml:"user,omitempty"`
	Password   string `yaml:"password,omitempty"`
	PrivateKey string `yaml:"privateKey,omitempty"`
	KnownHosts string `yaml:"knownHosts,omitempty"`
	Root       string `yaml:"root,omitempty"`
	Secure     bool   `yaml:"secure,omitempty"`
}

func (e *EndpointMarshall) trySeal(path string) remote.Endpoint {
	kind, err := remote.AsKind(required(e.Kind, path+".kind"))
	if err != nil {
		panic(fmt.Errorf("%s.kind: %w", path, err))
	}
	if kind == remote.S3 && e.Root == "" {
		panic(path + ".root (bucket) is required for s3 endpoints")
	}
	if kind == remote.SFTP && e.Password == "" && e.PrivateKey == "" {
		panic(path + ": password or privateKey is required for sftp endpoints")
	}
	return remote.Endpoint{
		Name:       required(e.Name, path+".name"),
		Kind:       kind,
		Host:       required(e.Host, path+".host"),
		User:       e.User,
		Password:   e.Password,
		PrivateKey: e.PrivateKey,
		KnownHosts: e.KnownHosts,
		Root:       e.Root,
		Secure:     e.Secure,
	}
}

// RetryMarshall overrides retry.DefaultPolicy. Omitted fields keep their defaults.
type RetryMarshall struct {
	MaxAttempts     int       `yaml:"maxAttempts,omitempty"`
	InitialInterval *Duration `yaml:"initialInterval,omitempty"`
	Multiplier      float64   `yaml:"multiplier,omitempty"`
	MaxInterval     *Duration `yaml:"maxInterval,omitempty"`
	Timeout         *Duration `yaml:"timeout,omitempty"`
}

func (r *RetryMarshall) trySeal(path string) retry.Policy {
	p := retry.DefaultPolicy()
	if r.MaxAttempts < 0 {
		panic(path + ".maxAttempts should be positive")
	} else if 0 < r.MaxAttempts {
		p.MaxAttempts = r.MaxAttempts
	}
	if r.Multiplier < 0 {
		panic(path + ".multiplier should be positive")
	} else if 0 < r.Multiplier {
		p.Multiplier = r.Multiplier
	}
	p.InitialInterval = positive(r.InitialInterval, p.InitialInterval, path+".initialInterval")
	p.MaxInterval = positive(r.MaxInterval, p.MaxInterval, path+".maxInterval")
	p.Timeout = positive(r.Timeout, p.Timeout, path+".timeout")
	return p
}

type ServerConfigMarshall struct {
	Port        int32  `yaml:"port,omitempty"`
	TokenSecret string `yaml:"tokenSecret"`
}

const DefaultPort = 8080

func (s *ServerConfigMarshall) trySeal(path string) *ServerConfig {
	port := s.Port
	if port == 0 {
		port = DefaultPort
	}
	secret := required(s.TokenSecret, path+".tokenSecret")
	if len(secret) < 32 {
		panic(path + ".tokenSecret should be 32 bytes or longer")
	}
	return &ServerConfig{
		port:        port,
		tokenSecret: []byte(secret),
	}
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}

func positive(v *Duration, defaultValue time.Duration, path string) time.Duration {
	if v == nil {
		return defaultValue
	}
	if *v <= 0 {
		panic(path + " should be positive")
	}
	return time.Duration(*v)
}
