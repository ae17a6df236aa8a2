package lifecycle_test

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opst/fieldarchive/pkg/archive"
	kdb "github.com/opst/fieldarchive/pkg/db"
	"github.com/opst/fieldarchive/pkg/db/mocks"
	"github.com/opst/fieldarchive/pkg/domain"
	"github.com/opst/fieldarchive/pkg/grouping"
	"github.com/opst/fieldarchive/pkg/lifecycle"
	"github.com/opst/fieldarchive/pkg/remote"
	rmocks "github.com/opst/fieldarchive/pkg/remote/mocks"
	"github.com/opst/fieldarchive/pkg/utils/retry"
)

const (
	KiB = int64(1024)
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

type fileRecord struct {
	domain.FileStatus
	claim     string
	claimedAt time.Time
}

type artifactRecord struct {
	domain.Artifact
	members []string
}

// store is an in-memory database behind mocks.Database.
//
// It follows the semantics of the postgres implementation closely enough for coordinator tests.
type store struct {
	mu        sync.Mutex
	now       func() time.Time
	files     map[string]*fileRecord
	artifacts map[string]*artifactRecord
	tokens    int
}

func newStore(t *testing.T) (*store, *mocks.Database) {
	t.Helper()
	s := &store{
		now:       time.Now,
		files:     map[string]*fileRecord{},
		artifacts: map[string]*artifactRecord{},
	}
	db := mocks.NewDatabase()

	fi := db.MockFiles()
	fi.Impl.Register = func(ctx context.Context, files []domain.FileDescriptor) (int, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		n := 0
		for _, f := range files {
			if _, ok := s.files[f.Id]; ok {
				continue
			}
			s.files[f.Id] = &fileRecord{FileStatus: domain.FileStatus{FileDescriptor: f, LocalStorage: true}}
			n += 1
		}
		return n, nil
	}
	fi.Impl.Keys = func(ctx context.Context) ([]domain.GroupKey, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		keys := []domain.GroupKey{}
		for _, f := range s.files {
			if s.waiting(f) && !slices.Contains(keys, f.Key()) {
				keys = append(keys, f.Key())
			}
		}
		slices.SortFunc(keys, func(a, b domain.GroupKey) int {
			if a.Project != b.Project {
				return strings.Compare(a.Project, b.Project)
			}
			return strings.Compare(a.DeviceType, b.DeviceType)
		})
		return keys, nil
	}
	fi.Impl.Claim = func(ctx context.Context, key domain.GroupKey) (kdb.Claim, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.tokens += 1
		claim := kdb.Claim{Token: fmt.Sprintf("token-%d", s.tokens), Key: key, Files: []domain.FileDescriptor{}}
		for _, f := range s.files {
			if s.waiting(f) && f.Key() == key {
				f.claim = claim.Token
				f.claimedAt = s.now()
				claim.Files = append(claim.Files, f.FileDescriptor)
			}
		}
		claim.Files = grouping.SortForGrouping(claim.Files)
		return claim, nil
	}
	fi.Impl.Release = func(ctx context.Context, token string, ids []string) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, id := range ids {
			if f, ok := s.files[id]; ok && f.claim == token {
				f.claim = ""
			}
		}
		return nil
	}
	fi.Impl.ReleaseStale = func(ctx context.Context, olderThan time.Duration) (int, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		n := 0
		for _, f := range s.files {
			if f.claim != "" && olderThan < s.now().Sub(f.claimedAt) {
				f.claim = ""
				n += 1
			}
		}
		return n, nil
	}
	fi.Impl.Get = func(ctx context.Context, ids []string) ([]domain.FileStatus, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		ret := []domain.FileStatus{}
		for _, id := range ids {
			f, ok := s.files[id]
			if !ok {
				return nil, fmt.Errorf("%w: file %s", kdb.ErrMissing, id)
			}
			ret = append(ret, f.FileStatus)
		}
		return ret, nil
	}

	ai := db.MockArtifacts()
	ai.Impl.Register = func(ctx context.Context, artifact domain.Artifact, claimToken string) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.artifacts[artifact.Name]; ok {
			return fmt.Errorf("%w: name %s is used", kdb.ErrConflict, artifact.Name)
		}
		ids := []string{}
		for _, m := range artifact.Members {
			f, ok := s.files[m.Id]
			if !ok || f.claim != claimToken || f.Artifact != "" {
				return fmt.Errorf("%w: file %s is not claimed", kdb.ErrConflict, m.Id)
			}
			ids = append(ids, m.Id)
		}
		for _, id := range ids {
			s.files[id].claim = ""
			s.files[id].Artifact = artifact.Name
		}
		a := artifact
		a.Members = nil
		a.FileCount = len(ids)
		a.LocalStorage = true
		s.artifacts[a.Name] = &artifactRecord{Artifact: a, members: ids}
		return nil
	}
	ai.Impl.Get = func(ctx context.Context, name string) (domain.Artifact, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		a, ok := s.artifacts[name]
		if !ok {
			return domain.Artifact{}, fmt.Errorf("%w: artifact %s", kdb.ErrMissing, name)
		}
		return s.full(a), nil
	}
	ai.Impl.Find = func(ctx context.Context, query kdb.ArtifactQuery) ([]domain.Artifact, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		ret := []domain.Artifact{}
		for _, a := range s.artifacts {
			if query.State != "" && a.State() != query.State {
				continue
			}
			if query.Endpoint != "" && a.Endpoint != query.Endpoint {
				continue
			}
			if query.Project != "" && a.Project != query.Project {
				continue
			}
			if query.DeviceType != "" && a.DeviceType != query.DeviceType {
				continue
			}
			ret = append(ret, a.Artifact)
		}
		slices.SortFunc(ret, func(a, b domain.Artifact) int { return strings.Compare(a.Name, b.Name) })
		return ret, nil
	}
	ai.Impl.Lock = func(ctx context.Context, name string) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		a, ok := s.artifacts[name]
		if !ok {
			return fmt.Errorf("%w: artifact %s", kdb.ErrMissing, name)
		}
		if a.Uploading || a.Archived {
			return fmt.Errorf("%w: artifact %s is uploading or archived", kdb.ErrConflict, name)
		}
		now := s.now()
		a.Uploading = true
		a.UploadingSince = &now
		return nil
	}
	ai.Impl.Unlock = func(ctx context.Context, name string) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		a, ok := s.artifacts[name]
		if !ok {
			return fmt.Errorf("%w: artifact %s", kdb.ErrMissing, name)
		}
		a.Uploading = false
		a.UploadingSince = nil
		return nil
	}
	ai.Impl.Complete = func(ctx context.Context, name string, remotePath string) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		a, ok := s.artifacts[name]
		if !ok {
			return fmt.Errorf("%w: artifact %s", kdb.ErrMissing, name)
		}
		if !a.Uploading {
			return fmt.Errorf("%w: artifact %s is not locked", kdb.ErrConflict, name)
		}
		a.Uploading = false
		a.UploadingSince = nil
		a.Archived = true
		a.LocalStorage = false
		a.RemotePath = remotePath
		for _, id := range a.members {
			s.files[id].Archived = true
		}
		return nil
	}
	ai.Impl.ReleaseStaleLocks = func(ctx context.Context, olderThan time.Duration) ([]string, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		names := []string{}
		for _, a := range s.artifacts {
			if a.Uploading && olderThan < s.now().Sub(*a.UploadingSince) {
				a.Uploading = false
				a.UploadingSince = nil
				names = append(names, a.Name)
			}
		}
		slices.Sort(names)
		return names, nil
	}
	ai.Impl.RepairMembers = func(ctx context.Context) ([]string, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		names := []string{}
		for _, a := range s.artifacts {
			if !a.Archived {
				continue
			}
			repaired := false
			for _, id := range a.members {
				if !s.files[id].Archived {
					s.files[id].Archived = true
					repaired = true
				}
			}
			if repaired {
				names = append(names, a.Name)
			}
		}
		slices.Sort(names)
		return names, nil
	}
	ai.Impl.Demote = func(ctx context.Context, name string) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		a, ok := s.artifacts[name]
		if !ok {
			return fmt.Errorf("%w: artifact %s", kdb.ErrMissing, name)
		}
		if !a.Archived {
			return fmt.Errorf("%w: artifact %s is not archived", kdb.ErrConflict, name)
		}
		a.Placeholder = true
		a.LocalStorage = false
		return nil
	}
	ai.Impl.SetLocalStorage = func(ctx context.Context, name string, local bool) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		a, ok := s.artifacts[name]
		if !ok {
			return fmt.Errorf("%w: artifact %s", kdb.ErrMissing, name)
		}
		a.LocalStorage = local
		return nil
	}
	ai.Impl.Remove = func(ctx context.Context, name string, withFiles bool, apply func() error) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		a, ok := s.artifacts[name]
		if !ok {
			return fmt.Errorf("%w: artifact %s", kdb.ErrMissing, name)
		}
		if a.Uploading {
			return fmt.Errorf("%w: artifact %s is uploading", kdb.ErrConflict, name)
		}
		held := []string{}
		for _, id := range a.members {
			if s.files[id].DoNotRemove {
				held = append(held, id)
			}
		}
		if 0 < len(held) {
			return &domain.DeletionRefused{Artifact: name, Reason: "member files are held", HeldBy: held}
		}
		if apply != nil {
			if err := apply(); err != nil {
				return err
			}
		}
		for _, id := range a.members {
			if withFiles {
				delete(s.files, id)
			} else {
				s.files[id].Artifact = ""
				s.files[id].Archived = false
			}
		}
		delete(s.artifacts, name)
		return nil
	}

	return s, db
}

func (s *store) waiting(f *fileRecord) bool {
	return !f.Archived && f.Artifact == "" && f.claim == ""
}

func (s *store) full(a *artifactRecord) domain.Artifact {
	ret := a.Artifact
	ret.Members = []domain.FileStatus{}
	for _, id := range a.members {
		ret.Members = append(ret.Members, s.files[id].FileStatus)
	}
	return ret
}

// artifact returns the current record of the artifact. It fails t when missing.
func (s *store) artifact(t *testing.T, name string) domain.Artifact {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[name]
	if !ok {
		t.Fatalf("artifact %s is missing", name)
	}
	return s.full(a)
}

func (s *store) file(t *testing.T, id string) (fileRecord, bool) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return fileRecord{}, false
	}
	return *f, true
}

func (s *store) hold(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id].DoNotRemove = true
}

func (s *store) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := []string{}
	for n := range s.artifacts {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// remoteStore is an in-memory remote endpoint.
type remoteStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// if set, called before each upload. Returning error fails the upload.
	failUpload func(remotePath string) error

	// if set, called before each removal. Returning error fails the removal.
	failRemove func(remotePath string) error
}

func newRemoteStore() *remoteStore {
	return &remoteStore{objects: map[string][]byte{}}
}

// session returns a new session to the store.
func (r *remoteStore) session() *rmocks.Session {
	sess := rmocks.NewSession()
	sess.Impl.Upload = func(ctx context.Context, localPath, remoteDir, remoteFilename string) error {
		dest := path.Join(remoteDir, remoteFilename)
		r.mu.Lock()
		fail := r.failUpload
		r.mu.Unlock()
		if fail != nil {
			if err := fail(dest); err != nil {
				return err
			}
		}
		content, err := os.ReadFile(localPath)
		if err != nil {
			return &remote.UploadError{LocalPath: localPath, RemotePath: dest, Local: true, Err: err}
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		r.objects[dest] = content
		return nil
	}
	sess.Impl.RemoveRemote = func(ctx context.Context, remotePath string) error {
		r.mu.Lock()
		fail := r.failRemove
		r.mu.Unlock()
		if fail != nil {
			if err := fail(remotePath); err != nil {
				return err
			}
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.objects[remotePath]; !ok {
			return &remote.RemoveError{
				RemotePath: remotePath, Tried: []string{remotePath}, Errors: []error{fs.ErrNotExist},
			}
		}
		delete(r.objects, remotePath)
		return nil
	}
	sess.Impl.Exists = func(ctx context.Context, remotePath string) (bool, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		_, ok := r.objects[remotePath]
		return ok, nil
	}
	return sess
}

func (r *remoteStore) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps := []string{}
	for p := range r.objects {
		ps = append(ps, p)
	}
	slices.Sort(ps)
	return ps
}

// dialer dials sessions to the store. When down is set, dialing fails.
type dialer struct {
	remote *remoteStore

	mu    sync.Mutex
	down  bool
	dials int
}

func (d *dialer) Dial(ctx context.Context, endpoint remote.Endpoint) (remote.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials += 1
	if d.down {
		return nil, &remote.ConnectionError{Endpoint: endpoint.Name, Err: fmt.Errorf("network is unreachable")}
	}
	return d.remote.session(), nil
}

func (d *dialer) setDown(down bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.down = down
}

// sourceFile writes a source file under dir and returns its descriptor.
//
// declaredSize is used for grouping only. The content is a few bytes.
func sourceFile(t *testing.T, dir string, id string, declaredSize int64, recordedAt time.Time) domain.FileDescriptor {
	t.Helper()
	rel := filepath.Join("2024", id+".wav")
	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("content of "+id), 0644); err != nil {
		t.Fatal(err)
	}
	return domain.FileDescriptor{
		Id:           id,
		Project:      "forest-survey",
		DeviceType:   "audiomoth",
		Path:         full,
		RelativePath: filepath.ToSlash(rel),
		Size:         declaredSize,
		RecordedAt:   recordedAt,
		CreatedAt:    recordedAt.Add(time.Hour),
	}
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

var fixedTime = time.Date(2024, time.May, 6, 7, 8, 9, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2024, time.April, d, 12, 0, 0, 0, time.UTC)
}

type fixture struct {
	store  *store
	db     *mocks.Database
	remote *remoteStore
	dialer *dialer

	// directory of source files
	sources string

	config lifecycle.Config

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T, maxGroupBytes, minArchiveBytes int64) *fixture {
	t.Helper()
	st, db := newStore(t)
	rs := newRemoteStore()
	f := &fixture{
		store:   st,
		db:      db,
		remote:  rs,
		dialer:  &dialer{remote: rs},
		sources: t.TempDir(),
		now:     fixedTime,
		config: lifecycle.Config{
			StorageRoot:     t.TempDir(),
			MaxGroupBytes:   maxGroupBytes,
			MinArchiveBytes: minArchiveBytes,
			Endpoint:        "primary",
			Endpoints: map[string]remote.Endpoint{
				"primary": {Name: "primary", Kind: remote.SFTP, Host: "archive.example.com:22"},
			},
			ClaimTimeout:     10 * time.Minute,
			UploadingTimeout: 30 * time.Minute,
			Retry: retry.Policy{
				MaxAttempts:     2,
				InitialInterval: time.Millisecond,
				Multiplier:      1,
				MaxInterval:     time.Millisecond,
			},
		},
	}
	st.now = f.clock
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// advance moves the clock of the store and the coordinator forward.
func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) coordinator(options ...lifecycle.Option) *lifecycle.Coordinator {
	packager := archive.New(archive.WithClock(func() time.Time { return fixedTime }))
	options = append([]lifecycle.Option{lifecycle.WithClock(f.clock)}, options...)
	return lifecycle.New(f.db, packager, f.dialer, f.config, options...)
}

// register writes source files and registers them.
func (f *fixture) register(t *testing.T, files ...domain.FileDescriptor) {
	t.Helper()
	if _, err := f.db.Files().Register(context.Background(), files); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) file(t *testing.T, id string, declaredSize int64, recordedAt time.Time) domain.FileDescriptor {
	t.Helper()
	return sourceFile(t, f.sources, id, declaredSize, recordedAt)
}

func (r *remoteStore) failUploadsWith(f func(remotePath string) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failUpload = f
}

func (r *remoteStore) failRemovesWith(f func(remotePath string) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failRemove = f
}

func (r *remoteStore) put(remotePath string, content []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[remotePath] = content
}

func (d *dialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
