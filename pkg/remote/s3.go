package remote

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Dialer connects to S3-compatible object stores.
//
// Endpoint.Root is "bucket[/prefix]". The bucket should exist.
type S3Dialer struct {
	Naming NamingPolicy
}

func (d S3Dialer) Dial(ctx context.Context, endpoint Endpoint) (Session, error) {
	connErr := func(err error) error {
		return &ConnectionError{Endpoint: endpoint.Name, Err: err}
	}

	bucket, prefix := splitBucket(endpoint.Root)
	if bucket == "" {
		return nil, connErr(fmt.Errorf("bucket is not specified in root: %q", endpoint.Root))
	}

	client, err := minio.New(endpoint.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(endpoint.User, endpoint.Password, ""),
		Secure: endpoint.Secure,
	})
	if err != nil {
		return nil, connErr(err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, connErr(err)
	}
	if !exists {
		return nil, connErr(fmt.Errorf("bucket %s does not exist", bucket))
	}

	naming := d.Naming
	if naming == nil {
		naming = NoAlternates{}
	}
	return &S3Session{
		endpoint: endpoint,
		client:   client,
		bucket:   bucket,
		prefix:   prefix,
		naming:   naming,
	}, nil
}

func splitBucket(root string) (string, string) {
	root = strings.Trim(root, "/")
	bucket, prefix, _ := strings.Cut(root, "/")
	return bucket, prefix
}

// S3Session is a Session over an object store.
//
// Objects are written atomically by the store, so no temporary names are used.
type S3Session struct {
	endpoint Endpoint
	client   *minio.Client
	bucket   string
	prefix   string
	naming   NamingPolicy
}

func (s *S3Session) key(p string) string {
	return strings.TrimPrefix(path.Join(s.prefix, p), "/")
}

func (s *S3Session) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return &ConnectionError{Endpoint: s.endpoint.Name, Err: err}
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == 0 && resp.Code == "" {
		// not a response from the store. network failure.
		return &ConnectionError{Endpoint: s.endpoint.Name, Err: err}
	}
	return err
}

func (s *S3Session) Upload(ctx context.Context, localPath string, remoteDir string, remoteFilename string) error {
	key := s.key(path.Join(remoteDir, remoteFilename))

	stat, err := os.Stat(localPath)
	if err != nil {
		return &UploadError{LocalPath: localPath, RemotePath: key, Local: true, Err: err}
	}

	info, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/gzip",
	})
	if err != nil {
		cerr := s.classify(ctx, err)
		if _, ok := cerr.(*ConnectionError); ok {
			return cerr
		}
		return &UploadError{LocalPath: localPath, RemotePath: key, Err: err}
	}
	if info.Size != stat.Size() {
		return &UploadError{
			LocalPath: localPath, RemotePath: key,
			Err: fmt.Errorf("size mismatch: local %d bytes, remote %d bytes", stat.Size(), info.Size),
		}
	}
	return nil
}

// EnsureDir does nothing. Object stores do not have directories.
func (s *S3Session) EnsureDir(context.Context, string) error {
	return nil
}

func (s *S3Session) Exists(ctx context.Context, remotePath string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.key(remotePath), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, s.classify(ctx, err)
}

// RemoveRemote removes the first candidate which exists.
//
// Object stores report success on removing missing objects,
// so existence is checked before removing.
func (s *S3Session) RemoveRemote(ctx context.Context, remotePath string) error {
	candidates := append([]string{remotePath}, s.naming.Alternates(remotePath)...)
	rerr := &RemoveError{RemotePath: remotePath}
	for _, c := range candidates {
		exists, err := s.Exists(ctx, c)
		if err != nil {
			if _, ok := err.(*ConnectionError); ok {
				return err
			}
			rerr.Tried = append(rerr.Tried, c)
			rerr.Errors = append(rerr.Errors, err)
			continue
		}
		if !exists {
			rerr.Tried = append(rerr.Tried, c)
			rerr.Errors = append(rerr.Errors, fs.ErrNotExist)
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucket, s.key(c), minio.RemoveObjectOptions{}); err != nil {
			cerr := s.classify(ctx, err)
			if _, ok := cerr.(*ConnectionError); ok {
				return cerr
			}
			rerr.Tried = append(rerr.Tried, c)
			rerr.Errors = append(rerr.Errors, err)
			continue
		}
		return nil
	}
	return rerr
}

func (s *S3Session) Close() error {
	return nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey"
}
