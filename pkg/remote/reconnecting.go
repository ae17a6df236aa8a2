package remote

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/opst/fieldarchive/pkg/domain"
	"github.com/opst/fieldarchive/pkg/utils/retry"
)

// Reconnecting is a Session which retries failed operations under a retry.Policy.
//
// Before each retry, the broken session is closed and a new one is dialed.
type Reconnecting struct {
	dialer   Dialer
	endpoint Endpoint
	policy   retry.Policy
	logger   *log.Logger

	mu      sync.Mutex
	current Session
}

// Connect dials endpoint and returns a Reconnecting session.
//
// The first connection is not retried: when it fails, Connect returns *ConnectionError.
func Connect(ctx context.Context, dialer Dialer, endpoint Endpoint, policy retry.Policy, logger *log.Logger) (*Reconnecting, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	cctx, cancel := policy.WithTimeout(ctx)
	defer cancel()
	sess, err := dialer.Dial(cctx, endpoint)
	if err != nil {
		if !errors.Is(err, domain.ErrConnection) {
			err = &ConnectionError{Endpoint: endpoint.Name, Err: err}
		}
		return nil, err
	}

	return &Reconnecting{
		dialer:   dialer,
		endpoint: endpoint,
		policy:   policy,
		logger:   logger,
		current:  sess,
	}, nil
}

func (r *Reconnecting) session(ctx context.Context) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return r.current, nil
	}
	sess, err := r.dialer.Dial(ctx, r.endpoint)
	if err != nil {
		if !errors.Is(err, domain.ErrConnection) {
			err = &ConnectionError{Endpoint: r.endpoint.Name, Err: err}
		}
		return nil, err
	}
	r.current = sess
	return sess, nil
}

// drop closes the current session, if it is still sess.
func (r *Reconnecting) drop(sess Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != sess || sess == nil {
		return
	}
	if err := sess.Close(); err != nil {
		r.logger.Printf("closing broken session to %s: %v", r.endpoint.Name, err)
	}
	r.current = nil
}

// worthRetry reports that err may be resolved by another attempt.
func worthRetry(err error) bool {
	var uerr *UploadError
	if errors.As(err, &uerr) && uerr.Local {
		return false
	}
	if errors.Is(err, domain.ErrMissing) {
		return false
	}
	return true
}

func (r *Reconnecting) do(ctx context.Context, op string, f func(context.Context, Session) error) error {
	attempt := 0
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		attempt += 1
		sess, err := r.session(ctx)
		if err != nil {
			r.logger.Printf(
				"%s on %s: reconnection failed (attempt %d/%d): %v",
				op, r.endpoint.Name, attempt, r.policy.MaxAttempts, err,
			)
			return retry.Retryable(err)
		}

		err = f(ctx, sess)
		if err == nil {
			return nil
		}
		if !worthRetry(err) {
			return err
		}
		r.logger.Printf(
			"%s on %s failed (attempt %d/%d): %v",
			op, r.endpoint.Name, attempt, r.policy.MaxAttempts, err,
		)
		r.drop(sess)
		return retry.Retryable(err)
	})
	return err
}

func (r *Reconnecting) Upload(ctx context.Context, localPath string, remoteDir string, remoteFilename string) error {
	return r.do(ctx, "upload", func(ctx context.Context, s Session) error {
		return s.Upload(ctx, localPath, remoteDir, remoteFilename)
	})
}

func (r *Reconnecting) RemoveRemote(ctx context.Context, remotePath string) error {
	return r.do(ctx, "remove", func(ctx context.Context, s Session) error {
		return s.RemoveRemote(ctx, remotePath)
	})
}

func (r *Reconnecting) EnsureDir(ctx context.Context, remoteDir string) error {
	return r.do(ctx, "mkdir", func(ctx context.Context, s Session) error {
		return s.EnsureDir(ctx, remoteDir)
	})
}

func (r *Reconnecting) Exists(ctx context.Context, remotePath string) (bool, error) {
	exists := false
	err := r.do(ctx, "stat", func(ctx context.Context, s Session) error {
		e, err := s.Exists(ctx, remotePath)
		exists = e
		return err
	})
	return exists, err
}

func (r *Reconnecting) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current = nil
	return err
}

// Dialers selects a Dialer by Kind of endpoints.
type Dialers map[Kind]Dialer

// DefaultDialers returns dialers for SFTP and S3 endpoints.
func DefaultDialers(naming NamingPolicy, logger *log.Logger) Dialers {
	return Dialers{
		SFTP: SFTPDialer{Naming: naming, Logger: logger},
		S3:   S3Dialer{Naming: naming},
	}
}

func (ds Dialers) Dial(ctx context.Context, endpoint Endpoint) (Session, error) {
	d, ok := ds[endpoint.Kind]
	if !ok {
		return nil, &ConnectionError{Endpoint: endpoint.Name, Err: ErrUnknownKind}
	}
	return d.Dial(ctx, endpoint)
}
