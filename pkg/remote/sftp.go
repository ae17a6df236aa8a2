package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultSSHPort = "22"

	// suffix of remote files being uploaded.
	PartSuffix = ".part"
)

// SFTPDialer connects to SFTP endpoints over SSH.
type SFTPDialer struct {
	Naming NamingPolicy
	Logger *log.Logger

	// timeout for TCP connection and SSH handshake. Zero means 30 seconds.
	HandshakeTimeout time.Duration
}

func (d SFTPDialer) Dial(ctx context.Context, endpoint Endpoint) (Session, error) {
	connErr := func(err error) error {
		return &ConnectionError{Endpoint: endpoint.Name, Err: err}
	}

	config, err := d.clientConfig(endpoint)
	if err != nil {
		return nil, connErr(err)
	}

	addr := endpoint.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, defaultSSHPort)
	}

	dialer := &net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, connErr(err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(config.Timeout))
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, connErr(err)
	}
	conn.SetDeadline(time.Time{})

	sshClient := ssh.NewClient(sshConn, chans, reqs)
	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, connErr(err)
	}

	return NewSFTPSession(endpoint, client, d.Naming, sshClient.Close), nil
}

func (d SFTPDialer) clientConfig(endpoint Endpoint) (*ssh.ClientConfig, error) {
	auth := []ssh.AuthMethod{}
	if endpoint.PrivateKey != "" {
		pem, err := os.ReadFile(endpoint.PrivateKey)
		if err != nil {
			return nil, err
		}
		var signer ssh.Signer
		if endpoint.Password != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(endpoint.Password))
		} else {
			signer, err = ssh.ParsePrivateKey(pem)
		}
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	} else if endpoint.Password != "" {
		auth = append(auth, ssh.Password(endpoint.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("no credentials: password or private key is required")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if endpoint.KnownHosts != "" {
		cb, err := knownhosts.New(endpoint.KnownHosts)
		if err != nil {
			return nil, err
		}
		hostKey = cb
	} else if d.Logger != nil {
		d.Logger.Printf("[WARN] host key of %s (%s) is not verified: known hosts is not configured", endpoint.Name, endpoint.Host)
	}

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ssh.ClientConfig{
		User:            endpoint.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}, nil
}

// SFTPSession is a Session over an SFTP client.
type SFTPSession struct {
	endpoint Endpoint
	client   *sftp.Client
	naming   NamingPolicy

	closeOnce sync.Once
	closeErr  error
	onClose   func() error
}

// NewSFTPSession wraps an SFTP client.
//
// onClose is called after the client is closed, to release the underlying transport. It can be nil.
func NewSFTPSession(endpoint Endpoint, client *sftp.Client, naming NamingPolicy, onClose func() error) *SFTPSession {
	if naming == nil {
		naming = NoAlternates{}
	}
	return &SFTPSession{endpoint: endpoint, client: client, naming: naming, onClose: onClose}
}

func (s *SFTPSession) abs(p string) string {
	root := s.endpoint.Root
	if root == "" {
		root = "."
	}
	return path.Join(root, p)
}

// watch closes the session when ctx is done before stop is called.
//
// SFTP requests do not take context, so a closed session is the way to abort them.
func (s *SFTPSession) watch(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, func() { s.Close() })
}

// classify errors caused on the session.
func (s *SFTPSession) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &ConnectionError{Endpoint: s.endpoint.Name, Err: fmt.Errorf("%w (%w)", ctxErr, err)}
	}
	if errors.Is(err, sftp.ErrSSHFxConnectionLost) || errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) ||
		errors.Is(err, sftp.ErrSSHFxNoConnection) {
		return &ConnectionError{Endpoint: s.endpoint.Name, Err: err}
	}
	return err
}

func (s *SFTPSession) EnsureDir(ctx context.Context, remoteDir string) error {
	stop := s.watch(ctx)
	defer stop()
	return s.classify(ctx, s.ensureDir(s.abs(remoteDir)))
}

func (s *SFTPSession) ensureDir(dir string) error {
	dir = path.Clean(dir)
	segments := strings.Split(strings.TrimPrefix(dir, "/"), "/")
	current := ""
	if strings.HasPrefix(dir, "/") {
		current = "/"
	}
	for _, seg := range segments {
		if seg == "" || seg == "." {
			continue
		}
		current = path.Join(current, seg)

		stat, err := s.client.Stat(current)
		if err == nil {
			if !stat.IsDir() {
				return fmt.Errorf("%s: not a directory", current)
			}
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := s.client.Mkdir(current); err != nil {
			// created by someone else in the meantime.
			if stat, serr := s.client.Stat(current); serr == nil && stat.IsDir() {
				continue
			}
			return err
		}
	}
	return nil
}

func (s *SFTPSession) Upload(ctx context.Context, localPath string, remoteDir string, remoteFilename string) error {
	dest := s.abs(path.Join(remoteDir, remoteFilename))
	uerr := func(err error) error {
		err = s.classify(ctx, err)
		var cerr *ConnectionError
		if errors.As(err, &cerr) {
			return err
		}
		return &UploadError{LocalPath: localPath, RemotePath: dest, Err: err}
	}

	local, err := os.Open(localPath)
	if err != nil {
		return &UploadError{LocalPath: localPath, RemotePath: dest, Local: true, Err: err}
	}
	defer local.Close()
	lstat, err := local.Stat()
	if err != nil {
		return &UploadError{LocalPath: localPath, RemotePath: dest, Local: true, Err: err}
	}

	stop := s.watch(ctx)
	defer stop()

	if err := s.ensureDir(path.Dir(dest)); err != nil {
		return uerr(err)
	}

	// the artifact appears at dest only when it is complete.
	part := dest + PartSuffix
	if err := s.transfer(local, part); err != nil {
		s.client.Remove(part)
		return uerr(err)
	}
	pstat, err := s.client.Stat(part)
	if err != nil {
		s.client.Remove(part)
		return uerr(err)
	}
	if pstat.Size() != lstat.Size() {
		s.client.Remove(part)
		return uerr(fmt.Errorf("size mismatch: local %d bytes, remote %d bytes", lstat.Size(), pstat.Size()))
	}

	if _, err := s.client.Stat(dest); err == nil {
		if err := s.client.Remove(dest); err != nil {
			s.client.Remove(part)
			return uerr(err)
		}
	}
	if err := s.client.Rename(part, dest); err != nil {
		s.client.Remove(part)
		return uerr(err)
	}
	return nil
}

func (s *SFTPSession) transfer(src io.Reader, dest string) error {
	f, err := s.client.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *SFTPSession) RemoveRemote(ctx context.Context, remotePath string) error {
	stop := s.watch(ctx)
	defer stop()

	candidates := append([]string{remotePath}, s.naming.Alternates(remotePath)...)
	rerr := &RemoveError{RemotePath: remotePath}
	for _, c := range candidates {
		err := s.client.Remove(s.abs(c))
		if err == nil {
			return nil
		}
		if cerr := s.classify(ctx, err); cerr != err {
			return cerr
		}
		rerr.Tried = append(rerr.Tried, c)
		rerr.Errors = append(rerr.Errors, err)
	}
	return rerr
}

func (s *SFTPSession) Exists(ctx context.Context, remotePath string) (bool, error) {
	stop := s.watch(ctx)
	defer stop()

	_, err := s.client.Stat(s.abs(remotePath))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, s.classify(ctx, err)
}

func (s *SFTPSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
		if s.onClose != nil {
			if err := s.onClose(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}
