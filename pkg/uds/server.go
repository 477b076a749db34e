package uds

import (
	"context"
	stderrors "errors"
	"net"
	"os"
	"time"

	"github.com/yanun0323/errors"

	"hwstrat/pkg/exception"
)

const (
	defaultSocketMode   os.FileMode = 0o660
	acceptPollInterval              = 100 * time.Millisecond
)

// Server owns the host link socket file. Only one listener is bound at a
// time; a stale socket left by a crashed run is replaced on Listen.
type Server struct {
	path string
	mode os.FileMode
	ln   *net.UnixListener
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithMode sets the permission bits of the socket file.
func WithMode(mode os.FileMode) ServerOption {
	return func(s *Server) { s.mode = mode }
}

func NewServer(path string, opts ...ServerOption) (*Server, error) {
	if path == "" {
		return nil, exception.ErrEmptyPathUDS
	}
	s := &Server{path: path, mode: defaultSocketMode}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Server) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Listen binds the socket and applies the configured mode.
func (s *Server) Listen() error {
	if s == nil {
		return exception.ErrNilServerUDS
	}
	if s.ln != nil {
		return exception.ErrAlreadyListeningUDS
	}
	if err := RemoveIfExists(s.path); err != nil {
		return err
	}
	ln, err := net.ListenUnix(unixNetwork, &net.UnixAddr{Name: s.path, Net: unixNetwork})
	if err != nil {
		return errors.Wrap(err, "listen host link").With("path", s.path)
	}
	ln.SetUnlinkOnClose(true)
	if err := os.Chmod(s.path, s.mode); err != nil {
		_ = ln.Close()
		return errors.Wrap(err, "chmod host link socket").With("path", s.path)
	}
	s.ln = ln
	return nil
}

// Accept blocks until a host connects or the listener is closed.
func (s *Server) Accept() (*net.UnixConn, error) {
	if s == nil {
		return nil, exception.ErrNilServerUDS
	}
	if s.ln == nil {
		return nil, exception.ErrNotListeningUDS
	}
	return s.ln.AcceptUnix()
}

// AcceptContext waits for a host until ctx is done.
func (s *Server) AcceptContext(ctx context.Context) (*net.UnixConn, error) {
	if s == nil {
		return nil, exception.ErrNilServerUDS
	}
	ln := s.ln
	if ln == nil {
		return nil, exception.ErrNotListeningUDS
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := ln.SetDeadline(time.Now().Add(acceptPollInterval)); err != nil {
			return nil, err
		}
		conn, err := ln.AcceptUnix()
		if err == nil {
			_ = ln.SetDeadline(time.Time{})
			return conn, nil
		}
		var ne net.Error
		if stderrors.As(err, &ne) && ne.Timeout() {
			continue
		}
		return nil, err
	}
}

// Close stops the listener and unlinks the socket file.
func (s *Server) Close() error {
	if s == nil {
		return exception.ErrNilServerUDS
	}
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	s.ln = nil
	return err
}

// RemoveIfExists removes path when it is a socket. Any other file is left
// alone and reported.
func RemoveIfExists(path string) error {
	if path == "" {
		return exception.ErrEmptyPathUDS
	}
	info, err := os.Lstat(path)
	switch {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		return errors.Wrap(err, "stat socket path").With("path", path)
	case info.Mode()&os.ModeSocket == 0:
		return exception.ErrPathNotSocketUDS
	}
	return os.Remove(path)
}
