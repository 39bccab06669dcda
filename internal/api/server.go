// Package api is the localhost automation interface over the history. It
// parses requests by hand on a raw TCP socket: one request per connection,
// no keep-alive.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/berrythewa/clipkeep/internal/apierror"
	"github.com/berrythewa/clipkeep/internal/authgate"
	"github.com/berrythewa/clipkeep/internal/history"
	"github.com/berrythewa/clipkeep/internal/platform"
	"github.com/berrythewa/clipkeep/internal/types"
)

const (
	// Host is the only interface the server binds to.
	Host = "127.0.0.1"

	DefaultPort           = 7845
	DefaultReadTimeout    = 30 * time.Second
	DefaultMaxConnections = 16
)

// State is the server lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	default:
		return "stopped"
	}
}

// TokenVerifier checks bearer tokens.
type TokenVerifier interface {
	Verify(token string) bool
}

// ClipboardWatcher is the capture side seen by the API: it is told about
// clipboard writes made on behalf of a client and reports its status.
type ClipboardWatcher interface {
	SyncBaseline()
	Status() types.MonitoringStatus
	Incognito() bool
}

// ServerConfig configures a Server. Recorder and Tokens are required.
type ServerConfig struct {
	Enabled             bool
	Port                int
	ReadTimeout         time.Duration
	MaxConnections      int
	SensitiveProtection bool

	Recorder  *history.Recorder
	Tokens    TokenVerifier
	Gate      *authgate.Gate
	Clipboard platform.Clipboard
	Paster    platform.Paster
	Watcher   ClipboardWatcher
	Clock     clock.Clock
	Logger    *zap.Logger
}

type Server struct {
	cfg    ServerConfig
	clock  clock.Clock
	logger *zap.Logger
	router *router

	mu       sync.Mutex
	state    State
	listener net.Listener
	conns    map[net.Conn]struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Server{
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: cfg.Logger,
		conns:  make(map[net.Conn]struct{}),
	}
	s.router = s.routes()
	return s
}

// Start binds the loopback listener and begins accepting. It is a no-op
// when the server is disabled or already running. A bind failure leaves the
// server stopped and is returned.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		s.logger.Info("Automation API disabled")
		return nil
	}
	if s.state != StateStopped {
		return nil
	}
	s.state = StateStarting

	addr := net.JoinHostPort(Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.state = StateStopped
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.listener = ln
	s.cancel = cancel
	s.state = StateRunning

	s.wg.Add(1)
	go s.acceptLoop(ctx, ln)

	s.logger.Info("Automation API listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Stop closes the listener and every in-flight connection and waits for
// their goroutines. It is safe to call in any state.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.cancel()
	s.listener.Close()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Automation API stopped")
}

// State returns the lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound address, or "" when not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.state != StateRunning {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	defer s.wg.Done()

	slots := semaphore.NewWeighted(int64(s.cfg.MaxConnections))
	for {
		if err := slots.Acquire(ctx, 1); err != nil {
			return
		}

		conn, err := ln.Accept()
		if err != nil {
			slots.Release(1)
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("Accept failed", zap.Error(err))
			continue
		}

		if !s.track(conn) {
			conn.Close()
			slots.Release(1)
			return
		}

		go func() {
			defer s.wg.Done()
			defer slots.Release(1)
			defer s.untrack(conn)
			s.serve(conn)
		}()
	}
}

// track registers conn unless the server is stopping. The caller owns the
// matching wg.Done.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

// serve handles exactly one request on conn.
func (s *Server) serve(conn net.Conn) {
	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
		return
	}

	resp := s.handle(conn)
	if resp == nil {
		return
	}

	conn.SetWriteDeadline(time.Now().Add(s.cfg.ReadTimeout))
	if _, err := resp.WriteTo(conn); err != nil {
		s.logger.Debug("Failed to write response", zap.Error(err))
	}
}

// handle reads, authenticates, routes and dispatches. A nil response means
// the connection is dropped without a reply.
func (s *Server) handle(conn net.Conn) *Response {
	req, err := readRequest(conn)
	switch {
	case errors.Is(err, errTooLarge):
		return errorResponse(apierror.BadRequest("request too large"))
	case errors.Is(err, errMalformed):
		return errorResponse(apierror.BadRequest("malformed request"))
	case err != nil:
		s.logger.Debug("Connection dropped before a full request", zap.Error(err))
		return nil
	}

	if s.cfg.Tokens == nil || !s.cfg.Tokens.Verify(req.BearerToken()) {
		return errorResponse(apierror.ErrUnauthorized)
	}

	h, params, err := s.router.lookup(req.Method, req.Path)
	if err != nil {
		return errorResponse(apierror.Public(err))
	}
	req.Params = params

	resp, err := h(req)
	if err != nil {
		if apierror.StatusCode(err) >= 500 {
			s.logger.Error("Request failed",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.Error(err))
		}
		return errorResponse(apierror.Public(err))
	}

	s.logger.Debug("Request served",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", resp.Status))
	return resp
}
