// Package gate accepts terminal connections and runs one access session
// per connection.
package gate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/access"
)

// Config holds listener settings.
type Config struct {
	Address      string        `yaml:"address"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxLineBytes int           `yaml:"max_line_bytes"`
	// AcceptRate is connections per second allowed per remote IP; zero
	// disables limiting.
	AcceptRate  float64 `yaml:"accept_rate"`
	AcceptBurst int     `yaml:"accept_burst"`
}

// DefaultConfig returns the listener defaults.
func DefaultConfig() Config {
	return Config{
		Address:      ":11000",
		IdleTimeout:  2 * time.Minute,
		WriteTimeout: 10 * time.Second,
		MaxLineBytes: 1024,
		AcceptRate:   5,
		AcceptBurst:  10,
	}
}

// SessionHandler runs a session over a line connection.
type SessionHandler interface {
	Serve(ctx context.Context, conn access.Conn, remoteAddr string) access.Outcome
}

// ConnObserver is told about connections the listener accepts or drops.
type ConnObserver interface {
	ConnectionOpened()
	ConnectionClosed()
	ConnectionRejected(reason string)
}

// Server is the TCP front of the gate.
type Server struct {
	cfg      Config
	handler  SessionHandler
	logger   *zap.Logger
	observer ConnObserver
	limiter  *IPRateLimiter

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer constructs a Server. observer may be nil.
func NewServer(cfg Config, handler SessionHandler, logger *zap.Logger, observer ConnObserver) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		handler:  handler,
		logger:   logger,
		observer: observer,
	}
	if cfg.AcceptRate > 0 {
		burst := cfg.AcceptBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = NewIPRateLimiter(rate.Limit(cfg.AcceptRate), burst)
	}
	return s
}

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Addr returns the listening address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections on ln until ctx is cancelled, then waits for
// in-flight sessions to finish. A failing session never stops the loop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.logger.Info("gate listening", zap.String("addr", ln.Addr().String()))

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				s.logger.Warn("accept failed, retrying", zap.Error(err), zap.Duration("backoff", backoff))
				time.Sleep(backoff)
				continue
			}
			s.wg.Wait()
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0

		if !s.admit(conn) {
			continue
		}

		// Sessions outlive shutdown; they end on their own terminal step
		// or idle timeout.
		s.wg.Add(1)
		go s.handle(context.WithoutCancel(ctx), conn)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}

// admit applies the per-IP rate limit; rejected connections are closed
// without a response.
func (s *Server) admit(conn net.Conn) bool {
	if s.limiter == nil {
		return true
	}
	ip := remoteIP(conn.RemoteAddr())
	if s.limiter.Allow(ip) {
		return true
	}
	s.logger.Warn("connection rate limited", zap.String("remote_ip", ip))
	if s.observer != nil {
		s.observer.ConnectionRejected("rate_limited")
	}
	_ = conn.Close()
	return false
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in connection handler",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()

	if s.observer != nil {
		s.observer.ConnectionOpened()
		defer s.observer.ConnectionClosed()
	}

	lc := NewLineConn(conn, s.cfg.IdleTimeout, s.cfg.WriteTimeout, s.cfg.MaxLineBytes)
	s.handler.Serve(ctx, lc, conn.RemoteAddr().String())
}

func remoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
