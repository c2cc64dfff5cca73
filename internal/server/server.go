package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhdewitt/formserver/internal/metrics"
	"github.com/nhdewitt/formserver/internal/pool"
	"github.com/nhdewitt/formserver/internal/request"
	"github.com/nhdewitt/formserver/internal/response"
)

const (
	DefaultPoolSize = 64

	// lingerTimeout bounds how long unread request bytes are drained after
	// the response, so closing does not reset the connection under the
	// client before it reads the reply.
	lingerTimeout  = 500 * time.Millisecond
	maxLingerBytes = 256 << 10
)

type Config struct {
	Port     int
	PoolSize int
	// ReadTimeout and WriteTimeout are applied as deadlines on each
	// connection; zero means none.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Decoder      request.Decoder
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

type Server struct {
	listener    net.Listener
	isListening atomic.Bool
	router      *Router
	pool        *pool.Pool
	cfg         Config
	logger      *zap.Logger
	metrics     *metrics.Metrics

	done chan struct{}
	err  error
}

// Serve binds cfg.Port and starts accepting connections in the background.
func Serve(cfg Config, router *Router, opts ...Option) (*Server, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, err
	}
	return ServeListener(listener, cfg, router, opts...), nil
}

// ServeListener accepts connections from an existing listener.
func ServeListener(listener net.Listener, cfg Config, router *Router, opts ...Option) *Server {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	s := &Server{
		listener: listener,
		router:   router,
		cfg:      cfg,
		logger:   zap.NewNop(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pool = pool.New(cfg.PoolSize, pool.WithPanicHandler(s.connectionPanicked))
	s.metrics.TrackQueue(s.pool.Queued)

	s.isListening.Store(true)
	go s.listen()

	return s
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close stops accepting, then waits for queued and running connections to
// finish.
func (s *Server) Close() error {
	if !s.isListening.CompareAndSwap(true, false) {
		return nil
	}

	err := s.listener.Close()
	<-s.done
	s.pool.Close()
	return err
}

// Wait blocks until the accept loop ends and returns the listener failure
// that ended it, or nil after Close.
func (s *Server) Wait() error {
	<-s.done
	return s.err
}

// Done is closed when the accept loop ends.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) listen() {
	defer close(s.done)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.isListening.Load() {
				return
			}
			s.logger.Error("accept failed, stopping listener", zap.Error(err))
			s.err = fmt.Errorf("accepting connection: %w", err)
			return
		}

		s.metrics.ConnectionAccepted()
		if err := s.pool.Submit(func() { s.handle(conn) }); err != nil {
			conn.Close()
		}
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	start := time.Now()
	s.metrics.ConnectionStarted()
	defer s.metrics.ConnectionFinished()

	log := s.logger.With(
		zap.String("conn", uuid.NewString()),
		zap.Stringer("remote", conn.RemoteAddr()),
	)

	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(start.Add(s.cfg.ReadTimeout))
	}

	bw := bufio.NewWriter(conn)
	w := response.NewWriter(bw)
	defer func() {
		if err := w.Flush(); err != nil {
			log.Debug("flushing response", zap.Error(err))
			return
		}
		lingeringClose(conn)
	}()

	req, err := s.cfg.Decoder.Decode(conn)
	if s.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	if err != nil {
		kind := decodeErrorKind(err)
		s.metrics.DecodeFailed(kind)
		log.Debug("request decoding failed", zap.String("kind", kind), zap.Error(err))
		if kind != "io" {
			_ = w.WriteError(response.StatusBadRequest)
			s.metrics.RequestServed("invalid", w.Status(), time.Since(start))
		}
		return
	}

	log = log.With(zap.String("method", req.RequestLine.Method), zap.String("path", req.Path))
	if err := s.router.Dispatch(w, req); err != nil {
		log.Error("handler failed", zap.Error(err))
	}
	s.metrics.RequestServed(s.router.MethodLabel(req.RequestLine.Method), w.Status(), time.Since(start))
	log.Debug("request served", zap.Int("status", int(w.Status())), zap.Int64("bytes", w.Written()))
}

// connectionPanicked logs a panic that escaped a connection task. The
// connection itself is closed by the task's deferred cleanup.
func (s *Server) connectionPanicked(v any) {
	s.logger.Error("connection task panicked", zap.Any("panic", v), zap.Stack("stack"))
}

func decodeErrorKind(err error) string {
	switch {
	case errors.Is(err, request.ErrHeaderTooLarge):
		return "header_too_large"
	case errors.Is(err, request.ErrBodyTooLarge):
		return "body_too_large"
	case errors.Is(err, request.ErrMalformedRequest):
		return "malformed"
	default:
		return "io"
	}
}

// lingeringClose half-closes conn and discards whatever the client still
// sends, up to a limit.
func lingeringClose(conn net.Conn) {
	cw, ok := conn.(interface{ CloseWrite() error })
	if !ok {
		return
	}
	if err := cw.CloseWrite(); err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, maxLingerBytes))
}
