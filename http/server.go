package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const otelScope = "github.com/stratumweb/stratum/http"

var tracer = otel.Tracer(otelScope)

// Server accepts connections and runs the request pipeline on each: parse,
// frame, decode, hand to the Handler, then complete the response. One
// goroutine per connection; requests on a connection are strictly
// sequential, so response N is fully flushed before request N+1 is read.
type Server struct {
	cfg        Config
	handler    Handler
	logger     *slog.Logger
	compressor CompressorManager

	pool *ctxPool

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	active   sync.WaitGroup

	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// NewServer validates cfg and builds a server around handler.
func NewServer(cfg Config, handler Handler) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, errors.New("http: nil handler")
	}
	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  slog.Default(),
	}

	var err error
	meter := otel.Meter(otelScope)
	s.requestCount, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("Requests served"))
	if err != nil {
		return nil, err
	}
	s.requestDuration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Request duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return s, nil
}

// SetLogger replaces the default logger. Must run before Serve.
func (s *Server) SetLogger(logger *slog.Logger) { s.logger = logger }

// SetCompressor installs the compression backend. Must run before Serve.
func (s *Server) SetCompressor(mgr CompressorManager) { s.compressor = mgr }

// ListenAndServe binds the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := listen(ctx, "tcp", s.cfg.Addr, s.cfg.ReusePort)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve runs the accept loop on listener. Cancelling ctx closes the
// listener and makes Serve return nil; the cancellation is expected, not an
// error. In-flight connections finish their current request on their own.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return net.ErrClosed
	}
	s.listener = listener
	if s.pool == nil {
		s.pool = newCtxPool(s)
	}
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	s.logger.Info("server listening", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Warn("accept timeout", "error", err)
				continue
			}
			return err
		}

		connectionsTotal.Inc()
		connectionsActive.Inc()
		s.active.Add(1)
		go func() {
			defer s.active.Done()
			defer connectionsActive.Dec()
			s.serveConn(ctx, conn)
		}()
	}
}

// Shutdown closes the listener and waits for in-flight connections, up to
// ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	l := s.listener
	s.mu.Unlock()
	if l != nil {
		l.Close()
	}

	done := make(chan struct{})
	go func() {
		s.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serveConn runs the keep-alive request loop for one connection.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	reqCtx := s.pool.acquire(s)
	reqCtx.bind(ctx, conn)
	defer func() {
		reqCtx.OnRelease()
		s.pool.release(reqCtx)
	}()

	logger := s.logger.With("conn_id", reqCtx.ConnID.String(), "remote", conn.RemoteAddr().String())
	logger.Debug("connection accepted")

	for {
		var readDeadline time.Time
		if s.cfg.ReadTimeout > 0 {
			readDeadline = time.Now().Add(s.cfg.ReadTimeout)
			conn.SetReadDeadline(readDeadline)
		}

		reqCtx.OnNewRequest()
		start := time.Now()

		status := s.readRequest(reqCtx, conn, readDeadline)
		if status == StatusEmptyRequest {
			// nothing arrived, or the peer went away between requests
			logger.Debug("connection closed without request")
			return
		}

		reqCtx.Response.setVersion(reqCtx.Request.Version)

		if status != 0 {
			observeParseFailure(status)
			logger.Debug("request rejected", "status", int(status))
			s.writeErrorResponse(reqCtx, status)
			reqCtx.OnComplete()
			return
		}

		if s.cfg.WriteTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}

		if reqCtx.Request.KeepAlive {
			reqCtx.Response.Header("connection", "keep-alive")
		} else {
			reqCtx.Response.Header("connection", "close")
		}

		spanCtx, span := tracer.Start(ctx, "http.request", trace.WithAttributes(
			attribute.String("http.method", reqCtx.Request.Method.String()),
			attribute.String("http.target", reqCtx.Request.Location.Path),
		))
		reqCtx.ctx = spanCtx

		s.handler(reqCtx)

		span.SetAttributes(attribute.Int("http.status_code", int(reqCtx.Response.StatusCode())))
		span.End()
		reqCtx.ctx = ctx

		if err := reqCtx.Response.Close(); err != nil {
			logError(logger, "response write failed", err)
			reqCtx.OnComplete()
			return
		}

		// a body that failed mid-stream, came up short, or never wrote its
		// terminal chunk leaves the peer mid-frame; the connection cannot
		// carry another request
		bodyOK := reqCtx.Response.bodyCompleted()
		if !bodyOK {
			logger.Debug("response body incomplete, closing connection")
		}

		observeRequest(reqCtx.Request.Method, reqCtx.Response.StatusCode(), start)
		attrs := metric.WithAttributes(
			attribute.String("http.method", reqCtx.Request.Method.String()),
			attribute.Int("http.status_code", int(reqCtx.Response.StatusCode())),
		)
		s.requestCount.Add(ctx, 1, attrs)
		s.requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)

		logger.Debug("request served",
			"method", reqCtx.Request.Method.String(),
			"path", reqCtx.Request.Location.Path,
			"status", int(reqCtx.Response.StatusCode()),
			"duration", time.Since(start),
		)

		// leftover body bytes must be consumed so the next request
		// starts on a clean framing boundary
		if bodyOK && reqCtx.Request.HasEntityBody {
			if err := reqCtx.Request.Input.drain(); err != nil {
				logError(logger, "body drain failed", err)
				reqCtx.OnComplete()
				return
			}
		}

		keepAlive := reqCtx.Request.KeepAlive && bodyOK
		reqCtx.OnComplete()

		if !keepAlive || ctx.Err() != nil {
			return
		}
		if s.cfg.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
	}
}

// readRequest runs the parse pipeline for one request: request line,
// headers, body framing, query args, body decoding, and the 100-continue
// interim response when the client asked for one.
func (s *Server) readRequest(c *RequestCtx, conn net.Conn, readDeadline time.Time) Status {
	if status := parseRequestLine(&c.ConnReader, c.lineBuf, &c.Request); status != 0 {
		return status
	}
	if status := parseHeaders(&c.ConnReader, c.lineBuf, &c.Request, &s.cfg); status != 0 {
		return status
	}
	if status := prepareEntityBody(&c.Request, &s.cfg, &c.ConnReader, conn, readDeadline); status != 0 {
		return status
	}

	parseQueryArgs(&c.Request)

	if c.Request.Expect && c.Request.HasEntityBody {
		if _, err := conn.Write(continueLine); err != nil {
			return StatusEmptyRequest
		}
	}

	return decodeEntityBody(&c.Request, &s.cfg)
}

// writeErrorResponse answers a rejected request with a bare status and
// closes the connection. Best effort; the peer may already be gone.
func (s *Server) writeErrorResponse(c *RequestCtx, status Status) {
	c.Response.SetStatusCode(status)
	c.Response.Header("connection", "close")
	c.Response.Close()
}

// logError classifies transport failures: expected socket teardown noise
// logs at debug, everything else at error.
func logError(logger *slog.Logger, msg string, err error) {
	if isExpectedNetError(err) {
		logger.Debug(msg, "error", err)
		return
	}
	logger.Error(msg, "error", err)
}

func isExpectedNetError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
