package http

import (
	"bufio"
	"context"
	"net"

	"github.com/stratumweb/stratum/uuid"
)

// RequestCtx is the per-connection context: one Request/Response pair plus
// the buffered transport, reused for every request the connection carries.
// Contexts come from the server pool; OnRelease returns them clean.
type RequestCtx struct {
	Conn       net.Conn
	ConnReader bufio.Reader
	ConnWriter bufio.Writer

	Request  Request
	Response Response

	// ConnID tags log lines so one connection's requests correlate.
	ConnID uuid.UUID

	// lineBuf is the shared request-line and header-line parse buffer.
	lineBuf []byte

	compressor *responseCompressor
	srv        *Server
	ctx        context.Context

	// UserValues lets handlers stash per-request data without their own
	// synchronization. Cleared on request completion.
	UserValues map[string]any
}

func (c *RequestCtx) init(srv *Server) {
	c.srv = srv
	c.ConnReader = *bufio.NewReaderSize(nil, srv.cfg.ReadBufferSize)
	c.ConnWriter = *bufio.NewWriterSize(nil, srv.cfg.WriteBufferSize)
	c.lineBuf = make([]byte, srv.cfg.HeaderBufferSize)
	c.Response.init(&c.ConnWriter, srv.cfg.HeaderBufferSize, srv.cfg.ChunkBufferSize)
	if srv.compressor != nil {
		c.compressor = newResponseCompressor(srv.compressor)
	}
	c.UserValues = make(map[string]any)
}

// bind attaches the context to a freshly accepted connection.
func (c *RequestCtx) bind(ctx context.Context, conn net.Conn) {
	c.Conn = conn
	c.ctx = ctx
	c.ConnReader.Reset(conn)
	c.ConnWriter.Reset(conn)
	c.ConnID = uuid.NewV4()
}

// OnNewRequest resets request-scoped state before parsing begins.
func (c *RequestCtx) OnNewRequest() {
	c.Request.OnNewRequest()
	c.Response.OnNewRequest(Version11)
}

// OnComplete clears request-scoped references after the response is done.
func (c *RequestCtx) OnComplete() {
	c.Request.OnComplete()
	clear(c.UserValues)
}

// OnRelease detaches from the connection and frees connection-scoped
// compressor memory before the context returns to the pool.
func (c *RequestCtx) OnRelease() {
	if c.compressor != nil {
		c.compressor.release()
	}
	c.Conn = nil
	c.ctx = nil
	c.ConnReader.Reset(nil)
	c.ConnWriter.Reset(nil)
}

// Context returns the server's lifetime context for use in handlers.
func (c *RequestCtx) Context() context.Context {
	if c.ctx != nil {
		return c.ctx
	}
	return context.Background()
}

// SetStatus stages the response status code.
func (c *RequestCtx) SetStatus(status Status) {
	c.Response.SetStatusCode(status)
}

// WriteString sends body as a fixed-length response, negotiating
// compression when the payload clears the configured threshold.
func (c *RequestCtx) WriteString(contentType, body string) error {
	return c.WriteBody(contentType, []byte(body))
}

// WriteBody sends a complete fixed-length body. When the client and server
// share a compression method and the payload is large enough, the body goes
// out chunked and compressed instead.
func (c *RequestCtx) WriteBody(contentType string, body []byte) error {
	if contentType != "" {
		if err := c.Response.Header("content-type", contentType); err != nil {
			return err
		}
	}

	if method := c.negotiateCompression(int64(len(body))); method != CompressionNone {
		return c.writeCompressed(method, body)
	}

	stream, err := c.Response.GetStream(int64(len(body)))
	if err != nil {
		return err
	}
	if _, err := stream.Write(body); err != nil {
		return err
	}
	return stream.Close()
}

// BodyWriter finalizes headers and returns the raw fixed-length writer for
// handlers that stream their own payloads.
func (c *RequestCtx) BodyWriter(contentLength int64) (*directWriter, error) {
	return c.Response.GetStream(contentLength)
}

// ChunkedWriter finalizes headers and returns the chunked writer.
func (c *RequestCtx) ChunkedWriter() (*chunkedWriter, error) {
	return c.Response.GetStreamChunked()
}

// negotiateCompression picks the response encoding, or none when disabled,
// unsupported by the client, or not worth it for a small known length.
func (c *RequestCtx) negotiateCompression(length int64) CompressionMethod {
	if c.compressor == nil || c.srv.cfg.CompressionMethods == CompressionNone {
		return CompressionNone
	}
	if length >= 0 && length < int64(c.srv.cfg.MinCompressSize) {
		return CompressionNone
	}
	supported := c.srv.cfg.CompressionMethods & c.srv.compressor.SupportedMethods()
	return c.Request.CompressionSupport(supported)
}

// writeCompressed sends body through the compressor over chunked framing.
// The compressed length is unknown up front so chunked is the only legal
// framing; on HTTP/1.0 negotiation never gets here because chunked is
// rejected and the caller falls back to identity.
func (c *RequestCtx) writeCompressed(method CompressionMethod, body []byte) error {
	if c.Request.Version != Version11 {
		stream, err := c.Response.GetStream(int64(len(body)))
		if err != nil {
			return err
		}
		if _, err := stream.Write(body); err != nil {
			return err
		}
		return stream.Close()
	}

	if err := c.compressor.init(method, c.srv.cfg.CompressionLevel); err != nil {
		// compressor failure degrades to identity, not a 500
		c.srv.logger.Warn("compressor init failed", "error", err, "conn_id", c.ConnID.String())
		stream, err := c.Response.GetStream(int64(len(body)))
		if err != nil {
			return err
		}
		if _, err := stream.Write(body); err != nil {
			return err
		}
		return stream.Close()
	}

	c.Response.Header("content-encoding", method.String())
	sink, err := c.Response.GetStreamChunked()
	if err != nil {
		c.compressor.deinit()
		return err
	}

	cw := newCompressingWriter(c.compressor, sink)
	if _, err := cw.Write(body); err != nil {
		cw.Close()
		return err
	}
	return cw.Close()
}
