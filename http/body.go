package http

import (
	"bufio"
	"net"
	"time"
)

// prepareEntityBody applies the framing rules after the header block: it
// decides whether a body exists, enforces the anti-smuggling constraints,
// and binds the input stream over the buffered remainder plus the transport.
// deadline is the read deadline the connection is currently under, so body
// reads can restore it after context-scoped overrides. Returns 0 on success.
func prepareEntityBody(req *Request, cfg *Config, br *bufio.Reader, conn net.Conn, deadline time.Time) Status {
	if req.chunkedTransfer {
		if req.Version != Version11 {
			return StatusBadRequest
		}
		if req.ContentLength >= 0 {
			// chunked plus Content-Length is a smuggling vector
			return StatusBadRequest
		}
		// incoming chunked bodies are not decoded
		return StatusNotImplemented
	}

	if req.ContentLength <= 0 {
		return 0
	}

	if req.Method&methodsWithoutBody != 0 {
		return StatusBadRequest
	}

	// only multipart gets the up-front cap; url-encoded bodies are bounded
	// while the decoder buffers them
	if req.ContentType == ctMultipartForm && req.ContentLength > cfg.MaxFormDataSize {
		return StatusRequestEntityTooLarge
	}

	// hand the bytes the line reader already buffered to the input stream,
	// then let it continue on the raw transport
	rem, _ := br.Peek(br.Buffered())
	if int64(len(rem)) > req.ContentLength {
		// pipelined bytes past the body stay in the reader
		rem = rem[:req.ContentLength]
	}
	br.Discard(len(rem))

	req.Input.bind(rem, conn, conn, req.ContentLength, deadline)
	req.HasEntityBody = true
	return 0
}
