package http

import (
	"context"
	"io"
	"net"
	"time"
)

// InputStream exposes the request entity body as a bounded reader. It serves
// bytes from the parse-stage remainder first (data the buffered reader
// already pulled off the wire), then from the transport, and never yields
// more than the declared content length.
//
// The remainder slice is borrowed from the connection's read buffer; it is
// only valid until the next request begins, which is fine because the body
// must be fully consumed or discarded before then.
type InputStream struct {
	rem    []byte
	remOff int

	r        io.Reader
	conn     net.Conn // non-nil when the transport supports deadlines
	deadline time.Time
	length   int64
	pos      int64
}

// bind arms the stream for one request body. rem holds bytes already
// buffered past the header block; deadline is the read deadline the
// connection was under when the request arrived (zero when none).
func (s *InputStream) bind(rem []byte, r io.Reader, conn net.Conn, length int64, deadline time.Time) {
	s.rem = rem
	s.remOff = 0
	s.r = r
	s.conn = conn
	s.deadline = deadline
	s.length = length
	s.pos = 0
}

func (s *InputStream) reset() {
	s.rem = nil
	s.remOff = 0
	s.r = nil
	s.conn = nil
	s.deadline = time.Time{}
	s.length = 0
	s.pos = 0
}

// Length returns the total declared body size.
func (s *InputStream) Length() int64 { return s.length }

// Position returns how many body bytes have been consumed.
func (s *InputStream) Position() int64 { return s.pos }

// Remaining returns how many body bytes are still unread.
func (s *InputStream) Remaining() int64 { return s.length - s.pos }

// Read fills p from the remainder first, then the transport. It returns
// io.EOF once the declared length is exhausted; it never reads past it.
func (s *InputStream) Read(p []byte) (int, error) {
	remaining := s.Remaining()
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	if s.remOff < len(s.rem) {
		n := copy(p, s.rem[s.remOff:])
		s.remOff += n
		s.pos += int64(n)
		return n, nil
	}

	if s.r == nil {
		return 0, io.ErrUnexpectedEOF
	}
	n, err := s.r.Read(p)
	s.pos += int64(n)
	if err == io.EOF && s.Remaining() > 0 {
		// peer closed before delivering the declared length
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

// ReadContext is Read with cancellation. Cancellation is implemented with a
// transport read deadline, so it only takes effect when the stream is bound
// to a net.Conn; remainder reads never block and ignore the context.
func (s *InputStream) ReadContext(ctx context.Context, p []byte) (int, error) {
	if s.remOff < len(s.rem) || s.conn == nil {
		return s.Read(p)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := s.conn.SetReadDeadline(deadline); err != nil {
			return 0, err
		}
		// put the connection's own deadline back so the context override
		// does not outlive this read
		defer s.conn.SetReadDeadline(s.deadline)
	}

	n, err := s.Read(p)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
	}
	return n, err
}

// Discard consumes up to n remaining body bytes without surfacing them,
// returning how many were skipped. Remainder bytes are skipped by offset
// arithmetic; transport bytes are drained through a scratch buffer.
func (s *InputStream) Discard(n int64) (int64, error) {
	if n > s.Remaining() {
		n = s.Remaining()
	}
	var skipped int64

	if s.remOff < len(s.rem) {
		avail := int64(len(s.rem) - s.remOff)
		take := n
		if take > avail {
			take = avail
		}
		s.remOff += int(take)
		s.pos += take
		skipped += take
		n -= take
	}

	if n > 0 {
		buf := make([]byte, DefaultDiscardBufferLen)
		for n > 0 {
			chunk := int64(len(buf))
			if chunk > n {
				chunk = n
			}
			read, err := s.Read(buf[:chunk])
			skipped += int64(read)
			n -= int64(read)
			if err != nil {
				if err == io.EOF {
					err = nil
				}
				return skipped, err
			}
		}
	}
	return skipped, nil
}

// drain discards everything left in the body. Keep-alive depends on this
// running after the handler so the next request starts at a clean boundary.
func (s *InputStream) drain() error {
	_, err := s.Discard(s.Remaining())
	return err
}
