package http

import (
	"bufio"
	"errors"
	"strconv"
)

var (
	// ErrHeadersSent is returned for any header mutation after the final
	// header flush.
	ErrHeadersSent = errors.New("http: headers already sent")

	// ErrStatusSet is returned when SetStatusCode runs after the first
	// header flush already emitted the status line.
	ErrStatusSet = errors.New("http: status line already written")
)

type responseState uint8

const (
	responseNoHeaders responseState = iota
	responseHeadersBegun
	responseHeadersSent
)

type bodyKind uint8

const (
	bodyNone bodyKind = iota
	bodyDirect
	bodyChunked
)

// Response accumulates the status line, headers and cookies for one request
// and hands out exactly one body writer. Like the request it is pooled and
// reused across keep-alive requests on a connection.
type Response struct {
	bw      *bufio.Writer
	version Version

	status  Status
	headers Headers
	cookies []Cookie

	state responseState
	body  bodyKind
	acc   headerAccumulator

	chunkSize int
	direct    directWriter
	chunked   chunkedWriter
}

func (r *Response) init(bw *bufio.Writer, headerBufSize, chunkSize int) {
	r.bw = bw
	r.chunkSize = chunkSize
	r.acc.init(headerBufSize)
}

// OnNewRequest resets the response for the next request on the connection.
func (r *Response) OnNewRequest(version Version) {
	r.version = version
	r.status = StatusOK
	r.headers.Reset()
	r.cookies = r.cookies[:0]
	r.state = responseNoHeaders
	r.body = bodyNone
	r.acc.reset()
	r.direct.reset()
	r.chunked.reset()
}

// setVersion pins the negotiated protocol version once the request line has
// been parsed. Chunked framing checks against it.
func (r *Response) setVersion(v Version) {
	r.version = v
}

// SetStatusCode stages the response status. Only legal before any headers
// have been flushed.
func (r *Response) SetStatusCode(status Status) error {
	if r.state != responseNoHeaders {
		return ErrStatusSet
	}
	r.status = status
	return nil
}

// StatusCode returns the staged status.
func (r *Response) StatusCode() Status { return r.status }

// Header sets a response header, replacing earlier values.
func (r *Response) Header(name, value string) error {
	if r.state == responseHeadersSent {
		return ErrHeadersSent
	}
	r.headers.Set(name, value)
	return nil
}

// AddHeader appends a response header, keeping earlier values.
func (r *Response) AddHeader(name, value string) error {
	if r.state == responseHeadersSent {
		return ErrHeadersSent
	}
	r.headers.Add(name, value)
	return nil
}

// SetCookie queues a Set-Cookie header for the next flush.
func (r *Response) SetCookie(c Cookie) error {
	if r.state == responseHeadersSent {
		return ErrHeadersSent
	}
	r.cookies = append(r.cookies, c)
	return nil
}

// FlushHeaders emits queued headers. The first call writes the status line
// and Date header; repeated calls emit incrementally. The header block is
// not terminated until a body writer is requested or Close runs.
func (r *Response) FlushHeaders() error {
	if r.state == responseHeadersSent {
		return ErrHeadersSent
	}

	if r.state == responseNoHeaders {
		r.acc.append(statusLineHTTP)
		r.acc.appendString(strconv.Itoa(int(r.status)))
		r.acc.appendByte(' ')
		r.acc.appendString(StatusText(r.status))
		r.acc.append(crlf)

		r.acc.appendString("Date")
		r.acc.append(headerSep)
		r.acc.appendString(cachedDate())
		r.acc.append(crlf)

		r.state = responseHeadersBegun
	}

	r.headers.Visit(func(name, value string) {
		r.acc.appendString(canonicalHeaderName(name))
		r.acc.append(headerSep)
		r.acc.appendString(value)
		r.acc.append(crlf)
	})
	r.headers.Reset()

	for i := range r.cookies {
		r.acc.appendString("Set-Cookie")
		r.acc.append(headerSep)
		r.acc.appendString(r.cookies[i].String())
		r.acc.append(crlf)
	}
	r.cookies = r.cookies[:0]

	return r.acc.flushTo(r.bw)
}

// endHeaders performs the final flush and writes the terminating blank line.
func (r *Response) endHeaders() error {
	if err := r.FlushHeaders(); err != nil {
		return err
	}
	r.state = responseHeadersSent
	_, err := r.bw.Write(crlf)
	return err
}

// GetStream finalizes headers with a fixed Content-Length and returns the
// direct body writer.
func (r *Response) GetStream(contentLength int64) (*directWriter, error) {
	if r.state == responseHeadersSent {
		return nil, ErrHeadersSent
	}
	r.headers.Set("content-length", strconv.FormatInt(contentLength, 10))
	if err := r.endHeaders(); err != nil {
		return nil, err
	}
	r.direct.bind(r.bw, contentLength)
	r.body = bodyDirect
	return &r.direct, nil
}

// GetStreamChunked finalizes headers with chunked transfer coding and
// returns the chunked body writer. HTTP/1.1 only.
func (r *Response) GetStreamChunked() (*chunkedWriter, error) {
	if r.version != Version11 {
		return nil, errors.New("http: chunked responses require HTTP/1.1")
	}
	if r.state == responseHeadersSent {
		return nil, ErrHeadersSent
	}
	r.headers.Set("transfer-encoding", "chunked")
	if err := r.endHeaders(); err != nil {
		return nil, err
	}
	r.chunked.bind(r.bw, r.chunkSize)
	r.body = bodyChunked
	return &r.chunked, nil
}

// Close completes the response when no body writer was taken. A 2xx status
// other than 204 gets a synthesized Content-Length of zero so the client
// does not wait for a body. Safe to call when headers already went out.
func (r *Response) Close() error {
	if r.state == responseHeadersSent {
		return r.bw.Flush()
	}
	if r.status >= 200 && r.status < 300 && r.status != StatusNoContent {
		r.headers.Set("content-length", "0")
	}
	if err := r.endHeaders(); err != nil {
		return err
	}
	return r.bw.Flush()
}

// bodyCompleted reports whether the response body reached the peer whole: a
// fixed-length body delivered every declared byte, a chunked body wrote its
// terminal chunk. A failed, short or unterminated body leaves the peer
// mid-frame and the connection cannot carry another request.
func (r *Response) bodyCompleted() bool {
	switch r.body {
	case bodyDirect:
		// transport errors surface through the buffered writer's flush,
		// which Close already treats as fatal
		return r.direct.remaining == 0
	case bodyChunked:
		return !r.chunked.failed && r.chunked.closed
	}
	return true
}

// headerAccumulator is the append-only staging buffer for the header block.
// It writes into a fixed buffer and spills to an allocated overflow slice
// only when a header block outgrows it.
type headerAccumulator struct {
	fixed []byte
	spill []byte // nil until the fixed buffer overflows
}

func (a *headerAccumulator) init(size int) {
	a.fixed = make([]byte, 0, size)
	a.spill = nil
}

func (a *headerAccumulator) reset() {
	a.fixed = a.fixed[:0]
	a.spill = nil
}

func (a *headerAccumulator) append(b []byte) {
	if a.spill != nil {
		a.spill = append(a.spill, b...)
		return
	}
	if len(a.fixed)+len(b) <= cap(a.fixed) {
		a.fixed = append(a.fixed, b...)
		return
	}
	a.spill = append(append(a.spill, a.fixed...), b...)
	a.fixed = a.fixed[:0]
}

func (a *headerAccumulator) appendString(s string) {
	if a.spill != nil {
		a.spill = append(a.spill, s...)
		return
	}
	if len(a.fixed)+len(s) <= cap(a.fixed) {
		a.fixed = append(a.fixed, s...)
		return
	}
	a.spill = append(append(a.spill, a.fixed...), s...)
	a.fixed = a.fixed[:0]
}

func (a *headerAccumulator) appendByte(c byte) {
	if a.spill != nil {
		a.spill = append(a.spill, c)
		return
	}
	if len(a.fixed) < cap(a.fixed) {
		a.fixed = append(a.fixed, c)
		return
	}
	a.spill = append(append(a.spill, a.fixed...), c)
	a.fixed = a.fixed[:0]
}

func (a *headerAccumulator) flushTo(bw *bufio.Writer) error {
	if len(a.fixed) > 0 {
		if _, err := bw.Write(a.fixed); err != nil {
			return err
		}
	}
	if len(a.spill) > 0 {
		if _, err := bw.Write(a.spill); err != nil {
			return err
		}
	}
	a.reset()
	return nil
}

// canonicalHeaderName restores Header-Case for the wire from the lowercase
// storage form.
func canonicalHeaderName(name string) string {
	b := []byte(name)
	upper := true
	for i := 0; i < len(b); i++ {
		c := b[i]
		if upper && c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
		upper = c == '-'
	}
	return string(b)
}
