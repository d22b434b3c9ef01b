package http

import (
	"bytes"
	"io"
	"net/url"
	"strings"
)

const (
	ctURLEncodedForm = "application/x-www-form-urlencoded"
	ctMultipartForm  = "multipart/form-data"
	ctOctetStream    = "application/octet-stream"
)

// parseQueryArgs decodes the query string into req.QueryArgs. Runs for every
// request; later duplicates of a key overwrite earlier ones. Tokens that do
// not unescape cleanly are kept raw rather than dropped.
func parseQueryArgs(req *Request) {
	query := req.Location.Query
	for len(query) > 0 {
		var pair string
		if i := indexByte(query, '&'); i >= 0 {
			pair, query = query[:i], query[i+1:]
		} else {
			pair, query = query, ""
		}
		if pair == "" {
			continue
		}
		name, value := pair, ""
		if i := indexByte(pair, '='); i >= 0 {
			name, value = pair[:i], pair[i+1:]
		}
		req.QueryArgs[unescapeOrRaw(name)] = unescapeOrRaw(value)
	}
}

// decodeEntityBody interprets a bound entity body by content type:
// url-encoded and multipart forms are buffered and decoded into Args and
// Uploads, recognized binary types become a single non-owning upload over
// the input stream, and anything else is left untouched for the handler.
// Returns 0 on success.
func decodeEntityBody(req *Request, cfg *Config) Status {
	if !req.HasEntityBody {
		return 0
	}

	switch {
	case req.ContentType == ctURLEncodedForm:
		body, status := bufferFormBody(req, cfg)
		if status != 0 {
			return status
		}
		decodeURLEncoded(req, body)

	case req.ContentType == ctMultipartForm:
		body, status := bufferFormBody(req, cfg)
		if status != 0 {
			return status
		}
		if !decodeMultipart(req, cfg, body) {
			return StatusBadRequest
		}

	case isBinaryContentType(req.ContentType):
		// the upload aliases the input stream, so it carries no
		// ownership and stays valid only while the request is live
		req.Uploads = append(req.Uploads, FileUpload{
			Stream:      &req.Input,
			ContentType: req.ContentType,
		})
	}
	return 0
}

// bufferFormBody reads the whole entity body through a doubling buffer. The
// form data cap is enforced on the bytes actually read; framing only
// pre-checks multipart bodies against Content-Length.
func bufferFormBody(req *Request, cfg *Config) ([]byte, Status) {
	buf := newGrowBuffer(minInt(int(req.ContentLength), 512))
	limit := cfg.MaxFormDataSize
	for {
		chunk := buf.next(512)
		n, err := req.Input.Read(chunk)
		buf.commit(n)
		if int64(buf.len()) > limit {
			return nil, StatusRequestEntityTooLarge
		}
		if err != nil {
			if err == io.EOF {
				return buf.bytes(), 0
			}
			return nil, StatusBadRequest
		}
	}
}

func decodeURLEncoded(req *Request, body []byte) {
	s := string(body)
	for len(s) > 0 {
		var pair string
		if i := indexByte(s, '&'); i >= 0 {
			pair, s = s[:i], s[i+1:]
		} else {
			pair, s = s, ""
		}
		if pair == "" {
			continue
		}
		name, value := pair, ""
		if i := indexByte(pair, '='); i >= 0 {
			name, value = pair[:i], pair[i+1:]
		}
		req.Args[unescapeOrRaw(name)] = unescapeOrRaw(value)
	}
}

// decodeMultipart splits body on the dash-boundary and routes each part:
// parts with a filename become buffered uploads (capped at MaxUploads, the
// rest are dropped), plain fields land in Args.
func decodeMultipart(req *Request, cfg *Config, body []byte) bool {
	delim := []byte("--" + req.Boundary)

	// everything before the first delimiter is a preamble
	idx := bytes.Index(body, delim)
	if idx < 0 {
		return false
	}
	body = body[idx+len(delim):]

	for {
		// a trailing "--" after the delimiter closes the body
		if bytes.HasPrefix(body, []byte("--")) {
			return true
		}
		body = trimLeadingCRLF(body)

		end := bytes.Index(body, delim)
		if end < 0 {
			return false
		}
		part := body[:end]
		body = body[end+len(delim):]

		// strip the CRLF that precedes the delimiter
		part = bytes.TrimSuffix(part, []byte("\r\n"))
		if !decodePart(req, cfg, part) {
			return false
		}
	}
}

func decodePart(req *Request, cfg *Config, part []byte) bool {
	sep := bytes.Index(part, []byte("\r\n\r\n"))
	if sep < 0 {
		return false
	}
	head, data := part[:sep], part[sep+4:]

	var name, fileName, contentType string
	for _, line := range bytes.Split(head, []byte("\r\n")) {
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		hname := strings.ToLower(string(trimSpace(line[:colon])))
		hvalue := string(trimSpace(line[colon+1:]))
		switch hname {
		case "content-disposition":
			name = dispositionParam(hvalue, "name")
			fileName = dispositionParam(hvalue, "filename")
		case "content-type":
			contentType = hvalue
		}
	}

	if fileName != "" {
		if len(req.Uploads) >= cfg.MaxUploads {
			return true // excess parts are dropped, not an error
		}
		if contentType == "" {
			contentType = ctOctetStream
		}
		req.Uploads = append(req.Uploads, newBufferedUpload(data, contentType, fileName))
		return true
	}

	if name != "" {
		req.Args[name] = string(data)
	}
	return true
}

// dispositionParam extracts a quoted or bare parameter from a
// Content-Disposition value.
func dispositionParam(v, key string) string {
	for len(v) > 0 {
		var param string
		if i := indexByte(v, ';'); i >= 0 {
			param, v = v[:i], v[i+1:]
		} else {
			param, v = v, ""
		}
		param = trimSpaceString(param)
		eq := indexByte(param, '=')
		if eq < 0 {
			continue
		}
		if !equalFoldString(param[:eq], key) {
			continue
		}
		return strings.Trim(param[eq+1:], `"`)
	}
	return ""
}

// isBinaryContentType reports whether a body should surface as an opaque
// upload instead of being form-decoded.
func isBinaryContentType(ct string) bool {
	switch {
	case ct == ctOctetStream:
		return true
	case strings.HasPrefix(ct, "image/"),
		strings.HasPrefix(ct, "audio/"),
		strings.HasPrefix(ct, "video/"):
		return true
	case ct == "application/pdf", ct == "application/zip", ct == "application/gzip":
		return true
	}
	return false
}

func unescapeOrRaw(s string) string {
	if out, err := url.QueryUnescape(s); err == nil {
		return out
	}
	return s
}

func trimLeadingCRLF(b []byte) []byte {
	for len(b) > 0 && (b[0] == '\r' || b[0] == '\n') {
		b = b[1:]
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// growBuffer is an append-style byte accumulator that doubles capacity as
// form bodies stream in, avoiding a full-size allocation up front.
type growBuffer struct {
	buf []byte
}

func newGrowBuffer(hint int) *growBuffer {
	if hint < 64 {
		hint = 64
	}
	return &growBuffer{buf: make([]byte, 0, hint)}
}

// next returns a writable slice of at least n free bytes past the current
// length, growing the backing array when needed.
func (g *growBuffer) next(n int) []byte {
	if cap(g.buf)-len(g.buf) < n {
		grown := make([]byte, len(g.buf), 2*cap(g.buf)+n)
		copy(grown, g.buf)
		g.buf = grown
	}
	return g.buf[len(g.buf) : len(g.buf)+n]
}

// commit marks n bytes of the slice returned by next as written.
func (g *growBuffer) commit(n int) {
	g.buf = g.buf[:len(g.buf)+n]
}

func (g *growBuffer) len() int      { return len(g.buf) }
func (g *growBuffer) bytes() []byte { return g.buf }
