package http

import (
	"net/url"
)

// Location is the resolved request target: scheme and host come from an
// absolute-form target or the Host header, path and query from the target.
type Location struct {
	Scheme string
	Host   string
	Port   int
	Path   string
	Query  string
}

func (l *Location) reset() {
	*l = Location{}
}

// RangeRequest is a parsed "Range: bytes=start-end" header. End is -1 for
// an open-ended range ("bytes=start-").
type RangeRequest struct {
	Start int64
	End   int64
}

// Request is the per-connection, reusable request model. Its fields are only
// meaningful between OnNewRequest and OnComplete; OnComplete clears every
// reference-typed field so pooled reuse cannot retain a previous request's
// memory.
type Request struct {
	Method  Method
	Version Version

	Location Location
	Headers  Headers
	Cookies  map[string]string

	Accept         []string
	AcceptLanguage []string

	ContentType string
	Charset     string
	Boundary    string

	ContentLength int64

	Range    RangeRequest
	HasRange bool

	KeepAlive bool
	Expect    bool

	UserAgent string
	Origin    *url.URL
	Referrer  *url.URL

	// AbsoluteURI is set when the request line carried an absolute-form
	// target; the Host header must then agree with its host.
	AbsoluteURI *url.URL

	chunkedTransfer bool
	upgradeHeader   string

	HasEntityBody bool
	Input         InputStream

	QueryArgs map[string]string
	Args      map[string]string
	Uploads   []FileUpload
}

// OnNewRequest resets every per-request field so the structure can parse the
// next request on a kept-alive connection.
func (r *Request) OnNewRequest() {
	r.Method = MethodNone
	r.Version = VersionUnsupported
	r.Location.reset()
	r.Headers.Reset()
	r.ContentType = ""
	r.Charset = ""
	r.Boundary = ""
	r.ContentLength = -1
	r.Range = RangeRequest{}
	r.HasRange = false
	r.KeepAlive = false
	r.Expect = false
	r.UserAgent = ""
	r.chunkedTransfer = false
	r.upgradeHeader = ""
	r.HasEntityBody = false
	r.Input.reset()

	if r.Cookies == nil {
		r.Cookies = make(map[string]string)
	} else {
		clear(r.Cookies)
	}
	if r.QueryArgs == nil {
		r.QueryArgs = make(map[string]string)
	} else {
		clear(r.QueryArgs)
	}
	if r.Args == nil {
		r.Args = make(map[string]string)
	} else {
		clear(r.Args)
	}
	r.Accept = r.Accept[:0]
	r.AcceptLanguage = r.AcceptLanguage[:0]
	r.Uploads = r.Uploads[:0]
	r.Origin = nil
	r.Referrer = nil
	r.AbsoluteURI = nil
}

// OnComplete disposes owned uploads and drops every reference so nothing
// leaks across pooled reuse.
func (r *Request) OnComplete() {
	for i := range r.Uploads {
		r.Uploads[i].dispose()
		r.Uploads[i] = FileUpload{}
	}
	r.Uploads = r.Uploads[:0]

	r.Headers.Reset()
	clear(r.Cookies)
	clear(r.QueryArgs)
	clear(r.Args)
	r.Accept = r.Accept[:0]
	r.AcceptLanguage = r.AcceptLanguage[:0]
	r.Origin = nil
	r.Referrer = nil
	r.AbsoluteURI = nil
	r.Location.reset()
	r.UserAgent = ""
	r.ContentType = ""
	r.Charset = ""
	r.Boundary = ""
	r.upgradeHeader = ""
	r.Input.reset()
	r.HasEntityBody = false
}

// Header returns the first stored value for name.
func (r *Request) Header(name string) (string, bool) {
	return r.Headers.Get(name)
}

// IsWebSocketUpgrade reports whether the request asks for a websocket
// upgrade. Detection only; the server does no websocket framing.
func (r *Request) IsWebSocketUpgrade() bool {
	if !containsFoldASCII(r.upgradeHeader, "websocket") {
		return false
	}
	conn, _ := r.Headers.Get("Connection")
	return containsFoldASCII(conn, "upgrade")
}

// CompressionSupport intersects the client's Accept-Encoding tokens with the
// server-supported method set, in fixed priority order
// gzip > deflate > brotli > zstd. No header or no overlap means none.
func (r *Request) CompressionSupport(supported CompressionMethod) CompressionMethod {
	accept, ok := r.Headers.Get("Accept-Encoding")
	if !ok || accept == "" {
		return CompressionNone
	}

	var client CompressionMethod
	for len(accept) > 0 {
		var token string
		if i := indexByte(accept, ','); i >= 0 {
			token, accept = accept[:i], accept[i+1:]
		} else {
			token, accept = accept, ""
		}
		// strip any quality value
		if i := indexByte(token, ';'); i >= 0 {
			token = token[:i]
		}
		token = trimSpaceString(token)
		switch {
		case equalFoldString(token, "gzip"):
			client |= CompressionGzip
		case equalFoldString(token, "deflate"):
			client |= CompressionDeflate
		case equalFoldString(token, "br"):
			client |= CompressionBrotli
		case equalFoldString(token, "zstd"):
			client |= CompressionZstd
		}
	}

	both := client & supported
	switch {
	case both&CompressionGzip != 0:
		return CompressionGzip
	case both&CompressionDeflate != 0:
		return CompressionDeflate
	case both&CompressionBrotli != 0:
		return CompressionBrotli
	case both&CompressionZstd != 0:
		return CompressionZstd
	}
	return CompressionNone
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

func trimSpaceString(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}

func equalFoldString(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lowerByte(a[i]) != lowerByte(b[i]) {
			return false
		}
	}
	return true
}
