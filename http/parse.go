package http

import (
	"bufio"
	"io"
	"net/url"
	"strings"
)

// parseRequestLine consumes the first line of a request from br, using buf
// as the shared line buffer, and fills in method, target and version.
// Returns 0 on success, StatusEmptyRequest when the peer closed without
// sending anything.
func parseRequestLine(br *bufio.Reader, buf []byte, req *Request) Status {
	n, err := readLine(br, buf)
	if err != nil {
		if err == ErrLineTooLong {
			return StatusBadRequest
		}
		// connection closed before a request arrived
		return StatusEmptyRequest
	}
	line := trimSpace(buf[:n])
	if len(line) == 0 {
		return StatusEmptyRequest
	}

	sp := -1
	for i := 0; i < len(line); i++ {
		if line[i] == ' ' {
			sp = i
			break
		}
	}
	if sp < 0 {
		return StatusBadRequest
	}

	req.Method = parseMethod(line[:sp])
	if req.Method == MethodNone {
		return StatusMethodNotAllowed
	}

	// the version marker is searched from the end so a target containing
	// " HTTP/" cannot confuse the split
	httpIdx := lastIndexFold(line, " HTTP/")
	if httpIdx < 0 || httpIdx < sp {
		return StatusHTTPVersionNotSupported
	}

	req.Version = parseVersion(line[httpIdx+len(" HTTP/"):])
	if req.Version == VersionUnsupported {
		return StatusHTTPVersionNotSupported
	}

	target := trimSpace(line[sp+1 : httpIdx])
	if len(target) == 0 {
		return StatusBadRequest
	}

	if containsBytes(target, "://") {
		u, err := url.Parse(string(target))
		if err != nil || u.Host == "" {
			return StatusBadRequest
		}
		req.AbsoluteURI = u
		req.Location.Scheme = u.Scheme
		req.Location.Host = u.Hostname()
		if p := u.Port(); p != "" {
			port, err := atoi64([]byte(p))
			if err != nil || port < 1 || port > 65535 {
				return StatusBadRequest
			}
			req.Location.Port = int(port)
		}
		req.Location.Path = u.Path
		req.Location.Query = u.RawQuery
	} else {
		if target[0] != '/' {
			return StatusBadRequest
		}
		path := target
		var query []byte
		for i := 0; i < len(target); i++ {
			if target[i] == '?' {
				path = target[:i]
				query = target[i+1:]
				break
			}
		}
		req.Location.Path = string(path)
		req.Location.Query = string(query)
	}

	req.KeepAlive = req.Version == Version11
	return 0
}

// parseHeaders consumes header lines until the empty line, classifying the
// ~20 recognized names into structured request state and storing the rest
// verbatim. Returns 0 on success.
func parseHeaders(br *bufio.Reader, buf []byte, req *Request, cfg *Config) Status {
	count := 0
	for {
		n, err := readLine(br, buf)
		if err != nil {
			if err == ErrLineTooLong {
				return StatusRequestHeaderFieldsTooLarge
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break // end of stream ends the header block
			}
			return StatusBadRequest
		}
		if n == 0 {
			break
		}
		line := buf[:n]

		// folded continuation lines (leading SP/HT) are skipped, not
		// merged; downstream behavior depends on this quirk
		if line[0] == ' ' || line[0] == '\t' {
			continue
		}

		count++
		if count > cfg.MaxHeaderCount {
			return StatusRequestHeaderFieldsTooLarge
		}

		colon := -1
		for i := 0; i < len(line); i++ {
			if line[i] == ':' {
				colon = i
				break
			}
		}
		if colon <= 0 {
			continue // lenient: not a header line
		}

		name := trimSpace(line[:colon])
		value := trimSpace(line[colon+1:])
		toLowerASCII(name)

		if status := applyHeader(req, cfg, name, value); status != 0 {
			return status
		}
	}

	if req.Version == Version11 {
		// the Host header is mandatory on 1.1 even when the request line
		// carried an absolute-form target
		if _, ok := req.Headers.Get("Host"); !ok {
			return StatusBadRequest
		}
	}

	if req.Location.Scheme == "" {
		req.Location.Scheme = "http"
	}
	if req.Location.Host == "" || req.Location.Path == "" {
		return StatusBadRequest
	}

	return 0
}

// applyHeader dispatches one header line. name arrives lowercased in the
// borrowed line buffer; values that outlive the line are copied here.
func applyHeader(req *Request, cfg *Config, name, value []byte) Status {
	switch string(name) {
	case "connection":
		v := string(value)
		if containsFoldASCII(v, "close") {
			req.KeepAlive = false
		}
		req.Headers.Add("connection", v)

	case "content-type":
		if status := parseContentTypeHeader(req, value); status != 0 {
			return status
		}

	case "content-length":
		if req.ContentLength >= 0 {
			// RFC 7230: duplicate Content-Length is a smuggling vector
			return StatusBadRequest
		}
		length, err := atoi64(value)
		if err != nil {
			return StatusBadRequest
		}
		if length > cfg.MaxUploadSize {
			return StatusRequestEntityTooLarge
		}
		req.ContentLength = length

	case "host":
		if status := parseHostHeader(req, value); status != 0 {
			return status
		}

	case "cookie":
		parseCookieHeader(string(value), req.Cookies)

	case "accept":
		req.Accept = appendList(req.Accept, string(value))

	case "accept-language":
		req.AcceptLanguage = appendList(req.AcceptLanguage, string(value))

	case "referer":
		if u, err := url.Parse(string(value)); err == nil && u.IsAbs() {
			req.Referrer = u
		}

	case "range":
		if status := parseRangeHeader(req, value); status != 0 {
			return status
		}

	case "user-agent":
		req.UserAgent = string(value)

	case "origin":
		if u, err := url.Parse(string(value)); err == nil && u.IsAbs() {
			req.Origin = u
		}

	case "expect":
		if equalFoldASCII(value, "100-continue") {
			req.Expect = true
		}

	case "transfer-encoding":
		v := string(value)
		if containsFoldASCII(v, "chunked") {
			req.chunkedTransfer = true
		}
		req.Headers.Add("transfer-encoding", v)

	case "upgrade":
		req.upgradeHeader = string(value)
		req.Headers.Add("upgrade", req.upgradeHeader)

	default:
		req.Headers.Add(string(name), string(value))
	}
	return 0
}

func parseContentTypeHeader(req *Request, value []byte) Status {
	v := string(value)
	mime := v
	rest := ""
	if i := indexByte(v, ';'); i >= 0 {
		mime, rest = v[:i], v[i+1:]
	}
	mime = strings.ToLower(trimSpaceString(mime))
	if mime == "" || indexByte(mime, '/') < 0 {
		return StatusUnsupportedMediaType
	}
	req.ContentType = mime

	for len(rest) > 0 {
		var param string
		if i := indexByte(rest, ';'); i >= 0 {
			param, rest = rest[:i], rest[i+1:]
		} else {
			param, rest = rest, ""
		}
		param = trimSpaceString(param)
		eq := indexByte(param, '=')
		if eq < 0 {
			continue
		}
		key := strings.ToLower(param[:eq])
		val := strings.Trim(param[eq+1:], `"`)
		switch key {
		case "charset":
			req.Charset = val
		case "boundary":
			req.Boundary = val
		}
	}

	if req.ContentType == ctMultipartForm && req.Boundary == "" {
		return StatusUnsupportedMediaType
	}
	return 0
}

func parseHostHeader(req *Request, value []byte) Status {
	host := string(value)
	port := 0
	if i := strings.LastIndexByte(host, ':'); i >= 0 && indexByte(host[i+1:], ']') < 0 {
		p, err := atoi64([]byte(host[i+1:]))
		if err != nil || p < 1 || p > 65535 {
			return StatusBadRequest
		}
		port = int(p)
		host = host[:i]
	}
	if host == "" || indexByte(host, ' ') >= 0 {
		return StatusBadRequest
	}

	if req.AbsoluteURI != nil {
		if !equalFoldString(req.AbsoluteURI.Hostname(), host) {
			return StatusBadRequest
		}
		// location already resolved from the absolute target
	} else {
		req.Location.Host = host
		req.Location.Port = port
	}
	req.Headers.Add("host", string(value))
	return 0
}

func parseRangeHeader(req *Request, value []byte) Status {
	const prefix = "bytes="
	v := string(value)
	if len(v) <= len(prefix) || !equalFoldString(v[:len(prefix)], prefix) {
		return StatusRequestedRangeNotSatisfiable
	}
	v = v[len(prefix):]

	dash := indexByte(v, '-')
	if dash <= 0 {
		return StatusRequestedRangeNotSatisfiable
	}
	start, err := atoi64([]byte(v[:dash]))
	if err != nil {
		return StatusRequestedRangeNotSatisfiable
	}

	end := int64(-1)
	if tail := v[dash+1:]; tail != "" {
		end, err = atoi64([]byte(tail))
		if err != nil || end < start {
			return StatusRequestedRangeNotSatisfiable
		}
	}

	req.Range = RangeRequest{Start: start, End: end}
	req.HasRange = true
	return 0
}

// appendList comma-splits value, trims each entry and drops empties.
func appendList(dst []string, value string) []string {
	for len(value) > 0 {
		var entry string
		if i := indexByte(value, ','); i >= 0 {
			entry, value = value[:i], value[i+1:]
		} else {
			entry, value = value, ""
		}
		entry = trimSpaceString(entry)
		if entry != "" {
			dst = append(dst, entry)
		}
	}
	return dst
}

// lastIndexFold finds the last case-insensitive occurrence of sub in b.
func lastIndexFold(b []byte, sub string) int {
	if len(sub) == 0 || len(sub) > len(b) {
		return -1
	}
	for i := len(b) - len(sub); i >= 0; i-- {
		match := true
		for j := 0; j < len(sub); j++ {
			if lowerByte(b[i+j]) != lowerByte(sub[j]) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func containsBytes(b []byte, sub string) bool {
	if len(sub) > len(b) {
		return false
	}
	for i := 0; i <= len(b)-len(sub); i++ {
		if string(b[i:i+len(sub)]) == sub {
			return true
		}
	}
	return false
}
