package http

import (
	"strconv"
	"strings"
	"time"
)

type SameSite int

const (
	SameSiteDefaultMode SameSite = iota + 1
	SameSiteLaxMode
	SameSiteStrictMode
	SameSiteNoneMode
)

// Cookie is a response Set-Cookie value. Request cookies are plain
// name/value pairs and live in Request.Cookies.
type Cookie struct {
	Name  string
	Value string

	Path        string
	Domain      string
	Expires     time.Time
	MaxAge      int
	Secure      bool
	HttpOnly    bool
	SameSite    SameSite
	Partitioned bool
}

func (c *Cookie) String() string {
	var b strings.Builder

	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)

	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}

	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}

	if !c.Expires.IsZero() {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"))
	}

	if c.MaxAge > 0 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(c.MaxAge))
	} else if c.MaxAge < 0 {
		b.WriteString("; Max-Age=0")
	}

	if c.Secure {
		b.WriteString("; Secure")
	}

	if c.HttpOnly {
		b.WriteString("; HttpOnly")
	}

	switch c.SameSite {
	case SameSiteLaxMode:
		b.WriteString("; SameSite=Lax")
	case SameSiteStrictMode:
		b.WriteString("; SameSite=Strict")
	case SameSiteNoneMode:
		b.WriteString("; SameSite=None")
	}

	if c.Partitioned {
		b.WriteString("; Partitioned")
	}

	return b.String()
}

// parseCookieHeader splits a Cookie header ("a=1; b=2") into dst.
// Pairs split on the first '=', both sides trimmed. The first occurrence of
// a name wins; later duplicates are dropped. Names are case-sensitive.
func parseCookieHeader(value string, dst map[string]string) {
	for len(value) > 0 {
		var pair string
		if i := strings.Index(value, "; "); i >= 0 {
			pair, value = value[:i], value[i+2:]
		} else {
			pair, value = value, ""
		}

		eq := strings.IndexByte(pair, '=')
		if eq < 0 {
			continue
		}
		name := strings.TrimSpace(pair[:eq])
		val := strings.TrimSpace(pair[eq+1:])
		if name == "" {
			continue
		}
		if _, exists := dst[name]; exists {
			continue
		}
		dst[name] = val
	}
}
