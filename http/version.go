package http

// Version is the request protocol version.
type Version uint8

const (
	VersionUnsupported Version = iota
	Version09
	Version10
	Version11
)

func (v Version) String() string {
	switch v {
	case Version09:
		return "HTTP/0.9"
	case Version10:
		return "HTTP/1.0"
	case Version11:
		return "HTTP/1.1"
	}
	return "HTTP/?"
}

// parseVersion maps the digits after "HTTP/" to a Version.
func parseVersion(tail []byte) Version {
	switch string(tail) {
	case "0.9":
		return Version09
	case "1.0":
		return Version10
	case "1.1":
		return Version11
	}
	return VersionUnsupported
}
