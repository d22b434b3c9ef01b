package http

// Method is a bit flag so callers can test membership in method groups
// (for example the bodiless set) with a single mask.
type Method uint16

const (
	MethodNone Method = 0

	MethodGet Method = 1 << iota
	MethodHead
	MethodPost
	MethodPut
	MethodDelete
	MethodPatch
	MethodOptions
	MethodTrace
	MethodConnect
)

// methodsWithoutBody must not carry a request entity body.
const methodsWithoutBody = MethodGet | MethodHead | MethodTrace

var methodNames = map[Method]string{
	MethodGet:     "GET",
	MethodHead:    "HEAD",
	MethodPost:    "POST",
	MethodPut:     "PUT",
	MethodDelete:  "DELETE",
	MethodPatch:   "PATCH",
	MethodOptions: "OPTIONS",
	MethodTrace:   "TRACE",
	MethodConnect: "CONNECT",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return "NONE"
}

// parseMethod maps a request-line token to a Method. Method tokens are
// case-sensitive per RFC 7231, so no folding here.
func parseMethod(token []byte) Method {
	switch string(token) {
	case "GET":
		return MethodGet
	case "HEAD":
		return MethodHead
	case "POST":
		return MethodPost
	case "PUT":
		return MethodPut
	case "DELETE":
		return MethodDelete
	case "PATCH":
		return MethodPatch
	case "OPTIONS":
		return MethodOptions
	case "TRACE":
		return MethodTrace
	case "CONNECT":
		return MethodConnect
	}
	return MethodNone
}
