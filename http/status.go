package http

// Status is an HTTP status code. Parse functions in this package return a
// Status instead of an error: zero means success, anything else is the code
// the caller should answer with before closing or reusing the connection.
type Status uint16

const (
	StatusContinue           Status = 100
	StatusSwitchingProtocols Status = 101

	StatusOK             Status = 200
	StatusCreated        Status = 201
	StatusAccepted       Status = 202
	StatusNoContent      Status = 204
	StatusPartialContent Status = 206

	StatusMovedPermanently Status = 301
	StatusFound            Status = 302
	StatusNotModified      Status = 304

	StatusBadRequest                   Status = 400
	StatusUnauthorized                 Status = 401
	StatusForbidden                    Status = 403
	StatusNotFound                     Status = 404
	StatusMethodNotAllowed             Status = 405
	StatusNotAcceptable                Status = 406
	StatusRequestTimeout               Status = 408
	StatusLengthRequired               Status = 411
	StatusRequestEntityTooLarge        Status = 413
	StatusUnsupportedMediaType         Status = 415
	StatusRequestedRangeNotSatisfiable Status = 416
	StatusExpectationFailed            Status = 417
	StatusRequestHeaderFieldsTooLarge  Status = 431

	StatusInternalServerError     Status = 500
	StatusNotImplemented          Status = 501
	StatusServiceUnavailable      Status = 503
	StatusHTTPVersionNotSupported Status = 505

	// StatusEmptyRequest is an internal sentinel for a connection that sent
	// nothing before closing. It never reaches the wire; the connection is
	// dropped silently and not counted as a parse error.
	StatusEmptyRequest Status = 999
)

var statusMessages = map[Status]string{
	StatusContinue:           "Continue",
	StatusSwitchingProtocols: "Switching Protocols",

	StatusOK:             "OK",
	StatusCreated:        "Created",
	StatusAccepted:       "Accepted",
	StatusNoContent:      "No Content",
	StatusPartialContent: "Partial Content",

	StatusMovedPermanently: "Moved Permanently",
	StatusFound:            "Found",
	StatusNotModified:      "Not Modified",

	StatusBadRequest:                   "Bad Request",
	StatusUnauthorized:                 "Unauthorized",
	StatusForbidden:                    "Forbidden",
	StatusNotFound:                     "Not Found",
	StatusMethodNotAllowed:             "Method Not Allowed",
	StatusNotAcceptable:                "Not Acceptable",
	StatusRequestTimeout:               "Request Timeout",
	StatusLengthRequired:               "Length Required",
	StatusRequestEntityTooLarge:        "Request Entity Too Large",
	StatusUnsupportedMediaType:         "Unsupported Media Type",
	StatusRequestedRangeNotSatisfiable: "Requested Range Not Satisfiable",
	StatusExpectationFailed:            "Expectation Failed",
	StatusRequestHeaderFieldsTooLarge:  "Request Header Fields Too Large",

	StatusInternalServerError:     "Internal Server Error",
	StatusNotImplemented:          "Not Implemented",
	StatusServiceUnavailable:      "Service Unavailable",
	StatusHTTPVersionNotSupported: "HTTP Version Not Supported",
}

// StatusText returns the reason phrase for code.
func StatusText(code Status) string {
	if msg, ok := statusMessages[code]; ok {
		return msg
	}
	return "Unknown Status Code"
}
