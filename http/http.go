// Package http implements the HTTP/1.x server request/response pipeline:
// byte-level request parsing from the transport, a reusable low-allocation
// request model, and response writers for direct, chunked and compressed
// body delivery.
package http

const (
	DefaultReadBufferSize  = 8 * 1024
	DefaultWriteBufferSize = 8 * 1024

	// Largest single request or header line that fits the parse buffer.
	DefaultHeaderBufferSize = 8 * 1024

	DefaultMaxHeaderCount   = 100
	DefaultMaxUploadSize    = 5 << 20
	DefaultMaxFormDataSize  = 1 << 20
	DefaultMaxUploads       = 10
	DefaultChunkBufferSize  = 16 * 1024
	DefaultMinCompressSize  = 256
	DefaultDiscardBufferLen = 4 * 1024
)

// Handler processes one parsed request and writes the response through the
// context. Routing on method/path is the caller's concern.
type Handler func(ctx *RequestCtx)

var (
	crlf           = []byte("\r\n")
	headerSep      = []byte(": ")
	chunkTerminal  = []byte("0\r\n\r\n")
	continueLine   = []byte("HTTP/1.1 100 Continue\r\n\r\n")
	statusLineHTTP = []byte("HTTP/1.1 ")
)
