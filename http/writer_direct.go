package http

import (
	"bufio"
	"errors"
)

var (
	errWriterFailed   = errors.New("http: body writer failed")
	errWriterOverflow = errors.New("http: write exceeds declared content length")
)

// directWriter streams a fixed-length body straight to the transport. It
// enforces the declared Content-Length; Close detaches without closing the
// connection-scoped transport.
type directWriter struct {
	bw        *bufio.Writer
	remaining int64
}

func (w *directWriter) bind(bw *bufio.Writer, contentLength int64) {
	w.bw = bw
	w.remaining = contentLength
}

func (w *directWriter) reset() {
	w.bw = nil
	w.remaining = 0
}

func (w *directWriter) Write(p []byte) (int, error) {
	if w.bw == nil {
		return 0, errWriterFailed
	}
	if int64(len(p)) > w.remaining {
		return 0, errWriterOverflow
	}
	n, err := w.bw.Write(p)
	w.remaining -= int64(n)
	return n, err
}

// Remaining returns how many body bytes the declared length still expects.
func (w *directWriter) Remaining() int64 { return w.remaining }

// Close flushes the transport buffer and detaches. The short-body check is
// the caller's concern via Remaining; Close never pads.
func (w *directWriter) Close() error {
	if w.bw == nil {
		return nil
	}
	err := w.bw.Flush()
	w.bw = nil
	return err
}
