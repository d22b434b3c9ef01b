package http

import (
	"bufio"
)

// chunkedWriter frames the body per the chunked transfer coding. Writes are
// accumulated into an internal block and emitted as one chunk when the block
// fills or Flush runs. A failed transport write poisons the writer: Close
// then skips the terminal chunk so the peer sees a truncated body and the
// connection is torn down instead of kept alive.
type chunkedWriter struct {
	bw  *bufio.Writer
	buf []byte
	n   int

	hex    [18]byte // hex length + CRLF scratch
	failed bool
	closed bool
}

func (w *chunkedWriter) bind(bw *bufio.Writer, blockSize int) {
	w.bw = bw
	if cap(w.buf) < blockSize {
		w.buf = make([]byte, blockSize)
	} else {
		w.buf = w.buf[:blockSize]
	}
	w.n = 0
	w.failed = false
	w.closed = false
}

func (w *chunkedWriter) reset() {
	w.bw = nil
	w.n = 0
	w.failed = false
	w.closed = false
}

func (w *chunkedWriter) Write(p []byte) (int, error) {
	if w.failed {
		return 0, errWriterFailed
	}
	if w.bw == nil {
		return 0, errWriterFailed
	}
	total := 0
	for len(p) > 0 {
		c := copy(w.buf[w.n:], p)
		w.n += c
		total += c
		p = p[c:]
		if w.n == len(w.buf) {
			if err := w.emit(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// Flush emits any buffered bytes as a chunk and pushes them to the wire.
func (w *chunkedWriter) Flush() error {
	if w.failed {
		return errWriterFailed
	}
	if err := w.emit(); err != nil {
		return err
	}
	if err := w.bw.Flush(); err != nil {
		w.failed = true
		return err
	}
	return nil
}

// emit writes the current block as "<hex>\r\n<data>\r\n". Empty blocks are
// skipped; a zero-size chunk would terminate the stream early.
func (w *chunkedWriter) emit() error {
	if w.n == 0 {
		return nil
	}
	d := writeHexToBuffer(w.n, w.hex[:])
	w.hex[d] = '\r'
	w.hex[d+1] = '\n'
	if _, err := w.bw.Write(w.hex[:d+2]); err != nil {
		w.failed = true
		return err
	}
	if _, err := w.bw.Write(w.buf[:w.n]); err != nil {
		w.failed = true
		return err
	}
	if _, err := w.bw.Write(crlf); err != nil {
		w.failed = true
		return err
	}
	w.n = 0
	return nil
}

// Close flushes remaining data, writes the terminal chunk and flushes the
// transport. After a failed write it returns the poison error and emits
// nothing, leaving the stream visibly truncated.
func (w *chunkedWriter) Close() error {
	if w.bw == nil {
		return nil
	}
	if w.failed {
		w.bw = nil
		return errWriterFailed
	}
	if err := w.emit(); err != nil {
		w.bw = nil
		return err
	}
	if _, err := w.bw.Write(chunkTerminal); err != nil {
		w.failed = true
		w.bw = nil
		return err
	}
	err := w.bw.Flush()
	w.bw = nil
	if err != nil {
		w.failed = true
		return err
	}
	w.closed = true
	return nil
}
