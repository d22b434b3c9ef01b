package http

import (
	"bufio"
	"errors"
	"io"
)

// ErrLineTooLong means no line terminator fit in the supplied buffer; the
// caller must treat the request as malformed (431 for headers).
var ErrLineTooLong = errors.New("http: line exceeds buffer")

// readLine reads one CRLF-terminated line from br into buf and returns the
// number of bytes excluding the terminator. A bare LF is tolerated. The
// returned slice of buf is only valid until the next read; nothing is
// allocated per line.
func readLine(br *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for {
		c, err := br.ReadByte()
		if err != nil {
			if err == io.EOF && n > 0 {
				// stream ended mid-line; surface what we have
				return n, io.ErrUnexpectedEOF
			}
			return n, err
		}
		if c == '\n' {
			if n > 0 && buf[n-1] == '\r' {
				n--
			}
			return n, nil
		}
		if n == len(buf) {
			return n, ErrLineTooLong
		}
		buf[n] = c
		n++
	}
}
