package http

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net/http/httputil"
	"strings"
	"testing"
)

func TestDirectWriterEnforcesLength(t *testing.T) {
	var out bytes.Buffer
	bw := bufio.NewWriter(&out)

	var w directWriter
	w.bind(bw, 5)

	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("x")); err != errWriterOverflow {
		t.Errorf("overflow err = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if out.String() != "hello" {
		t.Errorf("out = %q", out.String())
	}
}

func TestChunkedWriterRoundTrip(t *testing.T) {
	var out bytes.Buffer
	bw := bufio.NewWriter(&out)

	var w chunkedWriter
	w.bind(bw, 8)

	payload := "the quick brown fox jumps over the lazy dog"
	if _, err := io.WriteString(&w, payload); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	decoded, err := io.ReadAll(httputil.NewChunkedReader(&out))
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded) != payload {
		t.Errorf("decoded = %q", decoded)
	}
}

func TestChunkedWriterFraming(t *testing.T) {
	var out bytes.Buffer
	bw := bufio.NewWriter(&out)

	var w chunkedWriter
	w.bind(bw, 16)

	io.WriteString(&w, "abc")
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	want := "3\r\nabc\r\n0\r\n\r\n"
	if out.String() != want {
		t.Errorf("wire = %q, want %q", out.String(), want)
	}
}

func TestChunkedWriterEmptyBody(t *testing.T) {
	var out bytes.Buffer
	bw := bufio.NewWriter(&out)

	var w chunkedWriter
	w.bind(bw, 16)

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if out.String() != "0\r\n\r\n" {
		t.Errorf("wire = %q", out.String())
	}
}

type failAfterWriter struct {
	n      int
	failed bool
}

func (w *failAfterWriter) Write(p []byte) (int, error) {
	if w.n <= 0 {
		w.failed = true
		return 0, errors.New("broken pipe")
	}
	w.n -= len(p)
	return len(p), nil
}

func TestChunkedWriterSkipsTerminalAfterFailure(t *testing.T) {
	sink := &failAfterWriter{n: 4}
	bw := bufio.NewWriterSize(sink, 4)

	var w chunkedWriter
	w.bind(bw, 4)

	// enough data to force a transport write that fails
	io.WriteString(&w, strings.Repeat("z", 64))
	w.Flush()

	if !w.failed {
		t.Fatal("writer should be poisoned after transport failure")
	}
	if err := w.Close(); err == nil {
		t.Fatal("close after failure must report the error")
	}

	// a fresh write must also be refused
	if _, err := w.Write([]byte("more")); err != errWriterFailed {
		t.Errorf("write after failure = %v", err)
	}
}
