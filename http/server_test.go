package http_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	nethttp "net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stratumweb/stratum/http"
)

func startTestServer(t *testing.T, handler http.Handler) (addr string, cancel context.CancelFunc) {
	t.Helper()

	cfg := http.DefaultConfig()
	cfg.IdleTimeout = 2 * time.Second

	server, err := http.NewServer(cfg, handler)
	if err != nil {
		t.Fatal(err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, listener)
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("serve returned %v", err)
		}
	})

	return listener.Addr().String(), cancel
}

func roundTrip(t *testing.T, conn net.Conn, raw string) *nethttp.Response {
	t.Helper()

	if _, err := io.WriteString(conn, raw); err != nil {
		t.Fatal(err)
	}
	resp, err := nethttp.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServerBasicRequest(t *testing.T) {
	addr, _ := startTestServer(t, func(ctx *http.RequestCtx) {
		if ctx.Request.Location.Path != "/a" {
			ctx.SetStatus(http.StatusNotFound)
			return
		}
		ctx.WriteString("text/plain", "x="+ctx.Request.QueryArgs["x"])
	})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	resp := roundTrip(t, conn, "GET /a?x=1 HTTP/1.1\r\nHost: h\r\n\r\n")
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "x=1" {
		t.Errorf("body = %q", body)
	}
}

func TestServerKeepAliveSequence(t *testing.T) {
	var count atomic.Int32
	addr, _ := startTestServer(t, func(ctx *http.RequestCtx) {
		count.Add(1)
		ctx.WriteString("text/plain", "ok")
	})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	for i := 0; i < 3; i++ {
		resp := roundTrip(t, conn, "GET / HTTP/1.1\r\nHost: h\r\n\r\n")
		if resp.StatusCode != 200 {
			t.Fatalf("request %d: status = %d", i, resp.StatusCode)
		}
		if resp.Header.Get("Connection") != "keep-alive" {
			t.Errorf("request %d: connection = %q", i, resp.Header.Get("Connection"))
		}
		io.Copy(io.Discard, resp.Body)
	}
	if count.Load() != 3 {
		t.Errorf("handler ran %d times", count.Load())
	}
}

func TestServerConnectionClose(t *testing.T) {
	addr, _ := startTestServer(t, func(ctx *http.RequestCtx) {
		ctx.WriteString("text/plain", "bye")
	})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	resp := roundTrip(t, conn, "GET / HTTP/1.1\r\nHost: h\r\nConnection: close\r\n\r\n")
	if resp.Header.Get("Connection") != "close" {
		t.Errorf("connection = %q", resp.Header.Get("Connection"))
	}
	io.Copy(io.Discard, resp.Body)

	// the server must close its side after the response
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("read after close = %v, want EOF", err)
	}
}

func TestServerPostFormBody(t *testing.T) {
	addr, _ := startTestServer(t, func(ctx *http.RequestCtx) {
		ctx.WriteString("text/plain", "hello "+ctx.Request.Args["name"])
	})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	body := "name=world"
	resp := roundTrip(t, conn,
		"POST / HTTP/1.1\r\nHost: h\r\n"+
			"Content-Type: application/x-www-form-urlencoded\r\n"+
			"Content-Length: "+itoa(len(body))+"\r\n\r\n"+body)
	got, _ := io.ReadAll(resp.Body)
	if string(got) != "hello world" {
		t.Errorf("body = %q", got)
	}
}

func TestServerExpectContinue(t *testing.T) {
	addr, _ := startTestServer(t, func(ctx *http.RequestCtx) {
		data, _ := io.ReadAll(&ctx.Request.Input)
		ctx.WriteString("text/plain", "got "+itoa(len(data)))
	})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// send only the head; the body follows after the interim response
	head := "POST / HTTP/1.1\r\nHost: h\r\nExpect: 100-continue\r\nContent-Length: 4\r\n\r\n"
	if _, err := io.WriteString(conn, head); err != nil {
		t.Fatal(err)
	}

	br := bufio.NewReader(conn)
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(line, "100 Continue") {
		t.Fatalf("interim line = %q", line)
	}
	// interim response ends with a blank line
	if _, err := br.ReadString('\n'); err != nil {
		t.Fatal(err)
	}

	if _, err := io.WriteString(conn, "data"); err != nil {
		t.Fatal(err)
	}
	resp, err := nethttp.ReadResponse(br, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	got, _ := io.ReadAll(resp.Body)
	if string(got) != "got 4" {
		t.Errorf("body = %q", got)
	}
}

func TestServerRejectsChunkedRequestBody(t *testing.T) {
	addr, _ := startTestServer(t, func(ctx *http.RequestCtx) {
		t.Error("handler must not run for a rejected request")
	})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	resp := roundTrip(t, conn, "POST / HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n")
	if resp.StatusCode != 501 {
		t.Errorf("status = %d, want 501", resp.StatusCode)
	}
}

func TestServerRejectsSmugglingAttempt(t *testing.T) {
	addr, _ := startTestServer(t, func(ctx *http.RequestCtx) {
		t.Error("handler must not run for a rejected request")
	})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	resp := roundTrip(t, conn,
		"POST / HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\nContent-Length: 4\r\n\r\n")
	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServerRejectsBodyOnGet(t *testing.T) {
	addr, _ := startTestServer(t, func(ctx *http.RequestCtx) {
		t.Error("handler must not run for a rejected request")
	})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	resp := roundTrip(t, conn, "GET / HTTP/1.1\r\nHost: h\r\nContent-Length: 4\r\n\r\nabcd")
	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServerDrainsUnreadBody(t *testing.T) {
	addr, _ := startTestServer(t, func(ctx *http.RequestCtx) {
		// handler ignores the body on purpose
		ctx.WriteString("text/plain", "ignored")
	})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	body := strings.Repeat("b", 1000)
	raw := "POST / HTTP/1.1\r\nHost: h\r\n" +
		"Content-Type: application/vnd.custom\r\n" +
		"Content-Length: " + itoa(len(body)) + "\r\n\r\n" + body

	resp := roundTrip(t, conn, raw)
	io.Copy(io.Discard, resp.Body)

	// the connection must still be usable for the next request
	resp2 := roundTrip(t, conn, "GET / HTTP/1.1\r\nHost: h\r\n\r\n")
	if resp2.StatusCode != 200 {
		t.Errorf("second request status = %d", resp2.StatusCode)
	}
	io.Copy(io.Discard, resp2.Body)
}

// brokenCompressor negotiates gzip but fails every compress call, so the
// body writer dies after headers and chunked framing are on the wire.
type brokenCompressor struct {
	err error
}

func (m *brokenCompressor) SupportedMethods() http.CompressionMethod { return http.CompressionGzip }
func (m *brokenCompressor) AllocCompressor() any                     { return &struct{}{} }
func (m *brokenCompressor) CommitMemory(any) error                   { return nil }
func (m *brokenCompressor) DecommitMemory(any) error                 { return nil }

func (m *brokenCompressor) InitCompressor(any, http.CompressionMethod, http.CompressionLevel) (int, error) {
	return 512, nil
}

func (m *brokenCompressor) CompressBlock(state any, out, input []byte) (int, []byte, error) {
	return 0, out, m.err
}

func (m *brokenCompressor) Flush(state any, out []byte) ([]byte, error) {
	return out, m.err
}

func (m *brokenCompressor) DeinitCompressor(any) error { return nil }

// pipelineDump sends raw and reads the connection to EOF, failing when the
// server does not close its side within the deadline.
func pipelineDump(t *testing.T, addr, raw string) string {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := io.WriteString(conn, raw); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("connection left open after incomplete body: %v", err)
	}
	return string(data)
}

func TestServerClosesConnectionAfterCompressedBodyFailure(t *testing.T) {
	cfg := http.DefaultConfig()
	cfg.MinCompressSize = 1

	server, err := http.NewServer(cfg, func(ctx *http.RequestCtx) {
		ctx.WriteString("text/plain", strings.Repeat("a", 256))
	})
	if err != nil {
		t.Fatal(err)
	}
	server.SetCompressor(&brokenCompressor{err: errors.New("deflate state corrupt")})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, listener)
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("serve returned %v", err)
		}
	})

	req := "GET / HTTP/1.1\r\nHost: h\r\nAccept-Encoding: gzip\r\n\r\n"
	dump := pipelineDump(t, listener.Addr().String(), req+req)

	// the second pipelined request must never be answered
	if got := strings.Count(dump, "HTTP/1.1 200"); got != 1 {
		t.Fatalf("responses = %d, want 1", got)
	}
	if strings.HasSuffix(dump, "0\r\n\r\n") {
		t.Error("truncated chunked body must not carry a terminal chunk")
	}
}

func TestServerClosesConnectionAfterUnterminatedChunkedBody(t *testing.T) {
	addr, _ := startTestServer(t, func(ctx *http.RequestCtx) {
		w, err := ctx.ChunkedWriter()
		if err != nil {
			t.Error(err)
			return
		}
		// written but never closed, so no terminal chunk goes out
		w.Write([]byte("partial"))
	})

	req := "GET / HTTP/1.1\r\nHost: h\r\n\r\n"
	dump := pipelineDump(t, addr, req+req)

	if got := strings.Count(dump, "HTTP/1.1 200"); got != 1 {
		t.Fatalf("responses = %d, want 1", got)
	}
	if strings.HasSuffix(dump, "0\r\n\r\n") {
		t.Error("unterminated chunked body must not carry a terminal chunk")
	}
}

func TestServerClosesConnectionAfterShortFixedBody(t *testing.T) {
	addr, _ := startTestServer(t, func(ctx *http.RequestCtx) {
		w, err := ctx.BodyWriter(10)
		if err != nil {
			t.Error(err)
			return
		}
		w.Write([]byte("abc"))
		w.Close()
	})

	req := "GET / HTTP/1.1\r\nHost: h\r\n\r\n"
	dump := pipelineDump(t, addr, req+req)

	if got := strings.Count(dump, "HTTP/1.1 200"); got != 1 {
		t.Fatalf("responses = %d, want 1", got)
	}
}

func TestServerShutdown(t *testing.T) {
	cfg := http.DefaultConfig()
	server, err := http.NewServer(cfg, func(ctx *http.RequestCtx) {})
	if err != nil {
		t.Fatal(err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, listener)
	}()

	sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer scancel()
	if err := server.Shutdown(sctx); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Errorf("serve returned %v", err)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = '0' + byte(n%10)
		n /= 10
	}
	return string(buf[i:])
}
