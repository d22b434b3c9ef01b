package http

import (
	"io"
	"strings"
	"testing"
	"time"
)

func newBodyRequest(contentType, boundary, body string) (*Request, Config) {
	req := &Request{}
	req.OnNewRequest()
	req.ContentType = contentType
	req.Boundary = boundary
	req.ContentLength = int64(len(body))
	req.Input.bind([]byte(body), strings.NewReader(""), nil, int64(len(body)), time.Time{})
	req.HasEntityBody = true
	return req, DefaultConfig()
}

func TestParseQueryArgs(t *testing.T) {
	req := &Request{}
	req.OnNewRequest()
	req.Location.Query = "a=1&b=two%20words&a=3&flag&=skip"

	parseQueryArgs(req)

	if req.QueryArgs["a"] != "3" {
		t.Errorf("last write should win, got %q", req.QueryArgs["a"])
	}
	if req.QueryArgs["b"] != "two words" {
		t.Errorf("b = %q", req.QueryArgs["b"])
	}
	if req.QueryArgs["flag"] != "" {
		t.Errorf("bare key should map to empty, got %q", req.QueryArgs["flag"])
	}
}

func TestDecodeURLEncodedBody(t *testing.T) {
	req, cfg := newBodyRequest(ctURLEncodedForm, "", "name=Jan+Jansen&city=Den%20Haag&name=override")

	if status := decodeEntityBody(req, &cfg); status != 0 {
		t.Fatalf("status = %d", status)
	}
	if req.Args["name"] != "override" {
		t.Errorf("name = %q", req.Args["name"])
	}
	if req.Args["city"] != "Den Haag" {
		t.Errorf("city = %q", req.Args["city"])
	}
}

func TestDecodeMultipartBody(t *testing.T) {
	body := "--XX\r\n" +
		"Content-Disposition: form-data; name=\"field\"\r\n" +
		"\r\n" +
		"value\r\n" +
		"--XX\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"a.txt\"\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"file contents\r\n" +
		"--XX--\r\n"

	req, cfg := newBodyRequest(ctMultipartForm, "XX", body)

	if status := decodeEntityBody(req, &cfg); status != 0 {
		t.Fatalf("status = %d", status)
	}
	if req.Args["field"] != "value" {
		t.Errorf("field = %q", req.Args["field"])
	}
	if len(req.Uploads) != 1 {
		t.Fatalf("uploads = %d", len(req.Uploads))
	}

	up := req.Uploads[0]
	if up.FileName != "a.txt" || up.ContentType != "text/plain" {
		t.Errorf("upload = %+v", up)
	}
	data, err := io.ReadAll(up.Stream)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "file contents" {
		t.Errorf("upload data = %q", data)
	}
}

func TestDecodeMultipartUploadCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 3; i++ {
		sb.WriteString("--XX\r\n")
		sb.WriteString("Content-Disposition: form-data; name=\"f\"; filename=\"f.bin\"\r\n")
		sb.WriteString("\r\ndata\r\n")
	}
	sb.WriteString("--XX--\r\n")

	req, cfg := newBodyRequest(ctMultipartForm, "XX", sb.String())
	cfg.MaxUploads = 2

	if status := decodeEntityBody(req, &cfg); status != 0 {
		t.Fatalf("status = %d", status)
	}
	if len(req.Uploads) != 2 {
		t.Errorf("uploads = %d, want cap of 2", len(req.Uploads))
	}
}

func TestDecodeMultipartMissingDelimiter(t *testing.T) {
	req, cfg := newBodyRequest(ctMultipartForm, "XX", "no delimiter here")

	if status := decodeEntityBody(req, &cfg); status != StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestDecodeBinaryBodyBecomesUpload(t *testing.T) {
	req, cfg := newBodyRequest(ctOctetStream, "", "\x00\x01\x02")

	if status := decodeEntityBody(req, &cfg); status != 0 {
		t.Fatalf("status = %d", status)
	}
	if len(req.Uploads) != 1 {
		t.Fatalf("uploads = %d", len(req.Uploads))
	}
	if req.Uploads[0].OwnsStream {
		t.Error("whole-body upload must not own the input stream")
	}
	data, err := io.ReadAll(req.Uploads[0].Stream)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 3 {
		t.Errorf("data = %v", data)
	}
}

func TestDecodeUnknownContentTypeUntouched(t *testing.T) {
	req, cfg := newBodyRequest("application/vnd.custom", "", "raw payload")

	if status := decodeEntityBody(req, &cfg); status != 0 {
		t.Fatalf("status = %d", status)
	}
	if len(req.Uploads) != 0 || len(req.Args) != 0 {
		t.Error("unknown content type should leave the body untouched")
	}
	data, err := io.ReadAll(&req.Input)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "raw payload" {
		t.Errorf("body = %q", data)
	}
}

func TestGrowBuffer(t *testing.T) {
	g := newGrowBuffer(0)
	total := 0
	for i := 0; i < 100; i++ {
		chunk := g.next(37)
		for j := range chunk {
			chunk[j] = byte(i)
		}
		g.commit(37)
		total += 37
	}
	if g.len() != total {
		t.Errorf("len = %d, want %d", g.len(), total)
	}
	if g.bytes()[0] != 0 || g.bytes()[total-1] != 99 {
		t.Error("buffer contents corrupted across growth")
	}
}
