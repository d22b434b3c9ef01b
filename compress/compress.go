// Package compress provides the default compression backend for the server:
// gzip, deflate and zstd via klauspost/compress, brotli via
// andybalholm/brotli. One state object serves one connection at a time;
// encoders are built lazily and reused across responses.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/stratumweb/stratum/http"
)

// blockSize is the preferred input granularity reported by InitCompressor.
const blockSize = 32 * 1024

var (
	errNotCommitted = errors.New("compress: state not committed")
	errNotActive    = errors.New("compress: no active compression cycle")
	errActive       = errors.New("compress: compression cycle already active")
)

// Manager is a stateless factory plus the lifecycle entry points; all
// per-connection data lives in the opaque state objects it hands out.
type Manager struct{}

func NewManager() *Manager { return &Manager{} }

func (m *Manager) SupportedMethods() http.CompressionMethod {
	return http.CompressionGzip | http.CompressionDeflate | http.CompressionBrotli | http.CompressionZstd
}

type encoder interface {
	io.WriteCloser
	Reset(w io.Writer)
}

// state is one connection's compressor. The active encoder writes into buf;
// CompressBlock and Flush drain buf into the caller's output slice.
type state struct {
	buf bytes.Buffer

	gzipW   *gzip.Writer
	flateW  *flate.Writer
	brotliW *brotli.Writer
	zstdW   *zstd.Encoder

	cur       encoder
	committed bool
	active    bool
	finished  bool
}

func (m *Manager) AllocCompressor() any {
	return &state{}
}

func (m *Manager) CommitMemory(opaque any) error {
	st := opaque.(*state)
	st.buf.Grow(blockSize)
	st.committed = true
	return nil
}

func (m *Manager) DecommitMemory(opaque any) error {
	st := opaque.(*state)
	if st.active {
		return errActive
	}
	// drop the encoders so an idle pooled connection holds no window
	// memory
	if st.zstdW != nil {
		st.zstdW.Close()
	}
	*st = state{}
	return nil
}

func (m *Manager) InitCompressor(opaque any, method http.CompressionMethod, level http.CompressionLevel) (int, error) {
	st := opaque.(*state)
	if !st.committed {
		return 0, errNotCommitted
	}
	if st.active {
		return 0, errActive
	}

	st.buf.Reset()
	var err error
	switch method {
	case http.CompressionGzip:
		if st.gzipW == nil {
			st.gzipW, err = gzip.NewWriterLevel(&st.buf, gzipLevel(level))
		} else {
			st.gzipW.Reset(&st.buf)
		}
		st.cur = st.gzipW
	case http.CompressionDeflate:
		if st.flateW == nil {
			st.flateW, err = flate.NewWriter(&st.buf, flateLevel(level))
		} else {
			st.flateW.Reset(&st.buf)
		}
		st.cur = st.flateW
	case http.CompressionBrotli:
		if st.brotliW == nil {
			st.brotliW = brotli.NewWriterLevel(&st.buf, brotliLevel(level))
		} else {
			st.brotliW.Reset(&st.buf)
		}
		st.cur = st.brotliW
	case http.CompressionZstd:
		if st.zstdW == nil {
			st.zstdW, err = zstd.NewWriter(&st.buf, zstd.WithEncoderLevel(zstdLevel(level)))
		} else {
			st.zstdW.Reset(&st.buf)
		}
		st.cur = st.zstdW
	default:
		return 0, fmt.Errorf("compress: unsupported method %s", method)
	}
	if err != nil {
		st.cur = nil
		return 0, err
	}

	st.active = true
	st.finished = false
	return blockSize, nil
}

func (m *Manager) CompressBlock(opaque any, out []byte, input []byte) (int, []byte, error) {
	st := opaque.(*state)
	if !st.active {
		return 0, out, errNotActive
	}
	n, err := st.cur.Write(input)
	if err != nil {
		return n, out, err
	}
	out = append(out, st.buf.Bytes()...)
	st.buf.Reset()
	return n, out, nil
}

// Flush terminates the encoded stream on first call and drains whatever the
// encoder produced. Returning out unchanged tells the caller the stream is
// complete.
func (m *Manager) Flush(opaque any, out []byte) ([]byte, error) {
	st := opaque.(*state)
	if !st.active {
		return out, errNotActive
	}
	if !st.finished {
		if err := st.cur.Close(); err != nil {
			return out, err
		}
		st.finished = true
	}
	out = append(out, st.buf.Bytes()...)
	st.buf.Reset()
	return out, nil
}

func (m *Manager) DeinitCompressor(opaque any) error {
	st := opaque.(*state)
	if !st.active {
		return errNotActive
	}
	st.active = false
	st.cur = nil
	st.buf.Reset()
	return nil
}

func gzipLevel(level http.CompressionLevel) int {
	switch level {
	case http.CompressionLevelFastest:
		return gzip.BestSpeed
	case http.CompressionLevelSmallestSize:
		return gzip.BestCompression
	case http.CompressionLevelNone:
		return gzip.NoCompression
	}
	return gzip.DefaultCompression
}

func flateLevel(level http.CompressionLevel) int {
	switch level {
	case http.CompressionLevelFastest:
		return flate.BestSpeed
	case http.CompressionLevelSmallestSize:
		return flate.BestCompression
	case http.CompressionLevelNone:
		return flate.NoCompression
	}
	return flate.DefaultCompression
}

func brotliLevel(level http.CompressionLevel) int {
	switch level {
	case http.CompressionLevelFastest:
		return brotli.BestSpeed
	case http.CompressionLevelSmallestSize:
		return brotli.BestCompression
	}
	return brotli.DefaultCompression
}

func zstdLevel(level http.CompressionLevel) zstd.EncoderLevel {
	switch level {
	case http.CompressionLevelFastest:
		return zstd.SpeedFastest
	case http.CompressionLevelSmallestSize:
		return zstd.SpeedBestCompression
	}
	return zstd.SpeedDefault
}
