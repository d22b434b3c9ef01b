package http

import (
	"errors"
	"fmt"
	"io"
)

// CompressionMethod is a bit set of response encodings. Negotiation always
// resolves to a single method in fixed priority order gzip > deflate >
// brotli > zstd.
type CompressionMethod uint16

const (
	CompressionNone    CompressionMethod = 0
	CompressionGzip    CompressionMethod = 1 << iota
	CompressionDeflate
	CompressionBrotli
	CompressionZstd
)

func (m CompressionMethod) String() string {
	switch m {
	case CompressionNone:
		return "identity"
	case CompressionGzip:
		return "gzip"
	case CompressionDeflate:
		return "deflate"
	case CompressionBrotli:
		return "br"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint16(m))
}

// CompressionLevel mirrors the quality knob handed to the manager.
type CompressionLevel int

const (
	CompressionLevelNone CompressionLevel = iota
	CompressionLevelFastest
	CompressionLevelOptimal
	CompressionLevelSmallestSize
)

// CompressorManager is the pluggable compression backend. State objects are
// opaque to this package. Calls on different states may run concurrently
// from different connections; calls on one state never do.
//
// Lifecycle per state: AllocCompressor, CommitMemory, then any number of
// InitCompressor / compress / DeinitCompressor cycles, then DecommitMemory
// exactly once when the owning connection releases the state.
type CompressorManager interface {
	// SupportedMethods returns the encodings this manager can produce.
	SupportedMethods() CompressionMethod

	// AllocCompressor creates an uncommitted state object.
	AllocCompressor() any

	// CommitMemory readies the state's buffers. Called lazily on the
	// first compressed response of a connection.
	CommitMemory(state any) error

	// DecommitMemory releases what CommitMemory acquired.
	DecommitMemory(state any) error

	// InitCompressor arms the state for one response and returns the
	// preferred block size for CompressBlock input.
	InitCompressor(state any, method CompressionMethod, level CompressionLevel) (blockSize int, err error)

	// CompressBlock consumes input and appends compressed output to out,
	// returning how much input was read and the grown out slice.
	CompressBlock(state any, out []byte, input []byte) (read int, result []byte, err error)

	// Flush drains pending compressed data into out. A zero-growth
	// return means the stream is fully flushed and terminated.
	Flush(state any, out []byte) (result []byte, err error)

	// DeinitCompressor ends the per-response cycle. Must be called after
	// every successful InitCompressor, including on error paths.
	DeinitCompressor(state any) error
}

var errCompressorState = errors.New("http: compressor state misuse")

// responseCompressor is the per-connection adapter over the manager. It owns
// one opaque state for the lifetime of the connection and tracks the
// commit/init phases so the manager sees a legal call sequence.
type responseCompressor struct {
	mgr   CompressorManager
	state any

	committed bool
	active    bool
	blockSize int
}

func newResponseCompressor(mgr CompressorManager) *responseCompressor {
	return &responseCompressor{mgr: mgr, state: mgr.AllocCompressor()}
}

// init arms the compressor for one response.
func (rc *responseCompressor) init(method CompressionMethod, level CompressionLevel) error {
	if rc.active {
		return errCompressorState
	}
	if !rc.committed {
		if err := rc.mgr.CommitMemory(rc.state); err != nil {
			return err
		}
		rc.committed = true
	}
	size, err := rc.mgr.InitCompressor(rc.state, method, level)
	if err != nil {
		return err
	}
	rc.blockSize = size
	rc.active = true
	return nil
}

func (rc *responseCompressor) compressBlock(out, input []byte) (int, []byte, error) {
	if !rc.active {
		return 0, out, errCompressorState
	}
	return rc.mgr.CompressBlock(rc.state, out, input)
}

func (rc *responseCompressor) flush(out []byte) ([]byte, error) {
	if !rc.active {
		return out, errCompressorState
	}
	return rc.mgr.Flush(rc.state, out)
}

// deinit ends the response cycle. Safe to call when not active so error
// paths can call it unconditionally.
func (rc *responseCompressor) deinit() error {
	if !rc.active {
		return nil
	}
	rc.active = false
	return rc.mgr.DeinitCompressor(rc.state)
}

// release decommits the state when the connection closes.
func (rc *responseCompressor) release() error {
	if rc.active {
		rc.deinit()
	}
	if !rc.committed {
		return nil
	}
	rc.committed = false
	return rc.mgr.DecommitMemory(rc.state)
}

// compressingWriter feeds handler writes through the compressor and pushes
// the compressed stream into the underlying body writer (direct or chunked).
type compressingWriter struct {
	rc   *responseCompressor
	sink io.Writer

	out    []byte
	failed bool
}

func newCompressingWriter(rc *responseCompressor, sink io.Writer) *compressingWriter {
	size := rc.blockSize
	if size <= 0 {
		size = DefaultChunkBufferSize
	}
	return &compressingWriter{rc: rc, sink: sink, out: make([]byte, 0, size)}
}

func (w *compressingWriter) Write(p []byte) (int, error) {
	if w.failed {
		return 0, errWriterFailed
	}
	total := 0
	for len(p) > 0 {
		in := p
		if w.rc.blockSize > 0 && len(in) > w.rc.blockSize {
			in = in[:w.rc.blockSize]
		}
		read, out, err := w.rc.compressBlock(w.out[:0], in)
		if err != nil {
			w.failed = true
			return total, err
		}
		if len(out) > 0 {
			if _, err := w.sink.Write(out); err != nil {
				w.failed = true
				return total, err
			}
		}
		total += read
		p = p[read:]
	}
	return total, nil
}

// Close flushes the compressor until it reports empty, ends the compression
// cycle, then closes the sink so chunked framing can terminate.
func (w *compressingWriter) Close() error {
	defer w.rc.deinit()
	if w.failed {
		return errWriterFailed
	}
	for {
		out, err := w.rc.flush(w.out[:0])
		if err != nil {
			w.failed = true
			return err
		}
		if len(out) == 0 {
			break
		}
		if _, err := w.sink.Write(out); err != nil {
			w.failed = true
			return err
		}
	}
	if c, ok := w.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
