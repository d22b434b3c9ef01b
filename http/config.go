package http

import (
	"fmt"
	"time"
)

// Config carries the tunables for a Server. Zero values are filled in by
// DefaultConfig; Validate rejects combinations the pipeline cannot honor.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string

	// ReadBufferSize and WriteBufferSize size the per-connection bufio
	// layers. The read buffer also serves as the transport stage for the
	// input stream remainder.
	ReadBufferSize  int
	WriteBufferSize int

	// HeaderBufferSize bounds a single request or header line.
	HeaderBufferSize int

	// MaxHeaderCount bounds the number of header lines per request.
	MaxHeaderCount int

	// MaxUploadSize bounds any entity body (Content-Length ceiling).
	MaxUploadSize int64

	// MaxFormDataSize bounds bodies that are buffered whole for form
	// decoding (url-encoded and multipart).
	MaxFormDataSize int64

	// MaxUploads bounds the number of parts kept from a multipart body.
	MaxUploads int

	// ChunkBufferSize is the internal block size of the chunked writer.
	ChunkBufferSize int

	// CompressionMethods is the server-supported encoding set offered
	// during negotiation. CompressionNone disables compression entirely.
	CompressionMethods CompressionMethod

	// CompressionLevel is passed through to the compressor manager.
	CompressionLevel CompressionLevel

	// MinCompressSize skips compression for responses with a known
	// length below the threshold.
	MinCompressSize int

	// ReadTimeout bounds reading one full request head; IdleTimeout
	// bounds the wait for the next request on a kept-alive connection.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// ReusePort enables SO_REUSEPORT on platforms that have it so
	// multiple processes can share the listen address.
	ReusePort bool
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Addr:               ":8080",
		ReadBufferSize:     DefaultReadBufferSize,
		WriteBufferSize:    DefaultWriteBufferSize,
		HeaderBufferSize:   DefaultHeaderBufferSize,
		MaxHeaderCount:     DefaultMaxHeaderCount,
		MaxUploadSize:      DefaultMaxUploadSize,
		MaxFormDataSize:    DefaultMaxFormDataSize,
		MaxUploads:         DefaultMaxUploads,
		ChunkBufferSize:    DefaultChunkBufferSize,
		CompressionMethods: CompressionGzip | CompressionDeflate | CompressionBrotli | CompressionZstd,
		CompressionLevel:   CompressionLevelOptimal,
		MinCompressSize:    DefaultMinCompressSize,
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        60 * time.Second,
	}
}

// Validate fills zero fields with defaults and rejects invalid settings.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = def.ReadBufferSize
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = def.WriteBufferSize
	}
	if c.HeaderBufferSize == 0 {
		c.HeaderBufferSize = def.HeaderBufferSize
	}
	if c.MaxHeaderCount == 0 {
		c.MaxHeaderCount = def.MaxHeaderCount
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = def.MaxUploadSize
	}
	if c.MaxFormDataSize == 0 {
		c.MaxFormDataSize = def.MaxFormDataSize
	}
	if c.MaxUploads == 0 {
		c.MaxUploads = def.MaxUploads
	}
	if c.ChunkBufferSize == 0 {
		c.ChunkBufferSize = def.ChunkBufferSize
	}
	if c.MinCompressSize == 0 {
		c.MinCompressSize = def.MinCompressSize
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = def.IdleTimeout
	}

	if c.ReadBufferSize < 256 {
		return fmt.Errorf("http: read buffer size %d too small", c.ReadBufferSize)
	}
	if c.HeaderBufferSize < 256 {
		return fmt.Errorf("http: header buffer size %d too small", c.HeaderBufferSize)
	}
	if c.MaxFormDataSize > c.MaxUploadSize {
		return fmt.Errorf("http: max form data size %d exceeds max upload size %d", c.MaxFormDataSize, c.MaxUploadSize)
	}
	if c.ChunkBufferSize < 16 {
		return fmt.Errorf("http: chunk buffer size %d too small", c.ChunkBufferSize)
	}
	return nil
}
