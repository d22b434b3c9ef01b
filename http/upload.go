package http

import (
	"bytes"
	"io"
)

// FileUpload is one file-like unit extracted from a request body: a
// multipart part, or the whole body when its content type is a recognized
// binary format. OwnsStream marks uploads whose stream must be closed when
// the request completes; a non-owned stream aliases the request input and
// must not be closed here.
type FileUpload struct {
	Stream      io.Reader
	ContentType string
	FileName    string

	OwnsStream bool
	closer     io.Closer
}

func newBufferedUpload(data []byte, contentType, fileName string) FileUpload {
	return FileUpload{
		Stream:      bytes.NewReader(data),
		ContentType: contentType,
		FileName:    fileName,
	}
}

func (u *FileUpload) dispose() {
	if u.OwnsStream && u.closer != nil {
		u.closer.Close()
	}
	u.Stream = nil
	u.closer = nil
}
