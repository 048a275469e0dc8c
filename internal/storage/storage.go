package storage

import (
	"context"
	"io"
)

// Uploader stores a finalized recording artifact and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}
