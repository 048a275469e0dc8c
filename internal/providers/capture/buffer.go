package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prepdeck/prepdeck/internal/storage"
)

// BufferProvider hands out in-memory devices that accumulate media chunks
// pushed by the client and finalize by uploading the captured media through
// the artifact store. With a nil uploader the device still works; Finalize
// just returns an empty artifact.
type BufferProvider struct {
	Uploader    storage.Uploader
	ContentType string
	MaxBytes    int
}

func (p *BufferProvider) Acquire(ctx context.Context) (Device, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	maxBytes := p.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	contentType := p.ContentType
	if contentType == "" {
		contentType = "video/webm"
	}
	return &bufferDevice{
		uploader:    p.Uploader,
		contentType: contentType,
		maxBytes:    maxBytes,
	}, nil
}

type bufferDevice struct {
	uploader    storage.Uploader
	contentType string
	maxBytes    int

	mu        sync.Mutex
	recording bool
	paused    bool
	released  bool
	buf       bytes.Buffer
}

var errDeviceReleased = errors.New("capture device released")

func (d *bufferDevice) StartRecording() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return errDeviceReleased
	}
	d.recording = true
	d.paused = false
	return nil
}

func (d *bufferDevice) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return errDeviceReleased
	}
	d.paused = true
	return nil
}

func (d *bufferDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return errDeviceReleased
	}
	d.paused = false
	return nil
}

func (d *bufferDevice) Append(chunk []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return errDeviceReleased
	}
	// chunks arriving while paused or before start are dropped, not buffered
	if !d.recording || d.paused {
		return nil
	}
	if d.buf.Len()+len(chunk) > d.maxBytes {
		return errors.New("capture buffer full")
	}
	_, err := d.buf.Write(chunk)
	return err
}

func (d *bufferDevice) Finalize(ctx context.Context) (Artifact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return Artifact{}, errDeviceReleased
	}
	d.recording = false

	if d.uploader == nil || d.buf.Len() == 0 {
		return Artifact{}, nil
	}

	object := fmt.Sprintf("recordings/%s/%d.webm", uuid.NewString(), time.Now().UTC().Unix())
	url, err := d.uploader.Upload(ctx, object, d.contentType, bytes.NewReader(d.buf.Bytes()))
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{VideoURL: url}, nil
}

func (d *bufferDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
	d.recording = false
	d.buf.Reset()
}
