package capture

import "context"

// Artifact is the finalized media produced by a stopped recording. Either URL
// may be empty when no artifact store is configured; the interview flow never
// depends on artifacts to proceed.
type Artifact struct {
	AudioURL string
	VideoURL string
}

// Device is one acquired capture device. Pause suspends recording without
// releasing the device; Release must be idempotent and is always called
// before the next question's device is acquired.
type Device interface {
	StartRecording() error
	Pause() error
	Resume() error
	Append(chunk []byte) error
	Finalize(ctx context.Context) (Artifact, error)
	Release()
}

// Provider acquires capture devices. Acquisition failure is surfaced to the
// caller as a capture-unavailable condition and leaves the controller idle.
type Provider interface {
	Acquire(ctx context.Context) (Device, error)
}
