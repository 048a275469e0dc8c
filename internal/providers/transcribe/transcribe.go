package transcribe

import "context"

// Fragment is one incremental recognition result. Only fragments marked final
// may be committed to a transcript; interim fragments are display-only and
// can be revised by the recognizer.
type Fragment struct {
	Text    string
	IsFinal bool
}

type Config struct {
	SampleRateHz   int32
	LanguageCode   string
	InterimResults bool
}

// Stream is one live recognition session. Results is closed when the session
// ends; Close tears the session down and must be safe to call more than once.
type Stream interface {
	Send(audio []byte) error
	Results() <-chan Fragment
	Close() error
}

// Provider opens live transcription sessions. The recording controller starts
// a fresh stream on every recording/resume leg so a paused feed can never
// leak fragments.
type Provider interface {
	Start(ctx context.Context, cfg Config) (Stream, error)
}

// Unavailable is the provider wired in when no recognizer is configured.
// Every Start fails with the recorded cause, which the recording controller
// surfaces as a capture-unavailable condition.
type Unavailable struct {
	Err error
}

func (u Unavailable) Start(ctx context.Context, cfg Config) (Stream, error) {
	return nil, u.Err
}
