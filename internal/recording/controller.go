package recording

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prepdeck/prepdeck/internal/providers/capture"
	"github.com/prepdeck/prepdeck/internal/providers/transcribe"
	"github.com/prepdeck/prepdeck/internal/utils"
)

type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
)

// Result is the finalized tuple emitted by a successful Submit.
type Result struct {
	Transcript     string `json:"transcript"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	AudioURL       string `json:"audio_url,omitempty"`
	VideoURL       string `json:"video_url,omitempty"`
}

type Options struct {
	TickInterval  time.Duration // elapsed-time resolution, default 1s
	Transcription transcribe.Config
	// OnFragment, when set, observes every fragment (interim included) as it
	// arrives, for live display. Committing to the transcript stays
	// final-fragments-only regardless.
	OnFragment func(transcribe.Fragment)
}

// Controller owns the per-question capture lifecycle:
// idle → recording ⇄ paused → completed → idle. Calling a transition from an
// invalid state is a no-op, never an error; the UI may fire duplicates.
type Controller struct {
	capture capture.Provider
	stt     transcribe.Provider
	opts    Options
	log     *logrus.Logger

	mu       sync.Mutex
	state    State
	device   capture.Device
	leg      *producerLeg
	runCtx   context.Context
	elapsed  int
	finals   []string
	artifact capture.Artifact
}

// producerLeg is one recording stretch between start/resume and the next
// pause/stop. The timer and transcription feed of a leg are cancelled
// synchronously when the leg is deactivated; a fresh leg (with a fresh
// stream) is started on resume so nothing is double-counted.
type producerLeg struct {
	stream   transcribe.Stream
	active   bool // guarded by Controller.mu
	tickStop chan struct{}
	tickDone chan struct{}
	feedDone chan struct{}
}

func NewController(cap capture.Provider, stt transcribe.Provider, opts Options, log *logrus.Logger) *Controller {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if log == nil {
		log = logrus.New()
	}
	return &Controller{capture: cap, stt: stt, opts: opts, log: log, state: StateIdle}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) ElapsedSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Transcript returns the accumulated final fragments, space-joined.
func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.finals, " ")
}

// Start acquires the capture device and transcription feed and begins
// accumulating time and transcript. No-op unless idle. Acquisition failure
// leaves the controller idle and surfaces a capture-unavailable condition.
func (c *Controller) Start(ctx context.Context) error {
	const op = "RecordingController.Start"

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	device, err := c.capture.Acquire(ctx)
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "capture device unavailable", err)
	}

	stream, err := c.stt.Start(ctx, c.opts.Transcription)
	if err != nil {
		device.Release()
		return utils.E(utils.CodeUnavailable, op, "transcription feed unavailable", err)
	}

	if err := device.StartRecording(); err != nil {
		_ = stream.Close()
		device.Release()
		return utils.E(utils.CodeUnavailable, op, "capture device rejected start", err)
	}

	c.mu.Lock()
	if c.state != StateIdle {
		// lost the race to a duplicate start; drop the extra resources
		c.mu.Unlock()
		_ = stream.Close()
		device.Release()
		return nil
	}
	c.state = StateRecording
	c.device = device
	c.runCtx = ctx
	c.elapsed = 0
	c.finals = nil
	c.artifact = capture.Artifact{}
	c.startLeg(stream)
	c.mu.Unlock()
	return nil
}

// Pause suspends recording, the timer, and the transcription feed. No-op
// unless recording. Producers are fully stopped before Pause returns.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return
	}
	c.state = StatePaused
	leg := c.detachLegLocked()
	device := c.device
	c.mu.Unlock()

	c.stopLeg(leg)
	if device != nil {
		if err := device.Pause(); err != nil {
			c.log.WithError(err).Warn("capture device pause failed")
		}
	}
}

// Resume restarts capture, timing, and a fresh transcription feed. No-op
// unless paused. A feed failure rolls back to paused.
func (c *Controller) Resume() error {
	const op = "RecordingController.Resume"

	c.mu.Lock()
	if c.state != StatePaused {
		c.mu.Unlock()
		return nil
	}
	ctx := c.runCtx
	device := c.device
	c.mu.Unlock()

	stream, err := c.stt.Start(ctx, c.opts.Transcription)
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "transcription feed unavailable", err)
	}

	c.mu.Lock()
	if c.state != StatePaused {
		c.mu.Unlock()
		_ = stream.Close()
		return nil
	}
	c.state = StateRecording
	c.startLeg(stream)
	c.mu.Unlock()

	if device != nil {
		if err := device.Resume(); err != nil {
			c.log.WithError(err).Warn("capture device resume failed")
		}
	}
	return nil
}

// Stop finalizes the captured media into an artifact and releases the
// device. Valid from recording or paused; no-op otherwise.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateRecording && c.state != StatePaused {
		c.mu.Unlock()
		return
	}
	c.state = StateCompleted
	leg := c.detachLegLocked()
	device := c.device
	c.device = nil
	c.mu.Unlock()

	c.stopLeg(leg)

	var artifact capture.Artifact
	if device != nil {
		var err error
		artifact, err = device.Finalize(ctx)
		if err != nil {
			// the answer flow proceeds without an artifact
			c.log.WithError(err).Warn("artifact finalize failed")
		}
		device.Release()
	}

	c.mu.Lock()
	c.artifact = artifact
	c.mu.Unlock()
}

// Reset releases any held resources and clears all buffers. Valid from any
// state.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.state = StateIdle
	leg := c.detachLegLocked()
	device := c.device
	c.device = nil
	c.elapsed = 0
	c.finals = nil
	c.artifact = capture.Artifact{}
	c.runCtx = nil
	c.mu.Unlock()

	c.stopLeg(leg)
	if device != nil {
		device.Release()
	}
}

// Submit emits the finalized tuple and resets. Refused (no result, no state
// change) unless completed with a non-blank transcript.
func (c *Controller) Submit() (Result, error) {
	const op = "RecordingController.Submit"

	c.mu.Lock()
	if c.state != StateCompleted {
		c.mu.Unlock()
		return Result{}, utils.E(utils.CodeInvalidArgument, op, "no completed recording to submit", nil)
	}
	transcript := strings.TrimSpace(strings.Join(c.finals, " "))
	if transcript == "" {
		c.mu.Unlock()
		return Result{}, utils.E(utils.CodeInvalidArgument, op, "transcript is empty", nil)
	}
	res := Result{
		Transcript:     transcript,
		ElapsedSeconds: c.elapsed,
		AudioURL:       c.artifact.AudioURL,
		VideoURL:       c.artifact.VideoURL,
	}
	c.mu.Unlock()

	c.Reset()
	return res, nil
}

// Feed forwards a client media chunk to the capture device and the
// transcription feed. Dropped silently unless recording.
func (c *Controller) Feed(chunk []byte) {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return
	}
	device := c.device
	var stream transcribe.Stream
	if c.leg != nil {
		stream = c.leg.stream
	}
	c.mu.Unlock()

	if device != nil {
		if err := device.Append(chunk); err != nil {
			c.log.WithError(err).Warn("capture buffer append failed")
		}
	}
	if stream != nil {
		if err := stream.Send(chunk); err != nil {
			c.log.WithError(err).Debug("transcription send failed")
		}
	}
}

// startLeg must be called with mu held.
func (c *Controller) startLeg(stream transcribe.Stream) {
	leg := &producerLeg{
		stream:   stream,
		active:   true,
		tickStop: make(chan struct{}),
		tickDone: make(chan struct{}),
		feedDone: make(chan struct{}),
	}
	c.leg = leg
	go c.runTimer(leg)
	go c.runFeed(leg)
}

// detachLegLocked deactivates the current leg so late ticks and fragments
// are discarded even before the producer goroutines observe shutdown.
// Must be called with mu held.
func (c *Controller) detachLegLocked() *producerLeg {
	leg := c.leg
	if leg != nil {
		leg.active = false
	}
	c.leg = nil
	return leg
}

// stopLeg tears a leg down and waits for both producers to exit, so no
// elapsed time or transcript text can leak past the transition.
func (c *Controller) stopLeg(leg *producerLeg) {
	if leg == nil {
		return
	}
	close(leg.tickStop)
	_ = leg.stream.Close()
	<-leg.tickDone
	<-leg.feedDone
}

func (c *Controller) runTimer(leg *producerLeg) {
	defer close(leg.tickDone)

	t := time.NewTicker(c.opts.TickInterval)
	defer t.Stop()

	for {
		select {
		case <-leg.tickStop:
			return
		case <-t.C:
			c.mu.Lock()
			if leg.active {
				c.elapsed++
			}
			c.mu.Unlock()
		}
	}
}

func (c *Controller) runFeed(leg *producerLeg) {
	defer close(leg.feedDone)

	for fragment := range leg.stream.Results() {
		if c.opts.OnFragment != nil {
			c.opts.OnFragment(fragment)
		}
		if !fragment.IsFinal {
			continue
		}
		text := strings.TrimSpace(fragment.Text)
		if text == "" {
			continue
		}
		c.mu.Lock()
		if leg.active {
			c.finals = append(c.finals, text)
		}
		c.mu.Unlock()
	}
}
