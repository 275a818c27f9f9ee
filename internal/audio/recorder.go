package audio

import (
	"context"
	"sync"

	"github.com/prepmate/prepmate/internal/bus"
	"github.com/rs/zerolog"
)

// Recorder captures a single voice answer per start/stop cycle.
// At most one recording is active per Recorder; start while active and
// stop while inactive are no-ops.
type Recorder struct {
	mu sync.Mutex

	source    CaptureSource
	chunks    [][]byte
	recording bool
	question  string

	eventBus *bus.EventBus
	logger   zerolog.Logger

	onSubmit SubmitFunc
}

// NewRecorder creates a recording controller bound to a capture source
func NewRecorder(source CaptureSource, eventBus *bus.EventBus, logger zerolog.Logger) *Recorder {
	return &Recorder{
		source:   source,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "recorder").Logger(),
	}
}

// SetSubmitHandler sets the callback that receives finalized blobs
func (r *Recorder) SetSubmitHandler(fn SubmitFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSubmit = fn
}

// IsRecording reports whether a capture is active
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start acquires the capture source and begins accumulating fragments.
// The question provides submission context for the eventual blob.
// A denied or unavailable microphone is reported, never fatal.
func (r *Recorder) Start(ctx context.Context, question string) error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		r.logger.Debug().Msg("Start ignored, recording already active")
		return ErrAlreadyRecording
	}
	source := r.source
	r.mu.Unlock()

	if source != nil {
		if err := source.Acquire(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("Microphone access unavailable")
			if r.eventBus != nil {
				r.eventBus.Publish(bus.Event{
					Type: bus.EventTypeRecordingError,
					Data: map[string]any{"error": err.Error()},
				})
			}
			return ErrCaptureUnavailable
		}
	}

	r.mu.Lock()
	r.recording = true
	r.question = question
	r.chunks = r.chunks[:0]
	r.mu.Unlock()

	r.logger.Info().Str("question", question).Msg("Recording started")
	if r.eventBus != nil {
		r.eventBus.Publish(bus.Event{Type: bus.EventTypeRecordingStarted})
	}
	return nil
}

// Append accumulates one audio fragment. Fragments arriving outside an
// active recording are dropped.
func (r *Recorder) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	r.chunks = append(r.chunks, buf)
}

// Stop finalizes the capture into one blob, releases the capture source,
// and hands the blob with its question context to the submit callback.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		r.logger.Debug().Msg("Stop ignored, no active recording")
		return ErrNotRecording
	}
	r.recording = false

	total := 0
	for _, c := range r.chunks {
		total += len(c)
	}
	blob := make([]byte, 0, total)
	for _, c := range r.chunks {
		blob = append(blob, c...)
	}
	r.chunks = nil
	question := r.question
	r.question = ""
	source := r.source
	submit := r.onSubmit
	r.mu.Unlock()

	if source != nil {
		source.Release()
	}

	r.logger.Info().Int("bytes", len(blob)).Msg("Recording stopped")
	if r.eventBus != nil {
		r.eventBus.Publish(bus.Event{
			Type: bus.EventTypeRecordingStopped,
			Data: map[string]any{"bytes": len(blob)},
		})
	}

	if submit != nil {
		submit(ctx, Submission{Audio: blob, Question: question})
	}
	return nil
}
