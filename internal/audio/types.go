// Package audio provides the voice-answer recording controller.
// Audio capture happens in the browser; this manages state and coordination.
package audio

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrCaptureUnavailable = errors.New("capture source unavailable")
	ErrAlreadyRecording   = errors.New("recording already active")
	ErrNotRecording       = errors.New("no active recording")
)

// CaptureSource is the microphone-side collaborator. The production source
// tells the browser to start and stop its MediaRecorder; tests use a fake.
type CaptureSource interface {
	// Acquire requests microphone access. An error means access was
	// denied or no client is connected.
	Acquire(ctx context.Context) error

	// Release stops the underlying capture and frees the device.
	Release()
}

// Submission is a finalized voice answer handed to the submit callback
type Submission struct {
	Audio    []byte
	Question string
}

// SubmitFunc receives the assembled blob together with its question context
type SubmitFunc func(ctx context.Context, sub Submission)
