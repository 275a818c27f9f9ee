// Package server exposes the session controller to the browser over
// HTTP and WebSocket. External inputs (clicks, playback reports, captured
// audio) arrive as messages; state changes flow back as messages.
package server

import "github.com/prepmate/prepmate/internal/session"

// Client message types
const (
	MsgStartInterview  = "start_interview"
	MsgToggleMode      = "toggle_mode"
	MsgStartRecording  = "start_recording"
	MsgStopRecording   = "stop_recording"
	MsgAudioChunk      = "audio_chunk"
	MsgTextAnswer      = "text_answer"
	MsgRepeat          = "repeat"
	MsgPlaybackStarted = "playback_started"
	MsgPlaybackEnded   = "playback_ended"
	MsgPlaybackFailed  = "playback_failed"
)

// Server message types
const (
	MsgAvatarFrame    = "avatar_frame"
	MsgQuestion       = "question"
	MsgSpeak          = "speak"
	MsgLogEntry       = "log_entry"
	MsgSessionDone    = "session_done"
	MsgError          = "error"
	MsgRecordingError = "recording_error"
	MsgControls       = "controls"
	MsgMode           = "mode"
	MsgStartCapture   = "start_capture"
	MsgStopCapture    = "stop_capture"
)

// ClientMessage is a message from the browser
type ClientMessage struct {
	Type        string `json:"type"`
	JobTitle    string `json:"job_title,omitempty"`
	Company     string `json:"company,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Text        string `json:"text,omitempty"`
	Audio       string `json:"audio,omitempty"` // base64
	UtteranceID string `json:"utterance_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ServerMessage is a message to the browser
type ServerMessage struct {
	Type          string            `json:"type"`
	Expression    string            `json:"expression,omitempty"`
	Frame         string            `json:"frame,omitempty"`
	Question      string            `json:"question,omitempty"`
	Index         int               `json:"index,omitempty"`
	Total         int               `json:"total,omitempty"`
	UtteranceID   string            `json:"utterance_id,omitempty"`
	Audio         string            `json:"audio,omitempty"` // base64
	Entry         *session.LogEntry `json:"entry,omitempty"`
	Message       string            `json:"message,omitempty"`
	Error         string            `json:"error,omitempty"`
	Mode          string            `json:"mode,omitempty"`
	StartEnabled  bool              `json:"start_enabled,omitempty"`
	RepeatEnabled bool              `json:"repeat_enabled,omitempty"`
}
