// Package session sequences mock-interview turns: question delivery,
// answer collection, evaluation, and completion.
package session

import (
	"context"
	"errors"

	"github.com/prepmate/prepmate/internal/api"
	"github.com/prepmate/prepmate/internal/audio"
	"github.com/prepmate/prepmate/internal/avatar"
)

// Common errors
var (
	ErrSessionActive   = errors.New("interview session already active")
	ErrSessionInactive = errors.New("no active interview session")
	ErrWrongMode       = errors.New("operation not available in current input mode")
)

// State is the interview flow state
type State string

const (
	StateIdle           State = "idle"
	StateStarting       State = "starting"
	StateAwaitingAnswer State = "awaiting_answer"
	StateEvaluating     State = "evaluating"
	StateFinished       State = "finished"
)

// InputMode selects how answers are collected
type InputMode string

const (
	ModeVoice InputMode = "voice"
	ModeText  InputMode = "text"
)

// LogEntry is one appended answer record: the question, the transcript,
// and its evaluation. Entries are never mutated or deleted within a session.
type LogEntry struct {
	ID         string         `json:"id"`
	Question   string         `json:"question"`
	Transcript string         `json:"transcript"`
	Evaluation api.Evaluation `json:"evaluation"`
}

// Config holds interview parameters
type Config struct {
	TotalQuestions int `mapstructure:"total_questions"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{TotalQuestions: 10}
}

// Backend is the remote collaborator used by the flow controller
type Backend interface {
	StartInterview(ctx context.Context, req api.StartInterviewRequest) (*api.QuestionPayload, error)
	NextQuestion(ctx context.Context) (*api.NextQuestionResponse, error)
	SubmitVoiceAnswer(ctx context.Context, audioData []byte, question string) (*api.AnswerResponse, error)
	SubmitTextAnswer(ctx context.Context, answerText, question string) (*api.AnswerResponse, error)
}

// Speaker plays synthesized utterances
type Speaker interface {
	Speak(ctx context.Context, text string) (string, error)
}

// VoiceRecorder is the recording controller surface the session drives
type VoiceRecorder interface {
	Start(ctx context.Context, question string) error
	Stop(ctx context.Context) error
	IsRecording() bool
	SetSubmitHandler(fn audio.SubmitFunc)
}

// Expressions is the avatar surface the session drives
type Expressions interface {
	SetBase(mode avatar.BaseMode)
}
