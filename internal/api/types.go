// Package api is the HTTP client for the remote interview backend:
// question selection, transcription, scoring, and speech synthesis.
package api

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrBackendUnavailable = errors.New("interview backend unavailable")
	ErrEmptyAudio         = errors.New("audio payload is empty")
)

// Config holds client configuration
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:5000",
		Timeout: 30 * time.Second,
	}
}

// StartInterviewRequest opens a job-specific interview session
type StartInterviewRequest struct {
	JobTitle string `json:"job_title"`
	Company  string `json:"company"`
}

// QuestionPayload is one served question with its optional intro remark
type QuestionPayload struct {
	Intro    string `json:"intro"`
	Question string `json:"question"`
}

// NextQuestionResponse is either the next question or the terminal message
type NextQuestionResponse struct {
	Done     bool   `json:"done"`
	Intro    string `json:"intro,omitempty"`
	Question string `json:"question,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Evaluation carries the scoring of one answer. Score fields are pointers
// because the backend may omit them.
type Evaluation struct {
	RelevanceScore  *float64 `json:"relevance_score,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	FinalScore      *float64 `json:"final_score,omitempty"`
	FeedbackText    string   `json:"feedback_text"`
}

// AnswerResponse is the transcript plus evaluation for one answer
type AnswerResponse struct {
	Transcript string     `json:"transcript"`
	Evaluation Evaluation `json:"evaluation"`
	Error      string     `json:"error,omitempty"`
}

// TextAnswerRequest submits a typed answer
type TextAnswerRequest struct {
	AnswerText string `json:"answer_text"`
	Question   string `json:"question"`
}

// SynthesizeRequest asks for a spoken rendition of text
type SynthesizeRequest struct {
	Text string `json:"text"`
}

// PracticeQuestion is a question in the legacy single-question practice mode
type PracticeQuestion struct {
	ID       int    `json:"id"`
	Question string `json:"question"`
}

// PracticeResult is the legacy practice-mode evaluation shape
type PracticeResult struct {
	Transcript      string  `json:"transcript"`
	RelevanceScore  float64 `json:"relevance_score"`
	ConfidenceScore float64 `json:"confidence_score"`
	FinalScore      float64 `json:"final_score"`
	FeedbackText    string  `json:"feedback_text"`
	Error           string  `json:"error,omitempty"`
}
