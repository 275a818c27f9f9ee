package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Client talks to the interview backend
type Client struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewClient creates a backend client
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// StartInterview requests the opening question for a job-specific session
func (c *Client) StartInterview(ctx context.Context, req StartInterviewRequest) (*QuestionPayload, error) {
	var out QuestionPayload
	if err := c.postJSON(ctx, "/interview/start", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NextQuestion fetches the next turn, or the terminal message when the
// session is complete
func (c *Client) NextQuestion(ctx context.Context) (*NextQuestionResponse, error) {
	var out NextQuestionResponse
	if err := c.postJSON(ctx, "/interview/next_question", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitVoiceAnswer uploads a recorded answer for transcription and scoring
func (c *Client) SubmitVoiceAnswer(ctx context.Context, audio []byte, question string) (*AnswerResponse, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", "answer.webm")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.WriteField("question", question); err != nil {
		return nil, fmt.Errorf("failed to write question field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	var out AnswerResponse
	if err := c.postMultipart(ctx, "/interview/answer_audio", &buf, writer.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("backend rejected answer: %s", out.Error)
	}
	return &out, nil
}

// SubmitTextAnswer submits a typed answer for scoring
func (c *Client) SubmitTextAnswer(ctx context.Context, answerText, question string) (*AnswerResponse, error) {
	var out AnswerResponse
	req := TextAnswerRequest{AnswerText: answerText, Question: question}
	if err := c.postJSON(ctx, "/interview/answer_text", req, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("backend rejected answer: %s", out.Error)
	}
	return &out, nil
}

// Synthesize converts text to a playable audio payload
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(SynthesizeRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/speak", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio payload: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error().Int("status", resp.StatusCode).Msg("Synthesis failed")
		return nil, fmt.Errorf("synthesis error: %s", strings.TrimSpace(string(audio)))
	}

	c.logger.Debug().Int("bytes", len(audio)).Msg("Synthesized utterance")
	return audio, nil
}

// NextPracticeQuestion fetches a question in legacy practice mode
func (c *Client) NextPracticeQuestion(ctx context.Context) (*PracticeQuestion, error) {
	var out PracticeQuestion
	if err := c.postJSON(ctx, "/next_question", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitPracticeAudio uploads a practice-mode answer against a question id
func (c *Client) SubmitPracticeAudio(ctx context.Context, audio []byte, questionID int) (*PracticeResult, error) {
	fields := map[string]string{"question_id": strconv.Itoa(questionID)}
	return c.submitLegacyAudio(ctx, "/audio", audio, fields)
}

// SubmitJobAudio uploads a job-specific practice answer
func (c *Client) SubmitJobAudio(ctx context.Context, audio []byte, jobID, questionIndex int) (*PracticeResult, error) {
	fields := map[string]string{
		"job_id":         strconv.Itoa(jobID),
		"question_index": strconv.Itoa(questionIndex),
	}
	return c.submitLegacyAudio(ctx, "/job_audio", audio, fields)
}

func (c *Client) submitLegacyAudio(ctx context.Context, path string, audio []byte, fields map[string]string) (*PracticeResult, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", "answer.webm")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write %s field: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	var out PracticeResult
	if err := c.postMultipart(ctx, path, &buf, writer.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("backend rejected answer: %s", out.Error)
	}
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return c.do(httpReq, path, out)
}

func (c *Client) postMultipart(ctx context.Context, path string, body io.Reader, contentType string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	return c.do(httpReq, path, out)
}

func (c *Client) do(httpReq *http.Request, path string, out any) error {
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().Int("status", resp.StatusCode).Str("path", path).Str("body", string(data)).Msg("Backend error")
		// Error bodies may still carry a structured {error} field
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &failure) == nil && failure.Error != "" {
			return fmt.Errorf("backend error: %s", failure.Error)
		}
		return fmt.Errorf("backend error: status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
