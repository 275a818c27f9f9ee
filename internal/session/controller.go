package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/prepmate/prepmate/internal/api"
	"github.com/prepmate/prepmate/internal/audio"
	"github.com/prepmate/prepmate/internal/avatar"
	"github.com/prepmate/prepmate/internal/bus"
	"github.com/prepmate/prepmate/internal/evaluate"
	"github.com/rs/zerolog"
)

// Controller owns all interview session state. External inputs (user
// actions, playback reports, server responses) arrive as method calls and
// the outcomes are published on the event bus; state flags checked under
// the mutex serve as the single-writer lock.
type Controller struct {
	mu sync.Mutex

	cfg   Config
	state State
	mode  InputMode

	questionIndex int
	lastQuestion  string
	lastUtterance string
	log           []LogEntry

	backend     Backend
	speaker     Speaker
	recorder    VoiceRecorder
	expressions Expressions

	eventBus *bus.EventBus
	logger   zerolog.Logger
}

// NewController creates an idle flow controller in voice mode
func NewController(cfg Config, backend Backend, speaker Speaker, recorder VoiceRecorder, expressions Expressions, eventBus *bus.EventBus, logger zerolog.Logger) *Controller {
	if cfg.TotalQuestions <= 0 {
		cfg = DefaultConfig()
	}
	c := &Controller{
		cfg:         cfg,
		state:       StateIdle,
		mode:        ModeVoice,
		backend:     backend,
		speaker:     speaker,
		recorder:    recorder,
		expressions: expressions,
		eventBus:    eventBus,
		logger:      logger.With().Str("component", "session").Logger(),
	}
	if recorder != nil {
		recorder.SetSubmitHandler(c.handleVoiceSubmission)
	}
	return c
}

// State returns the current flow state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Mode returns the active input mode
func (c *Controller) Mode() InputMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Active reports whether a session is in progress
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateIdle && c.state != StateFinished
}

// Log returns a copy of the appended answer records
func (c *Controller) Log() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LogEntry, len(c.log))
	copy(out, c.log)
	return out
}

// QuestionIndex returns the zero-based index of the current question
func (c *Controller) QuestionIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.questionIndex
}

// CurrentQuestion returns the last-served question text
func (c *Controller) CurrentQuestion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastQuestion
}

// LastUtterance returns the last spoken intro+question text
func (c *Controller) LastUtterance() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUtterance
}

// Start begins a new interview session. Rejected while one is active.
func (c *Controller) Start(ctx context.Context, jobTitle, company string) error {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateFinished {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.state = StateStarting
	c.questionIndex = 0
	c.log = nil
	c.lastQuestion = ""
	c.lastUtterance = ""
	c.mu.Unlock()

	c.publishControls(false, false)
	c.publish(bus.EventTypeSessionStarted, map[string]any{
		"job_title": jobTitle,
		"company":   company,
	})

	payload, err := c.backend.StartInterview(ctx, api.StartInterviewRequest{
		JobTitle: jobTitle,
		Company:  company,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to start interview")
		c.revertToIdle(err.Error())
		return err
	}

	if err := c.presentQuestion(ctx, payload.Intro, payload.Question); err != nil {
		c.revertToIdle(err.Error())
		return err
	}
	return nil
}

// ToggleMode switches between voice and text answering. Ignored while a
// recording is in progress.
func (c *Controller) ToggleMode(mode InputMode) {
	if mode != ModeVoice && mode != ModeText {
		return
	}
	if c.recorder != nil && c.recorder.IsRecording() {
		c.logger.Debug().Msg("Mode toggle ignored during recording")
		return
	}

	c.mu.Lock()
	changed := c.mode != mode
	c.mode = mode
	c.mu.Unlock()

	if changed {
		c.publish(bus.EventTypeSessionMode, map[string]any{"mode": string(mode)})
	}
}

// StartRecording begins capturing a voice answer. No-op unless the session
// is awaiting an answer in voice mode.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateAwaitingAnswer {
		c.mu.Unlock()
		return ErrSessionInactive
	}
	if c.mode != ModeVoice {
		c.mu.Unlock()
		return ErrWrongMode
	}
	question := c.lastQuestion
	c.mu.Unlock()

	return c.recorder.Start(ctx, question)
}

// StopRecording finalizes the capture; the recorder hands the blob back via
// the submit handler, which drives evaluation.
func (c *Controller) StopRecording(ctx context.Context) error {
	return c.recorder.Stop(ctx)
}

// SubmitText submits a typed answer. No-op unless awaiting an answer in
// text mode.
func (c *Controller) SubmitText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.state != StateAwaitingAnswer {
		c.mu.Unlock()
		return ErrSessionInactive
	}
	if c.mode != ModeText {
		c.mu.Unlock()
		return ErrWrongMode
	}
	c.state = StateEvaluating
	question := c.lastQuestion
	c.mu.Unlock()

	c.setExpression(avatar.BaseThink)
	resp, err := c.backend.SubmitTextAnswer(ctx, text, question)
	c.handleEvaluation(ctx, question, resp, err)
	return err
}

// Repeat replays the last spoken utterance without altering sequence state.
// Ignored if nothing has been spoken yet.
func (c *Controller) Repeat(ctx context.Context) {
	c.mu.Lock()
	utterance := c.lastUtterance
	c.mu.Unlock()

	if utterance == "" {
		return
	}
	if _, err := c.speaker.Speak(ctx, utterance); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to repeat utterance")
	}
}

// handleVoiceSubmission receives the finalized blob from the recorder
func (c *Controller) handleVoiceSubmission(ctx context.Context, sub audio.Submission) {
	c.mu.Lock()
	if c.state != StateAwaitingAnswer {
		c.mu.Unlock()
		c.logger.Debug().Msg("Dropping voice submission outside awaiting state")
		return
	}
	c.state = StateEvaluating
	c.mu.Unlock()

	c.setExpression(avatar.BaseThink)
	resp, err := c.backend.SubmitVoiceAnswer(ctx, sub.Audio, sub.Question)
	c.handleEvaluation(ctx, sub.Question, resp, err)
}

// handleEvaluation appends the answer record and advances the session, or
// surfaces an inline error while keeping the session active.
func (c *Controller) handleEvaluation(ctx context.Context, question string, resp *api.AnswerResponse, err error) {
	if err != nil {
		c.logger.Error().Err(err).Msg("Evaluation failed")
		c.mu.Lock()
		c.state = StateAwaitingAnswer
		c.mu.Unlock()
		c.setExpression(avatar.BaseListen)
		c.publish(bus.EventTypeSessionError, map[string]any{"error": err.Error()})
		return
	}

	evaluation := resp.Evaluation
	if evaluation.FinalScore == nil && resp.Transcript != "" {
		// Backend returned a transcript without scores; fall back to the
		// offline scorer so the log entry still carries an evaluation.
		local := evaluate.Answer(question, "", resp.Transcript)
		evaluation = api.Evaluation{
			RelevanceScore:  &local.RelevanceScore,
			ConfidenceScore: &local.ConfidenceScore,
			FinalScore:      &local.FinalScore,
			FeedbackText:    local.FeedbackText,
		}
	}

	entry := LogEntry{
		ID:         uuid.NewString(),
		Question:   question,
		Transcript: resp.Transcript,
		Evaluation: evaluation,
	}

	c.mu.Lock()
	c.log = append(c.log, entry)
	c.questionIndex++
	c.mu.Unlock()

	c.publish(bus.EventTypeSessionLogEntry, map[string]any{"entry": entry})
	c.advance(ctx)
}

// advance fetches the next question or finishes the session
func (c *Controller) advance(ctx context.Context) {
	next, err := c.backend.NextQuestion(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to fetch next question")
		c.mu.Lock()
		c.state = StateAwaitingAnswer
		c.mu.Unlock()
		c.setExpression(avatar.BaseListen)
		c.publish(bus.EventTypeSessionError, map[string]any{"error": err.Error()})
		return
	}

	if next.Done {
		c.finish(next.Message)
		return
	}

	if err := c.presentQuestion(ctx, next.Intro, next.Question); err != nil {
		c.mu.Lock()
		c.state = StateAwaitingAnswer
		c.mu.Unlock()
		c.setExpression(avatar.BaseListen)
		c.publish(bus.EventTypeSessionError, map[string]any{"error": err.Error()})
	}
}

// presentQuestion renders and speaks one question, then awaits the answer
func (c *Controller) presentQuestion(ctx context.Context, intro, question string) error {
	utterance := strings.TrimSpace(strings.TrimSpace(intro) + " " + strings.TrimSpace(question))

	c.mu.Lock()
	c.lastQuestion = question
	c.lastUtterance = utterance
	index := c.questionIndex
	total := c.cfg.TotalQuestions
	c.mu.Unlock()

	c.publish(bus.EventTypeSessionQuestion, map[string]any{
		"question": question,
		"index":    index,
		"total":    total,
	})

	if _, err := c.speaker.Speak(ctx, utterance); err != nil {
		return err
	}

	// Playback has been issued; answer collection opens regardless of
	// whether it finishes
	c.mu.Lock()
	c.state = StateAwaitingAnswer
	c.mu.Unlock()

	c.setExpression(avatar.BaseListen)
	c.publishControls(false, true)
	return nil
}

// finish moves the session to its terminal state
func (c *Controller) finish(message string) {
	c.mu.Lock()
	c.state = StateFinished
	c.lastQuestion = ""
	c.lastUtterance = ""
	c.mu.Unlock()

	c.setExpression(avatar.BaseNeutral)
	c.publish(bus.EventTypeSessionDone, map[string]any{"message": message})
	c.publishControls(true, false)
	c.logger.Info().Msg("Interview finished")
}

// revertToIdle undoes a failed start
func (c *Controller) revertToIdle(message string) {
	c.mu.Lock()
	c.state = StateIdle
	c.lastQuestion = ""
	c.lastUtterance = ""
	c.mu.Unlock()

	c.setExpression(avatar.BaseNeutral)
	c.publish(bus.EventTypeSessionError, map[string]any{"error": message})
	c.publishControls(true, false)
}

func (c *Controller) setExpression(mode avatar.BaseMode) {
	if c.expressions != nil {
		c.expressions.SetBase(mode)
	}
}

func (c *Controller) publish(eventType bus.EventType, data map[string]any) {
	if c.eventBus == nil {
		return
	}
	c.eventBus.Publish(bus.Event{Type: eventType, Data: data})
}

func (c *Controller) publishControls(startEnabled, repeatEnabled bool) {
	c.publish(bus.EventTypeSessionControls, map[string]any{
		"start_enabled":  startEnabled,
		"repeat_enabled": repeatEnabled,
	})
}
