// Package avatar manages the avatar's expression state and animations
package avatar

import (
	"math/rand"
	"sync"
	"time"

	"github.com/prepmate/prepmate/internal/bus"
	"github.com/rs/zerolog"
)

// Expression is one of the closed set of renderable avatar frames
type Expression string

const (
	ExpressionNeutral     Expression = "neutral"
	ExpressionBlink       Expression = "blink"
	ExpressionMouthClosed Expression = "mouth_closed"
	ExpressionMouthHalf   Expression = "mouth_half"
	ExpressionMouthOpen   Expression = "mouth_open"
	ExpressionListen      Expression = "listen"
	ExpressionThink       Expression = "think"
)

// BaseMode is the avatar's resting state absent talk/blink overlays
type BaseMode string

const (
	BaseNeutral BaseMode = "neutral"
	BaseListen  BaseMode = "listen"
	BaseThink   BaseMode = "think"
)

// Expression returns the frame rendered for this base mode
func (m BaseMode) Expression() Expression {
	switch m {
	case BaseListen:
		return ExpressionListen
	case BaseThink:
		return ExpressionThink
	default:
		return ExpressionNeutral
	}
}

// Frames maps each expression to its registered image resource
type Frames map[Expression]string

// DefaultFrames returns the stock frame set
func DefaultFrames() Frames {
	return Frames{
		ExpressionNeutral:     "avatar/neutral.png",
		ExpressionBlink:       "avatar/blink.png",
		ExpressionMouthClosed: "avatar/mouth_closed.png",
		ExpressionMouthHalf:   "avatar/mouth_half.png",
		ExpressionMouthOpen:   "avatar/mouth_open.png",
		ExpressionListen:      "avatar/listen.png",
		ExpressionThink:       "avatar/think.png",
	}
}

// Config holds animation timings
type Config struct {
	MouthInterval time.Duration `mapstructure:"mouth_interval"`
	BlinkMin      time.Duration `mapstructure:"blink_min"`
	BlinkMax      time.Duration `mapstructure:"blink_max"`
	BlinkDuration time.Duration `mapstructure:"blink_duration"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MouthInterval: 120 * time.Millisecond,
		BlinkMin:      2500 * time.Millisecond,
		BlinkMax:      6500 * time.Millisecond,
		BlinkDuration: 140 * time.Millisecond,
	}
}

// mouthCycle is the repeating frame sequence used to simulate speech
var mouthCycle = []Expression{
	ExpressionMouthClosed,
	ExpressionMouthHalf,
	ExpressionMouthOpen,
	ExpressionMouthHalf,
}

// Engine drives the avatar's displayed expression.
// At any instant the displayed frame is a pure function of
// {talking, blinking, base mode}.
type Engine struct {
	mu sync.Mutex

	cfg    Config
	frames Frames

	base       BaseMode
	current    Expression
	talking    bool
	blinking   bool
	mouthPhase int

	mouthStop  chan struct{}
	blinkTimer *time.Timer
	stopped    bool

	eventBus *bus.EventBus
	logger   zerolog.Logger

	onChange func(Expression, string)
}

// NewEngine creates an expression engine in the neutral resting state
func NewEngine(cfg Config, frames Frames, eventBus *bus.EventBus, logger zerolog.Logger) *Engine {
	if frames == nil {
		frames = DefaultFrames()
	}
	return &Engine{
		cfg:      cfg,
		frames:   frames,
		base:     BaseNeutral,
		current:  ExpressionNeutral,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "avatar").Logger(),
	}
}

// SetChangeHandler sets the callback invoked on every frame change
func (e *Engine) SetChangeHandler(handler func(expr Expression, frame string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = handler
}

// Start begins the blink scheduler
func (e *Engine) Start() {
	e.mu.Lock()
	e.stopped = false
	e.scheduleBlinkLocked()
	e.mu.Unlock()
	e.logger.Info().Msg("Avatar engine started")
}

// Stop halts all animation timers
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	if e.blinkTimer != nil {
		e.blinkTimer.Stop()
		e.blinkTimer = nil
	}
	if e.mouthStop != nil {
		close(e.mouthStop)
		e.mouthStop = nil
	}
	e.talking = false
	e.blinking = false
	e.mu.Unlock()
	e.logger.Info().Msg("Avatar engine stopped")
}

// Current returns the displayed expression
func (e *Engine) Current() Expression {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Base returns the current base mode
func (e *Engine) Base() BaseMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.base
}

// SetBase sets the persistent resting mode. It takes effect immediately
// unless a talk or blink overlay is active, in which case it is applied
// when the overlay ends.
func (e *Engine) SetBase(mode BaseMode) {
	e.mu.Lock()
	e.base = mode
	deferred := e.talking || e.blinking
	var changed bool
	var expr Expression
	var frame string
	if !deferred {
		expr, frame, changed = e.setExpressionLocked(mode.Expression())
	}
	e.mu.Unlock()

	if deferred {
		e.logger.Debug().Str("mode", string(mode)).Msg("Base expression deferred until overlay ends")
		return
	}
	if changed {
		e.notify(expr, frame)
	}
}

// StartTalking begins the periodic mouth cycle. No-op while already talking.
func (e *Engine) StartTalking() {
	e.mu.Lock()
	if e.talking || e.stopped {
		e.mu.Unlock()
		return
	}
	e.talking = true
	e.mouthPhase = 0
	expr, frame, changed := e.setExpressionLocked(mouthCycle[0])
	stop := make(chan struct{})
	e.mouthStop = stop
	interval := e.cfg.MouthInterval
	e.mu.Unlock()

	if changed {
		e.notify(expr, frame)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.advanceMouth()
			}
		}
	}()
}

// StopTalking ends the mouth cycle and restores the base expression
// unless a blink overlay is in progress.
func (e *Engine) StopTalking() {
	e.mu.Lock()
	if !e.talking {
		e.mu.Unlock()
		return
	}
	e.talking = false
	if e.mouthStop != nil {
		close(e.mouthStop)
		e.mouthStop = nil
	}
	var changed bool
	var expr Expression
	var frame string
	if !e.blinking {
		expr, frame, changed = e.setExpressionLocked(e.base.Expression())
	}
	e.mu.Unlock()

	if changed {
		e.notify(expr, frame)
	}
}

// IsTalking reports whether the mouth cycle is active
func (e *Engine) IsTalking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.talking
}

// advanceMouth moves to the next mouth-cycle frame
func (e *Engine) advanceMouth() {
	e.mu.Lock()
	if !e.talking {
		e.mu.Unlock()
		return
	}
	e.mouthPhase = (e.mouthPhase + 1) % len(mouthCycle)
	expr, frame, changed := e.setExpressionLocked(mouthCycle[e.mouthPhase])
	e.mu.Unlock()

	if changed {
		e.notify(expr, frame)
	}
}

// fireBlink is invoked by the blink timer. Talking takes priority: if the
// mouth cycle is active the blink is rescheduled without showing the frame.
func (e *Engine) fireBlink() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	if e.talking {
		e.scheduleBlinkLocked()
		e.mu.Unlock()
		return
	}
	e.blinking = true
	expr, frame, changed := e.setExpressionLocked(ExpressionBlink)
	duration := e.cfg.BlinkDuration
	e.mu.Unlock()

	if changed {
		e.notify(expr, frame)
	}

	time.AfterFunc(duration, e.endBlink)
}

// endBlink restores the base expression and reschedules the next blink
func (e *Engine) endBlink() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.blinking = false
	var changed bool
	var expr Expression
	var frame string
	if !e.talking {
		expr, frame, changed = e.setExpressionLocked(e.base.Expression())
	}
	e.scheduleBlinkLocked()
	e.mu.Unlock()

	if changed {
		e.notify(expr, frame)
	}
}

// scheduleBlinkLocked arms the blink timer with a randomized delay.
// Caller must hold e.mu.
func (e *Engine) scheduleBlinkLocked() {
	if e.blinkTimer != nil {
		e.blinkTimer.Stop()
	}
	delay := e.cfg.BlinkMin
	if span := e.cfg.BlinkMax - e.cfg.BlinkMin; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	e.blinkTimer = time.AfterFunc(delay, e.fireBlink)
}

// setExpressionLocked updates the displayed frame. Caller must hold e.mu.
func (e *Engine) setExpressionLocked(expr Expression) (Expression, string, bool) {
	if e.current == expr {
		return expr, e.frames[expr], false
	}
	e.current = expr
	return expr, e.frames[expr], true
}

// notify publishes a frame change to the handler and the event bus
func (e *Engine) notify(expr Expression, frame string) {
	e.mu.Lock()
	handler := e.onChange
	e.mu.Unlock()

	if handler != nil {
		handler(expr, frame)
	}
	if e.eventBus != nil {
		e.eventBus.Publish(bus.Event{
			Type: bus.EventTypeAvatarFrameChanged,
			Data: map[string]any{
				"expression": string(expr),
				"frame":      frame,
			},
		})
	}
}
