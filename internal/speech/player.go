// Package speech coordinates utterance synthesis and playback lifecycle.
// The audio sink is the browser; playback start/end events flow back in and
// are re-published on the bus, where they drive the avatar's talk overlay.
package speech

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/prepmate/prepmate/internal/bus"
	"github.com/rs/zerolog"
)

// ErrNoSink means no playback sink is connected
var ErrNoSink = errors.New("no playback sink connected")

// Sink receives synthesized audio for playback
type Sink interface {
	Play(ctx context.Context, utteranceID string, audio []byte) error
}

// Synthesizer converts text into a playable audio payload
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player tracks the single current utterance. Starting a new utterance
// supersedes the previous one; lifecycle events for superseded utterances
// are ignored.
type Player struct {
	mu sync.Mutex

	sink  Sink
	synth Synthesizer

	currentID string
	speaking  bool

	eventBus *bus.EventBus
	logger   zerolog.Logger
}

// NewPlayer creates a playback coordinator
func NewPlayer(synth Synthesizer, sink Sink, eventBus *bus.EventBus, logger zerolog.Logger) *Player {
	return &Player{
		sink:     sink,
		synth:    synth,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "speech").Logger(),
	}
}

// SetSink replaces the playback sink (e.g. on client reconnect)
func (p *Player) SetSink(sink Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

// Speak synthesizes text and sends it to the sink. Returns the utterance id.
func (p *Player) Speak(ctx context.Context, text string) (string, error) {
	audio, err := p.synth.Synthesize(ctx, text)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()

	p.mu.Lock()
	prevID := p.currentID
	wasSpeaking := p.speaking
	p.currentID = id
	p.speaking = false
	sink := p.sink
	p.mu.Unlock()

	// A new utterance implicitly supersedes the previous one
	if wasSpeaking {
		p.publish(bus.EventTypePlaybackEnded, prevID)
	}

	if sink == nil {
		return "", ErrNoSink
	}
	if err := sink.Play(ctx, id, audio); err != nil {
		return "", err
	}

	p.logger.Debug().Str("utterance", id).Int("bytes", len(audio)).Msg("Utterance dispatched")
	return id, nil
}

// HandlePlaybackStarted processes a playback-started report from the sink
func (p *Player) HandlePlaybackStarted(utteranceID string) {
	p.mu.Lock()
	current := p.currentID == utteranceID
	if current {
		p.speaking = true
	}
	p.mu.Unlock()

	if !current {
		p.logger.Debug().Str("utterance", utteranceID).Msg("Ignoring stale playback start")
		return
	}
	p.publish(bus.EventTypePlaybackStarted, utteranceID)
}

// HandlePlaybackEnded processes a playback-ended report from the sink
func (p *Player) HandlePlaybackEnded(utteranceID string) {
	p.mu.Lock()
	current := p.currentID == utteranceID && p.speaking
	if current {
		p.speaking = false
	}
	p.mu.Unlock()

	if !current {
		return
	}
	p.publish(bus.EventTypePlaybackEnded, utteranceID)
}

// HandlePlaybackFailed processes a playback failure report from the sink
func (p *Player) HandlePlaybackFailed(utteranceID, message string) {
	p.mu.Lock()
	current := p.currentID == utteranceID
	if current {
		p.speaking = false
	}
	p.mu.Unlock()

	if !current {
		return
	}
	p.logger.Warn().Str("utterance", utteranceID).Str("error", message).Msg("Playback failed")
	p.publish(bus.EventTypePlaybackFailed, utteranceID)
}

// IsSpeaking reports whether the current utterance is playing
func (p *Player) IsSpeaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}

func (p *Player) publish(eventType bus.EventType, utteranceID string) {
	if p.eventBus == nil {
		return
	}
	p.eventBus.Publish(bus.Event{
		Type: eventType,
		Data: map[string]any{"utterance_id": utteranceID},
	})
}
