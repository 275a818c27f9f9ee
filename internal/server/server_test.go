package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepmate/prepmate/internal/bus"
	"github.com/prepmate/prepmate/internal/session"
)

type fakeFlow struct {
	mu       sync.Mutex
	started  []string
	modes    []session.InputMode
	texts    []string
	recStart int
	recStop  int
	repeats  int
}

func (f *fakeFlow) Start(_ context.Context, jobTitle, company string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, jobTitle+"/"+company)
	return nil
}

func (f *fakeFlow) ToggleMode(mode session.InputMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modes = append(f.modes, mode)
}

func (f *fakeFlow) StartRecording(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recStart++
	return nil
}

func (f *fakeFlow) StopRecording(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recStop++
	return nil
}

func (f *fakeFlow) SubmitText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeFlow) Repeat(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repeats++
}

type fakePlayback struct {
	mu      sync.Mutex
	started []string
	ended   []string
	failed  []string
}

func (f *fakePlayback) HandlePlaybackStarted(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, id)
}

func (f *fakePlayback) HandlePlaybackEnded(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, id)
}

func (f *fakePlayback) HandlePlaybackFailed(id, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, id+":"+msg)
}

type fakeChunks struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (f *fakeChunks) Append(chunk []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, chunk)
}

func newTestServer() (*Server, *fakeFlow, *fakePlayback, *fakeChunks, *bus.EventBus) {
	eventBus := bus.NewEventBus()
	srv := NewServer("*", eventBus, zerolog.Nop())
	flow := &fakeFlow{}
	playback := &fakePlayback{}
	chunks := &fakeChunks{}
	srv.Bind(flow, playback, chunks)
	return srv, flow, playback, chunks, eventBus
}

func TestDispatch_RoutesClientMessages(t *testing.T) {
	srv, flow, playback, chunks, _ := newTestServer()
	ctx := context.Background()

	srv.dispatch(ctx, ClientMessage{Type: MsgStartInterview, JobTitle: "SRE", Company: "Acme"})
	srv.dispatch(ctx, ClientMessage{Type: MsgToggleMode, Mode: "text"})
	srv.dispatch(ctx, ClientMessage{Type: MsgStartRecording})
	srv.dispatch(ctx, ClientMessage{
		Type:  MsgAudioChunk,
		Audio: base64.StdEncoding.EncodeToString([]byte{1, 2, 3}),
	})
	srv.dispatch(ctx, ClientMessage{Type: MsgStopRecording})
	srv.dispatch(ctx, ClientMessage{Type: MsgTextAnswer, Text: "my answer"})
	srv.dispatch(ctx, ClientMessage{Type: MsgRepeat})
	srv.dispatch(ctx, ClientMessage{Type: MsgPlaybackStarted, UtteranceID: "u1"})
	srv.dispatch(ctx, ClientMessage{Type: MsgPlaybackEnded, UtteranceID: "u1"})
	srv.dispatch(ctx, ClientMessage{Type: MsgPlaybackFailed, UtteranceID: "u2", Error: "decode"})

	assert.Equal(t, []string{"SRE/Acme"}, flow.started)
	assert.Equal(t, []session.InputMode{session.ModeText}, flow.modes)
	assert.Equal(t, 1, flow.recStart)
	assert.Equal(t, 1, flow.recStop)
	assert.Equal(t, []string{"my answer"}, flow.texts)
	assert.Equal(t, 1, flow.repeats)
	assert.Equal(t, []string{"u1"}, playback.started)
	assert.Equal(t, []string{"u1"}, playback.ended)
	assert.Equal(t, []string{"u2:decode"}, playback.failed)
	require.Len(t, chunks.chunks, 1)
	assert.Equal(t, []byte{1, 2, 3}, chunks.chunks[0])
}

func TestDispatch_DropsBadAudioChunk(t *testing.T) {
	srv, _, _, chunks, _ := newTestServer()

	srv.dispatch(context.Background(), ClientMessage{Type: MsgAudioChunk, Audio: "not base64!!"})

	assert.Empty(t, chunks.chunks)
}

func TestAcquire_NoClient(t *testing.T) {
	srv, _, _, _, _ := newTestServer()

	err := srv.Acquire(context.Background())

	assert.ErrorIs(t, err, ErrNoClient)
}

func TestHealthz(t *testing.T) {
	srv, _, _, _, _ := newTestServer()
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebSocket_RoundTrip(t *testing.T) {
	srv, flow, _, _, eventBus := newTestServer()
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Client -> server: start an interview.
	msg, err := json.Marshal(ClientMessage{Type: MsgStartInterview, JobTitle: "Dev", Company: "Init"})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, msg))

	require.Eventually(t, func() bool {
		flow.mu.Lock()
		defer flow.mu.Unlock()
		return len(flow.started) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Server -> client: a question event reaches the page.
	eventBus.PublishSync(bus.Event{
		Type: bus.EventTypeSessionQuestion,
		Data: map[string]any{"question": "Tell me about yourself", "index": 0, "total": 10},
	})

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var got ServerMessage
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, MsgQuestion, got.Type)
	assert.Equal(t, "Tell me about yourself", got.Question)
	assert.Equal(t, 10, got.Total)
}

func TestPlay_DeliversSpeakMessage(t *testing.T) {
	srv, _, _, _, _ := newTestServer()
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Wait for the connection to register before playing.
	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.conn != nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Play(ctx, "u1", []byte("audio-bytes")))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var got ServerMessage
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, MsgSpeak, got.Type)
	assert.Equal(t, "u1", got.UtteranceID)

	decoded, err := base64.StdEncoding.DecodeString(got.Audio)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-bytes"), decoded)
}
