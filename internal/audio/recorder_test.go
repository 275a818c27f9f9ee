package audio

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	acquireErr error
	acquired   int
	released   int
}

func (f *fakeSource) Acquire(context.Context) error {
	if f.acquireErr != nil {
		return f.acquireErr
	}
	f.acquired++
	return nil
}

func (f *fakeSource) Release() { f.released++ }

func TestRecorder_StartStopCycle(t *testing.T) {
	src := &fakeSource{}
	r := NewRecorder(src, nil, zerolog.Nop())

	var got Submission
	r.SetSubmitHandler(func(_ context.Context, sub Submission) { got = sub })

	require.NoError(t, r.Start(context.Background(), "Tell me about yourself."))
	assert.True(t, r.IsRecording())

	r.Append([]byte("abc"))
	r.Append([]byte("def"))

	require.NoError(t, r.Stop(context.Background()))
	assert.False(t, r.IsRecording())

	assert.Equal(t, []byte("abcdef"), got.Audio)
	assert.Equal(t, "Tell me about yourself.", got.Question)
	assert.Equal(t, 1, src.acquired)
	assert.Equal(t, 1, src.released)
}

func TestRecorder_StartWhileActiveIsNoOp(t *testing.T) {
	src := &fakeSource{}
	r := NewRecorder(src, nil, zerolog.Nop())

	require.NoError(t, r.Start(context.Background(), "q1"))
	err := r.Start(context.Background(), "q2")
	assert.ErrorIs(t, err, ErrAlreadyRecording)
	assert.Equal(t, 1, src.acquired, "second start must not re-acquire the source")

	var got Submission
	r.SetSubmitHandler(func(_ context.Context, sub Submission) { got = sub })
	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, "q1", got.Question, "question context from first start wins")
}

func TestRecorder_StopWhileInactiveIsNoOp(t *testing.T) {
	src := &fakeSource{}
	r := NewRecorder(src, nil, zerolog.Nop())

	submissions := 0
	r.SetSubmitHandler(func(context.Context, Submission) { submissions++ })

	err := r.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotRecording)
	assert.Zero(t, submissions, "no duplicate submissions")
	assert.Zero(t, src.released, "no resource double-release")
}

func TestRecorder_DoubleStopSubmitsOnce(t *testing.T) {
	src := &fakeSource{}
	r := NewRecorder(src, nil, zerolog.Nop())

	submissions := 0
	r.SetSubmitHandler(func(context.Context, Submission) { submissions++ })

	require.NoError(t, r.Start(context.Background(), "q"))
	require.NoError(t, r.Stop(context.Background()))
	assert.ErrorIs(t, r.Stop(context.Background()), ErrNotRecording)

	assert.Equal(t, 1, submissions)
	assert.Equal(t, 1, src.released)
}

func TestRecorder_AccessDenied(t *testing.T) {
	src := &fakeSource{acquireErr: errors.New("permission denied")}
	r := NewRecorder(src, nil, zerolog.Nop())

	err := r.Start(context.Background(), "q")
	assert.ErrorIs(t, err, ErrCaptureUnavailable)
	assert.False(t, r.IsRecording())
}

func TestRecorder_ChunksOutsideRecordingDropped(t *testing.T) {
	r := NewRecorder(&fakeSource{}, nil, zerolog.Nop())

	r.Append([]byte("stray"))

	var got Submission
	r.SetSubmitHandler(func(_ context.Context, sub Submission) { got = sub })
	require.NoError(t, r.Start(context.Background(), "q"))
	r.Append([]byte("kept"))
	require.NoError(t, r.Stop(context.Background()))

	assert.Equal(t, []byte("kept"), got.Audio)
}

func TestRecorder_FreshBufferPerCycle(t *testing.T) {
	r := NewRecorder(&fakeSource{}, nil, zerolog.Nop())

	var got Submission
	r.SetSubmitHandler(func(_ context.Context, sub Submission) { got = sub })

	require.NoError(t, r.Start(context.Background(), "first"))
	r.Append([]byte("one"))
	require.NoError(t, r.Stop(context.Background()))

	require.NoError(t, r.Start(context.Background(), "second"))
	r.Append([]byte("two"))
	require.NoError(t, r.Stop(context.Background()))

	assert.Equal(t, []byte("two"), got.Audio)
	assert.Equal(t, "second", got.Question)
}
