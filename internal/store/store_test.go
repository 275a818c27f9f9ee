package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "prepmate.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_AppliesSchema(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}

func TestDeleteUser_CascadesChildRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	userID, err := s.CreateUser(ctx, "riley", "riley@example.com")
	require.NoError(t, err)

	_, err = s.LinkAuthProvider(ctx, userID, "google", "sub-123")
	require.NoError(t, err)
	_, err = s.RecordAnswer(ctx, userID, SourceDaily, "q", "a", 71.2)
	require.NoError(t, err)
	_, err = s.AwardBadge(ctx, userID, "first-answer")
	require.NoError(t, err)
	_, err = s.RecordStreakDay(ctx, userID, "2026-08-30")
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, userID))

	answers, err := s.CountAnswers(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, answers)

	badges, err := s.CountBadges(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, badges)

	streaks, err := s.CountStreakDays(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, streaks)

	providers, err := s.CountAuthProviders(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, providers)
}

func TestDeleteUser_PrepReportsSurvive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	userID, err := s.CreateUser(ctx, "morgan", "morgan@example.com")
	require.NoError(t, err)

	reportID, err := s.SavePrepReport(ctx, userID, "Backend Engineer", "report body")
	require.NoError(t, err)

	owner, err := s.PrepReportUser(ctx, reportID)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, userID, *owner)

	require.NoError(t, s.DeleteUser(ctx, userID))

	owner, err = s.PrepReportUser(ctx, reportID)
	require.NoError(t, err)
	assert.Nil(t, owner, "report keeps its content with the user reference nulled")
}

func TestDeleteUser_WinnerRowsSurvive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	userID, err := s.CreateUser(ctx, "casey", "casey@example.com")
	require.NoError(t, err)

	winnerID, err := s.RecordWinner(ctx, "2026-08-30", userID, 94.5)
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, userID))

	owner, err := s.WinnerUser(ctx, winnerID)
	require.NoError(t, err)
	assert.Nil(t, owner)
}

func TestDeleteJob_CascadesQuestions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	jobID, err := s.AddJob(ctx, "Backend Engineer", "Acme")
	require.NoError(t, err)
	_, err = s.AddJobQuestion(ctx, jobID, 0, "Why Acme?")
	require.NoError(t, err)
	_, err = s.AddJobQuestion(ctx, jobID, 1, "Describe a hard bug.")
	require.NoError(t, err)

	require.NoError(t, s.DeleteJob(ctx, jobID))

	n, err := s.CountJobQuestions(ctx, jobID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteCourse_CascadesLessonsAndQuizzes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	courseID, err := s.CreateCourse(ctx, "Interview Basics")
	require.NoError(t, err)
	lessonID, err := s.AddLesson(ctx, courseID, 0, "STAR method", "body")
	require.NoError(t, err)
	_, err = s.AddQuiz(ctx, lessonID, "What does STAR stand for?", "Situation Task Action Result")
	require.NoError(t, err)

	require.NoError(t, s.DeleteCourse(ctx, courseID))

	lessons, err := s.CountLessons(ctx, courseID)
	require.NoError(t, err)
	assert.Zero(t, lessons)

	quizzes, err := s.CountQuizzes(ctx, lessonID)
	require.NoError(t, err)
	assert.Zero(t, quizzes)
}

func TestRecordAnswer_RejectsUnknownSource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	userID, err := s.CreateUser(ctx, "drew", "drew@example.com")
	require.NoError(t, err)

	_, err = s.RecordAnswer(ctx, userID, AnswerSource("mystery"), "q", "a", 0)
	assert.Error(t, err)
}

func TestRecordStreakDay_UniquePerDay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	userID, err := s.CreateUser(ctx, "sam", "sam@example.com")
	require.NoError(t, err)

	_, err = s.RecordStreakDay(ctx, userID, "2026-08-30")
	require.NoError(t, err)
	_, err = s.RecordStreakDay(ctx, userID, "2026-08-30")
	assert.Error(t, err)
}

func TestEnsureUser_ReturnsSameID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.EnsureUser(ctx, "local")
	require.NoError(t, err)

	second, err := s.EnsureUser(ctx, "local")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
