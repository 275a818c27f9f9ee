// Package store owns the application's relational schema.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// AnswerSource tags where an answer came from
type AnswerSource string

const (
	SourceDaily   AnswerSource = "daily"
	SourceGeneric AnswerSource = "generic"
	SourceJob     AnswerSource = "job"
)

// Store is the SQLite-backed schema owner
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open creates or opens the database at path and applies the schema
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer keeps the per-connection pragmas coherent
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser inserts a user and returns its id
func (s *Store) CreateUser(ctx context.Context, username, email string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, created_at) VALUES (?, ?, ?)`,
		username, email, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return res.LastInsertId()
}

// EnsureUser returns the id for username, creating the row if needed
func (s *Store) EnsureUser(ctx context.Context, username string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE username = ?`, username).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup user: %w", err)
	}
	return s.CreateUser(ctx, username, "")
}

// DeleteUser removes a user. Child rows (answers, badges, streaks, auth
// providers) cascade; prep reports and winner rows keep their content with
// the user reference nulled out.
func (s *Store) DeleteUser(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// LinkAuthProvider records an external auth identity for a user
func (s *Store) LinkAuthProvider(ctx context.Context, userID int64, provider, subject string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_providers (user_id, provider, subject) VALUES (?, ?, ?)`,
		userID, provider, subject)
	if err != nil {
		return 0, fmt.Errorf("link auth provider: %w", err)
	}
	return res.LastInsertId()
}

// AddDailyQuestion inserts a daily question
func (s *Store) AddDailyQuestion(ctx context.Context, question, idealAnswer string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_questions (question, ideal_answer) VALUES (?, ?)`,
		question, idealAnswer)
	if err != nil {
		return 0, fmt.Errorf("add daily question: %w", err)
	}
	return res.LastInsertId()
}

// AddJob inserts a job posting
func (s *Store) AddJob(ctx context.Context, title, company string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (title, company) VALUES (?, ?)`, title, company)
	if err != nil {
		return 0, fmt.Errorf("add job: %w", err)
	}
	return res.LastInsertId()
}

// AddJobQuestion inserts a question under a job posting
func (s *Store) AddJobQuestion(ctx context.Context, jobID int64, position int, question string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO job_questions (job_id, position, question) VALUES (?, ?, ?)`,
		jobID, position, question)
	if err != nil {
		return 0, fmt.Errorf("add job question: %w", err)
	}
	return res.LastInsertId()
}

// RecordAnswer appends an answer for a user
func (s *Store) RecordAnswer(ctx context.Context, userID int64, source AnswerSource, question, answerText string, finalScore float64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO answers (user_id, source, question, answer_text, final_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, string(source), question, answerText, finalScore, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("record answer: %w", err)
	}
	return res.LastInsertId()
}

// CountAnswers returns how many answers a user has recorded
func (s *Store) CountAnswers(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count answers: %w", err)
	}
	return n, nil
}

// SavePrepReport stores a generated prep report for a user
func (s *Store) SavePrepReport(ctx context.Context, userID int64, jobTitle, content string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO prep_reports (user_id, job_title, content, created_at) VALUES (?, ?, ?, ?)`,
		userID, jobTitle, content, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("save prep report: %w", err)
	}
	return res.LastInsertId()
}

// PrepReportUser returns the report's user reference, nil when detached
func (s *Store) PrepReportUser(ctx context.Context, reportID int64) (*int64, error) {
	var userID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM prep_reports WHERE id = ?`, reportID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("prep report user: %w", err)
	}
	if !userID.Valid {
		return nil, nil
	}
	return &userID.Int64, nil
}

// AwardBadge grants a badge to a user
func (s *Store) AwardBadge(ctx context.Context, userID int64, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO badges (user_id, name, awarded_at) VALUES (?, ?, ?)`,
		userID, name, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("award badge: %w", err)
	}
	return res.LastInsertId()
}

// RecordStreakDay appends one day to a user's streak history
func (s *Store) RecordStreakDay(ctx context.Context, userID int64, day string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO streak_history (user_id, day) VALUES (?, ?)`, userID, day)
	if err != nil {
		return 0, fmt.Errorf("record streak day: %w", err)
	}
	return res.LastInsertId()
}

// RecordWinner stores the daily winner
func (s *Store) RecordWinner(ctx context.Context, day string, userID int64, score float64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_winners (day, user_id, score) VALUES (?, ?, ?)`,
		day, userID, score)
	if err != nil {
		return 0, fmt.Errorf("record winner: %w", err)
	}
	return res.LastInsertId()
}

// WinnerUser returns the winner row's user reference, nil when detached
func (s *Store) WinnerUser(ctx context.Context, winnerID int64) (*int64, error) {
	var userID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM daily_winners WHERE id = ?`, winnerID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("winner user: %w", err)
	}
	if !userID.Valid {
		return nil, nil
	}
	return &userID.Int64, nil
}

// CreateCourse inserts a course
func (s *Store) CreateCourse(ctx context.Context, title string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO courses (title) VALUES (?)`, title)
	if err != nil {
		return 0, fmt.Errorf("create course: %w", err)
	}
	return res.LastInsertId()
}

// AddLesson inserts a lesson under a course
func (s *Store) AddLesson(ctx context.Context, courseID int64, position int, title, body string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO lessons (course_id, position, title, body) VALUES (?, ?, ?, ?)`,
		courseID, position, title, body)
	if err != nil {
		return 0, fmt.Errorf("add lesson: %w", err)
	}
	return res.LastInsertId()
}

// AddQuiz inserts a quiz under a lesson
func (s *Store) AddQuiz(ctx context.Context, lessonID int64, question, answer string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO quizzes (lesson_id, question, answer) VALUES (?, ?, ?)`,
		lessonID, question, answer)
	if err != nil {
		return 0, fmt.Errorf("add quiz: %w", err)
	}
	return res.LastInsertId()
}

// DeleteCourse removes a course; lessons and quizzes cascade
func (s *Store) DeleteCourse(ctx context.Context, courseID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, courseID); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// DeleteJob removes a job posting; its questions cascade
func (s *Store) DeleteJob(ctx context.Context, jobID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// CountBadges returns the badge count for a user
func (s *Store) CountBadges(ctx context.Context, userID int64) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM badges WHERE user_id = ?`, userID)
}

// CountStreakDays returns the streak row count for a user
func (s *Store) CountStreakDays(ctx context.Context, userID int64) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM streak_history WHERE user_id = ?`, userID)
}

// CountJobQuestions returns the question count under a job
func (s *Store) CountJobQuestions(ctx context.Context, jobID int64) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM job_questions WHERE job_id = ?`, jobID)
}

// CountLessons returns the lesson count under a course
func (s *Store) CountLessons(ctx context.Context, courseID int64) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM lessons WHERE course_id = ?`, courseID)
}

// CountQuizzes returns the quiz count under a lesson
func (s *Store) CountQuizzes(ctx context.Context, lessonID int64) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM quizzes WHERE lesson_id = ?`, lessonID)
}

// CountAuthProviders returns the linked identity count for a user
func (s *Store) CountAuthProviders(ctx context.Context, userID int64) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM auth_providers WHERE user_id = ?`, userID)
}
