package store

// schema is the application's relational model. Child rows follow their
// owner on delete, except prep reports and daily winner rows: those keep
// their content after account deletion with the user reference nulled out.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	username   TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_providers (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	provider TEXT NOT NULL,
	subject  TEXT NOT NULL,
	UNIQUE (provider, subject)
);

CREATE TABLE IF NOT EXISTS daily_questions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	question     TEXT NOT NULL,
	ideal_answer TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	title   TEXT NOT NULL,
	company TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS job_questions (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id   INTEGER NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	question TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS answers (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	source      TEXT NOT NULL CHECK (source IN ('daily', 'generic', 'job')),
	question    TEXT NOT NULL,
	answer_text TEXT NOT NULL,
	final_score REAL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_answers_user ON answers(user_id);

CREATE TABLE IF NOT EXISTS prep_reports (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER REFERENCES users(id) ON DELETE SET NULL,
	job_title  TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS courses (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS lessons (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	title     TEXT NOT NULL,
	body      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quizzes (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	lesson_id INTEGER NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
	question  TEXT NOT NULL,
	answer    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS badges (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	awarded_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS streak_history (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	day     TEXT NOT NULL,
	UNIQUE (user_id, day)
);

CREATE TABLE IF NOT EXISTS daily_winners (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	day     TEXT NOT NULL UNIQUE,
	user_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
	score   REAL NOT NULL
);
`
