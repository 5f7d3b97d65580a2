package store

import (
	"database/sql"
	"fmt"

	"github.com/pavelanni/flashquiz/internal/model"

	_ "modernc.org/sqlite"
)

// Store keeps the history of completed quizzes.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS quiz_results (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		deck_path TEXT NOT NULL DEFAULT '',
		correct INTEGER NOT NULL DEFAULT 0,
		incorrect INTEGER NOT NULL DEFAULT 0,
		total INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS quiz_answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		result_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		question TEXT NOT NULL,
		expected TEXT NOT NULL,
		recognized TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		FOREIGN KEY (result_id) REFERENCES quiz_results(id)
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveResult stores a completed quiz with its answers.
func (s *Store) SaveResult(r model.QuizResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO quiz_results (id, started_at, finished_at, deck_path, correct, incorrect, total)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt, r.FinishedAt, r.DeckPath, r.Correct, r.Incorrect, r.Total,
	)
	if err != nil {
		return err
	}

	for _, a := range r.Answers {
		_, err := tx.Exec(
			`INSERT INTO quiz_answers (result_id, position, question, expected, recognized, outcome)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, a.Position, a.Question, a.Expected, a.Recognized, a.Outcome,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListResults returns the most recent results first, without answers.
// A limit of 0 or less returns all results.
func (s *Store) ListResults(limit int) ([]model.QuizResult, error) {
	query := `SELECT id, started_at, finished_at, deck_path, correct, incorrect, total
		FROM quiz_results ORDER BY finished_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.QuizResult
	for rows.Next() {
		var r model.QuizResult
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.DeckPath, &r.Correct, &r.Incorrect, &r.Total); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetResult returns a result with its answers, or nil if it does not exist.
func (s *Store) GetResult(id string) (*model.QuizResult, error) {
	var r model.QuizResult
	err := s.db.QueryRow(
		`SELECT id, started_at, finished_at, deck_path, correct, incorrect, total
		 FROM quiz_results WHERE id = ?`, id,
	).Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.DeckPath, &r.Correct, &r.Incorrect, &r.Total)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.Answers, err = s.GetAnswers(id)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetAnswers returns the answers of a result in question order.
func (s *Store) GetAnswers(resultID string) ([]model.Answer, error) {
	rows, err := s.db.Query(
		`SELECT position, question, expected, recognized, outcome
		 FROM quiz_answers WHERE result_id = ? ORDER BY position`, resultID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.Position, &a.Question, &a.Expected, &a.Recognized, &a.Outcome); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ResultCount returns the number of stored results.
func (s *Store) ResultCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM quiz_results`).Scan(&count)
	return count, err
}

// Stats aggregates all stored results.
func (s *Store) Stats() (model.HistoryStats, error) {
	var st model.HistoryStats
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(correct), 0), COALESCE(SUM(incorrect), 0) FROM quiz_results`,
	).Scan(&st.Quizzes, &st.Correct, &st.Incorrect)
	if err != nil {
		return st, err
	}
	if total := st.Correct + st.Incorrect; total > 0 {
		st.Accuracy = float64(st.Correct) * 100 / float64(total)
	}
	return st, nil
}
