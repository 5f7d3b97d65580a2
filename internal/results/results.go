// Package results appends finished quizzes to the answer logs, the summary
// spreadsheet and the history database.
package results

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/pavelanni/flashquiz/internal/model"
)

// DateLayout is the timestamp format used in logs and the summary table.
const DateLayout = "2006-01-02 15:04"

// HistoryRecorder stores a completed quiz; *store.Store satisfies it.
type HistoryRecorder interface {
	SaveResult(r model.QuizResult) error
}

// Paths lists the output files.
type Paths struct {
	CorrectLog   string
	IncorrectLog string
	SummaryTable string
}

// Persister writes quiz results. Outputs are independent: a failure in one
// does not stop the others.
type Persister struct {
	paths   Paths
	history HistoryRecorder
}

// New creates a Persister. history may be nil.
func New(paths Paths, history HistoryRecorder) *Persister {
	return &Persister{paths: paths, history: history}
}

// Save appends the session to every output and returns all write failures
// joined together.
func (p *Persister) Save(sum model.Summary) error {
	date := sum.FinishedAt.Format(DateLayout)
	var errs []error

	if err := appendLog(p.paths.CorrectLog, date, sum.CorrectEntries); err != nil {
		errs = append(errs, fmt.Errorf("write correct answers: %w", err))
	}
	if err := appendLog(p.paths.IncorrectLog, date, sum.IncorrectEntries); err != nil {
		errs = append(errs, fmt.Errorf("write incorrect answers: %w", err))
	}

	row := SummaryRow{
		Date:           date,
		IncorrectCount: sum.IncorrectCount,
		CorrectCount:   sum.CorrectCount,
	}
	if err := AppendSummaryRow(p.paths.SummaryTable, row); err != nil {
		errs = append(errs, fmt.Errorf("write summary table: %w", err))
	}

	if p.history != nil {
		result := model.QuizResult{
			ID:         uuid.NewString(),
			StartedAt:  sum.StartedAt,
			FinishedAt: sum.FinishedAt,
			DeckPath:   sum.DeckPath,
			Correct:    sum.CorrectCount,
			Incorrect:  sum.IncorrectCount,
			Total:      sum.Total(),
			Answers:    sum.Answers,
		}
		if err := p.history.SaveResult(result); err != nil {
			errs = append(errs, fmt.Errorf("write history: %w", err))
		} else {
			slog.Info("recorded quiz result", "id", result.ID)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		slog.Error("saving results failed", "error", err)
	} else {
		slog.Info("saved results",
			"date", date,
			"correct", sum.CorrectCount,
			"incorrect", sum.IncorrectCount,
		)
	}
	return err
}

// appendLog writes a dated block of transcript entries.
func appendLog(path, date string, entries []string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("\nDate: " + date + "\n")
	for _, e := range entries {
		sb.WriteString(e + "\n")
	}

	if _, err := f.WriteString(sb.String()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
