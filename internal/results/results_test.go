package results

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/flashquiz/internal/model"
)

type fakeHistory struct {
	saved []model.QuizResult
	err   error
}

func (h *fakeHistory) SaveResult(r model.QuizResult) error {
	if h.err != nil {
		return h.err
	}
	h.saved = append(h.saved, r)
	return nil
}

func testPaths(t *testing.T) Paths {
	t.Helper()
	dir := t.TempDir()
	return Paths{
		CorrectLog:   filepath.Join(dir, "correct_answers.txt"),
		IncorrectLog: filepath.Join(dir, "incorrect_answers.txt"),
		SummaryTable: filepath.Join(dir, "quiz_results.xlsx"),
	}
}

func testSummary(finished time.Time, correct, incorrect int) model.Summary {
	sum := model.Summary{
		StartedAt:      finished.Add(-time.Minute),
		FinishedAt:     finished,
		CorrectCount:   correct,
		IncorrectCount: incorrect,
	}
	for range correct {
		sum.CorrectEntries = append(sum.CorrectEntries, "Q: Capital of France?\nA: Paris\n")
	}
	for range incorrect {
		sum.IncorrectEntries = append(sum.IncorrectEntries, "Q: Largest planet?\nA: Jupiter\n")
	}
	return sum
}

func TestSaveWritesAllOutputs(t *testing.T) {
	paths := testPaths(t)
	history := &fakeHistory{}
	p := New(paths, history)

	finished := time.Date(2026, 2, 3, 14, 5, 0, 0, time.Local)
	if err := p.Save(testSummary(finished, 1, 2)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	correct, err := os.ReadFile(paths.CorrectLog)
	if err != nil {
		t.Fatal(err)
	}
	wantCorrect := "\nDate: 2026-02-03 14:05\nQ: Capital of France?\nA: Paris\n\n"
	if string(correct) != wantCorrect {
		t.Errorf("correct log = %q, want %q", correct, wantCorrect)
	}

	incorrect, err := os.ReadFile(paths.IncorrectLog)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(incorrect), "Q: Largest planet?") != 2 {
		t.Errorf("incorrect log missing entries: %q", incorrect)
	}

	rows, err := ReadSummary(paths.SummaryTable)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	want := SummaryRow{Date: "2026-02-03 14:05", IncorrectCount: 2, CorrectCount: 1}
	if len(rows) != 1 || rows[0] != want {
		t.Errorf("summary rows = %+v, want [%+v]", rows, want)
	}

	if len(history.saved) != 1 {
		t.Fatalf("history saved %d results, want 1", len(history.saved))
	}
	if h := history.saved[0]; h.ID == "" || h.Total != 3 || h.Correct != 1 {
		t.Errorf("unexpected history record %+v", h)
	}
}

func TestSaveAppendsAcrossSessions(t *testing.T) {
	paths := testPaths(t)
	p := New(paths, nil)

	first := time.Date(2026, 2, 3, 9, 0, 0, 0, time.Local)
	if err := p.Save(testSummary(first, 3, 0)); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := p.Save(testSummary(first.Add(time.Hour), 1, 2)); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	f, err := excelize.OpenFile(paths.SummaryTable)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	raw, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 3 {
		t.Fatalf("expected header + 2 rows, got %d rows: %v", len(raw), raw)
	}
	headers := 0
	for _, r := range raw {
		if len(r) > 0 && r[0] == "Date" {
			headers++
		}
	}
	if headers != 1 {
		t.Errorf("header written %d times, want 1", headers)
	}
	if raw[0][1] != "Incorrect Count" || raw[0][2] != "Correct Count" {
		t.Errorf("unexpected header %v", raw[0])
	}
	if raw[1][0] != "2026-02-03 09:00" || raw[2][0] != "2026-02-03 10:00" {
		t.Errorf("rows out of order or overwritten: %v", raw[1:])
	}

	correct, err := os.ReadFile(paths.CorrectLog)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(correct), "Date: ") != 2 {
		t.Errorf("expected two dated blocks, got %q", correct)
	}
}

func TestSummaryTableCreatedWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.xlsx")
	if _, err := os.Stat(path); err == nil {
		t.Fatal("file should not exist yet")
	}

	if err := AppendSummaryRow(path, SummaryRow{Date: "2026-01-01 00:00", IncorrectCount: 0, CorrectCount: 5}); err != nil {
		t.Fatalf("AppendSummaryRow: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	raw, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 2 || raw[0][0] != "Date" || raw[1][2] != "5" {
		t.Errorf("unexpected sheet %v", raw)
	}
}

func TestSummaryTableEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := AppendSummaryRow(path, SummaryRow{Date: "2026-01-01 00:00", CorrectCount: 1}); err != nil {
		t.Fatalf("AppendSummaryRow on empty file: %v", err)
	}
	rows, err := ReadSummary(path)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(rows))
	}
}

func TestSaveReportsFailuresWithoutStopping(t *testing.T) {
	paths := testPaths(t)
	paths.CorrectLog = filepath.Join(t.TempDir(), "missing-dir", "correct.txt")
	history := &fakeHistory{err: errors.New("database is locked")}
	p := New(paths, history)

	err := p.Save(testSummary(time.Now(), 1, 1))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "correct answers") || !strings.Contains(err.Error(), "history") {
		t.Errorf("error should name both failed outputs: %v", err)
	}

	// The outputs that could be written still were.
	if _, err := os.Stat(paths.IncorrectLog); err != nil {
		t.Errorf("incorrect log not written: %v", err)
	}
	rows, err := ReadSummary(paths.SummaryTable)
	if err != nil || len(rows) != 1 {
		t.Errorf("summary not written: rows=%v err=%v", rows, err)
	}
}
