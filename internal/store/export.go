package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/flashquiz/internal/model"
)

// ExportAllResults builds an export of every stored result with its answers.
func (s *Store) ExportAllResults() (model.HistoryExport, error) {
	results, err := s.ListResults(0)
	if err != nil {
		return model.HistoryExport{}, fmt.Errorf("list results: %w", err)
	}

	for i := range results {
		answers, err := s.GetAnswers(results[i].ID)
		if err != nil {
			return model.HistoryExport{}, fmt.Errorf("get answers for %s: %w", results[i].ID, err)
		}
		results[i].Answers = answers
	}

	stats, err := s.Stats()
	if err != nil {
		return model.HistoryExport{}, fmt.Errorf("stats: %w", err)
	}

	return model.HistoryExport{
		ExportedAt: time.Now(),
		Stats:      stats,
		Results:    results,
	}, nil
}
