// Package memory keeps exported reports in process, for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"financeiro/internal/core"
	"financeiro/internal/sheets"
)

type key struct {
	user core.ID
	year int
}

type Store struct {
	mu      sync.Mutex
	reports map[key]sheets.YearReport
	writes  int
}

var (
	_ sheets.ReportWriter = (*Store)(nil)
	_ sheets.ReportReader = (*Store)(nil)
)

func New() *Store {
	return &Store{reports: map[key]sheets.YearReport{}}
}

func (s *Store) WriteYearReport(_ context.Context, r sheets.YearReport) error {
	if r.UserID.IsZero() {
		return fmt.Errorf("report without user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Categories = append([]sheets.CategoryRow(nil), r.Categories...)
	s.reports[key{r.UserID, r.Year}] = r
	s.writes++
	return nil
}

func (s *Store) ReadYearReport(_ context.Context, userID core.ID, year int) (sheets.YearReport, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[key{userID, year}]
	return r, ok, nil
}

// Writes counts successful writes.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
