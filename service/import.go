package service

import (
	"context"
	"errors"
)

type ImportRow struct {
	Number int
	Cafe   NewCafe
}

type ImportSkip struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type ImportReport struct {
	Added   int          `json:"added"`
	Skipped []ImportSkip `json:"skipped"`
}

// Import creates each row independently. Rows rejected for missing fields or
// duplicate names are reported and skipped; a store failure stops the import
// and returns what was added so far.
func (s *CafeService) Import(ctx context.Context, rows []ImportRow) (ImportReport, error) {
	report := ImportReport{Skipped: []ImportSkip{}}

	for _, row := range rows {
		_, err := s.Create(ctx, row.Cafe)
		if err == nil {
			report.Added++
			continue
		}

		var missing *MissingFieldError
		var dup *DuplicateNameError
		if errors.As(err, &missing) || errors.As(err, &dup) {
			report.Skipped = append(report.Skipped, ImportSkip{Row: row.Number, Error: err.Error()})
			continue
		}
		return report, err
	}

	s.logger.InfoContext(ctx, "cafe import finished", "added", report.Added, "skipped", len(report.Skipped))
	return report, nil
}
