package state

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// CSVHeader is the header row written by WriteCSV.
var CSVHeader = []string{"time", "level", "message", "context_json"}

// WriteCSV writes all log entries to w as CSV rows, oldest first, preceded by
// CSVHeader. Timestamps are formatted as RFC 3339 in UTC, and the entry
// context is encoded as a JSON object.
func (s *Store) WriteCSV(ctx context.Context, w io.Writer) error {
	entries, err := s.LogTail(ctx, 0)
	if err != nil {
		return err
	}

	return WriteCSV(w, entries)
}

// WriteCSV writes entries to w as CSV rows preceded by CSVHeader.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed writing CSV header: %w", err)
	}

	for _, e := range entries {
		ctxJSON := []byte("{}")
		if len(e.Context) > 0 {
			var err error
			if ctxJSON, err = json.Marshal(e.Context); err != nil {
				return fmt.Errorf("failed encoding log entry context: %w", err)
			}
		}
		row := []string{
			e.Time.UTC().Format(time.RFC3339), string(e.Level), e.Message, string(ctxJSON),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed writing CSV row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed writing CSV: %w", err)
	}

	return nil
}
