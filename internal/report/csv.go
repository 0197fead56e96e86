package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// csvHeaders defines the CSV column order.
var csvHeaders = []string{
	"query",
	"cycle_id",
	"rank",
	"url",
	"started_at",
	"duration_ms",
	"kind",
	"error",
}

// WriteCSV writes one row per image URL. A failed search, or one that found
// nothing, still gets a single row with an empty url.
func WriteCSV(w io.Writer, rep Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeaders); err != nil {
		return fmt.Errorf("report: write csv: %w", err)
	}

	for _, e := range rep.Entries {
		row := func(rank int, u string) []string {
			r := ""
			if rank > 0 {
				r = strconv.Itoa(rank)
			}
			return []string{
				e.Query,
				e.ID,
				r,
				u,
				e.StartedAt.Format(time.RFC3339Nano),
				strconv.FormatInt(e.Duration.Milliseconds(), 10),
				e.Kind,
				e.Error,
			}
		}

		if len(e.Items) == 0 {
			if err := cw.Write(row(0, "")); err != nil {
				return fmt.Errorf("report: write csv: %w", err)
			}
			continue
		}
		for i, u := range e.Items {
			if err := cw.Write(row(i+1, u)); err != nil {
				return fmt.Errorf("report: write csv: %w", err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: write csv: %w", err)
	}
	return nil
}
