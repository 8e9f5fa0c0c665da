package pricing

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"defi-strategy-lab/internal/domain"
)

// LoadPricesCSV reads a price history file. The format is a header row
// followed by token,timestamp,price records; timestamps are millisecond
// epochs, dates or RFC 3339. Rows may arrive in any order; each token's
// series comes back sorted by time.
func LoadPricesCSV(path string) (map[string][]domain.PricePoint, error) {
	rows, err := readSeriesRows(path)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]domain.PricePoint)
	for _, r := range rows {
		out[r.token] = append(out[r.token], domain.PricePoint{TimestampMs: r.tsMs, Price: r.value})
	}
	for token := range out {
		SortPoints(out[token])
	}
	return out, nil
}

// LoadVolumesCSV reads a volume history file with the same layout as
// LoadPricesCSV, the third column holding traded volume.
func LoadVolumesCSV(path string) (map[string][]domain.VolumePoint, error) {
	rows, err := readSeriesRows(path)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]domain.VolumePoint)
	for _, r := range rows {
		out[r.token] = append(out[r.token], domain.VolumePoint{TimestampMs: r.tsMs, Volume: r.value})
	}
	for token := range out {
		series := out[token]
		sort.Slice(series, func(i, j int) bool { return series[i].TimestampMs < series[j].TimestampMs })
	}
	return out, nil
}

type seriesRow struct {
	token string
	tsMs  int64
	value float64
}

func readSeriesRows(path string) ([]seriesRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReaderSize(f, 1<<20))
	r.ReuseRecord = true
	r.FieldsPerRecord = 3

	// Header row
	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}

	var rows []seriesRow
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		line++

		if rec[0] == "" {
			return nil, fmt.Errorf("%s line %d: empty token", path, line)
		}
		ts, err := parsePointTime(rec[1])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		v, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: parse value %q: %w", path, line, rec[2], err)
		}
		rows = append(rows, seriesRow{token: rec[0], tsMs: ts, value: v})
	}
	return rows, nil
}

// parsePointTime accepts the same forms as a backtest window bound.
func parsePointTime(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized time %q: want a date, RFC 3339 timestamp or millisecond epoch", s)
}
