package records

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// CSVStore reads record sources from headed CSV files in a directory,
// one file per source (e.g. credit_scores.csv). The first read of each
// source snapshots the file; later reads return the cached rows.
type CSVStore struct {
	dir string

	mu    sync.Mutex
	cache map[Source][]Record
}

func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{
		dir:   dir,
		cache: make(map[Source][]Record),
	}
}

func (s *CSVStore) Read(ctx context.Context, src Source) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rows, ok := s.cache[src]; ok {
		return rows, nil
	}

	path := filepath.Join(s.dir, string(src)+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening record source %s: %w", src, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	raw, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading record source %s: %w", src, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("record source %s: empty file", src)
	}

	cols := make(map[string]int, len(raw[0]))
	for i, name := range raw[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["id"]; !ok {
		return nil, fmt.Errorf("record source %s: missing ID column", src)
	}

	field := func(row []string, name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return "", false
		}
		return row[i], true
	}

	rows := make([]Record, 0, len(raw)-1)
	for _, line := range raw[1:] {
		rec := Record{}
		if v, ok := field(line, "id"); ok {
			rec.ID = strings.TrimSpace(v)
		}
		if rec.ID == "" {
			continue
		}
		if v, ok := field(line, "name"); ok {
			rec.Name = Clean(v)
		}
		if v, ok := field(line, "email"); ok {
			rec.Email = Clean(v)
		}
		if v, ok := field(line, "nationality"); ok {
			rec.Nationality = Clean(v)
		}
		if v, ok := field(line, "accountstatus"); ok {
			rec.AccountStatus = Clean(v)
		}
		if v, ok := field(line, "prstatus"); ok {
			rec.PRStatus = Clean(v)
		}
		if v, ok := field(line, "creditscore"); ok {
			score, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				log.Warn().Str("source", string(src)).Str("id", rec.ID).
					Str("value", v).Msg("Skipping non-numeric credit score")
			} else {
				rec.CreditScore = score
				rec.HasCreditScore = true
			}
		}
		rows = append(rows, rec)
	}

	s.cache[src] = rows
	return rows, nil
}
