package problems

import (
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed dataset.csv
var embeddedDataset string

// Columns the dataset must provide.
var datasetColumns = []string{"title", "description", "difficulty", "related_topics"}

// EmbeddedDataset returns the built-in problem set.
func EmbeddedDataset() ([]Problem, error) {
	return ParseCSV(strings.NewReader(embeddedDataset))
}

// LoadDataset reads a CSV problem set from path.
func LoadDataset(path string) ([]Problem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV reads problems from r. The header row names the columns; extra
// columns are ignored. Rows without a title are skipped.
func ParseCSV(r io.Reader) ([]Problem, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range datasetColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("dataset is missing column %q", col)
		}
	}

	field := func(rec []string, col string) string {
		i := idx[col]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []Problem
	for n := 1; ; n++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset record %d: %w", n, err)
		}
		title := field(rec, "title")
		if title == "" {
			continue
		}
		out = append(out, Problem{
			Title:       title,
			Description: field(rec, "description"),
			Difficulty:  field(rec, "difficulty"),
			Topic:       field(rec, "related_topics"),
		})
	}
	return out, nil
}
