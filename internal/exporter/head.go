package exporter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadHead returns the header and at most n data rows of the CSV file at
// path. Only the rows returned are read from disk.
func ReadHead(path string, n int) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%s has no header row", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], string(utf8BOM))
	}

	rows := make([][]string, 0, n)
	for len(rows) < n {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row %d of %s: %w", len(rows)+1, path, err)
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}
