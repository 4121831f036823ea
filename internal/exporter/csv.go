package exporter

import (
	"encoding/csv"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"salesdash/internal/config"
)

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(paths *config.Paths, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{paths: paths, logger: logger}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// StreamOptions configures a StreamWriter
type StreamOptions struct {
	Headers   []string
	BOMPrefix bool
}

// Artifact describes a file produced by a StreamWriter
type Artifact struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	Rows    int       `json:"rows"`
	ETag    string    `json:"etag"`
	ModTime time.Time `json:"mod_time"`
}

// StreamWriter provides streaming CSV writing for large datasets. Output
// goes to a temporary sibling file that is renamed over the destination on
// Close.
type StreamWriter struct {
	path    string
	file    *os.File
	writer  *csv.Writer
	counter *countingWriter
	hash    hash.Hash
	rows    int
	closed  bool
}

// CreateStreamWriter creates a new streaming CSV writer
func (w *CSVWriter) CreateStreamWriter(filePath string, options StreamOptions) (*StreamWriter, error) {
	fullPath := w.resolvePath(filePath)

	w.logger.Debug("Creating CSV stream writer",
		slog.String("full_path", fullPath),
		slog.Int("header_count", len(options.Headers)))

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.CreateTemp(dir, filepath.Base(fullPath)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	h := newContentHash()
	counter := &countingWriter{w: io.MultiWriter(file, h)}
	s := &StreamWriter{
		path:    fullPath,
		file:    file,
		writer:  csv.NewWriter(counter),
		counter: counter,
		hash:    h,
	}

	if options.BOMPrefix {
		if _, err := counter.Write(utf8BOM); err != nil {
			s.Abort()
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}
	if len(options.Headers) > 0 {
		if err := s.writer.Write(options.Headers); err != nil {
			s.Abort()
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}
	return s, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	if err := s.writer.Write(record); err != nil {
		return err
	}
	s.rows++
	return nil
}

// Close flushes the stream and moves the file into place
func (s *StreamWriter) Close() (Artifact, error) {
	if s.closed {
		return Artifact{}, fmt.Errorf("stream writer already closed")
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.Abort()
		return Artifact{}, err
	}
	tmp := s.file.Name()
	if err := s.file.Close(); err != nil {
		os.Remove(tmp)
		s.closed = true
		return Artifact{}, err
	}
	s.closed = true
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return Artifact{}, fmt.Errorf("failed to move file into place: %w", err)
	}

	return Artifact{
		Path:    s.path,
		Size:    s.counter.n,
		Rows:    s.rows,
		ETag:    formatETag(s.hash.Sum(nil)),
		ModTime: time.Now().UTC(),
	}, nil
}

// Abort discards everything written so far
func (s *StreamWriter) Abort() {
	if s.closed {
		return
	}
	s.closed = true
	s.file.Close()
	os.Remove(s.file.Name())
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// resolvePath maps relative names into the report or download directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	if strings.HasPrefix(filePath, "downloads/") {
		return w.paths.GetDownloadPath(strings.TrimPrefix(filePath, "downloads/"))
	}
	return w.paths.GetReportPath(filePath)
}
