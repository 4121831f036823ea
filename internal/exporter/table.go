package exporter

import (
	"context"
	"fmt"
	"log/slog"
)

// RecordSource is a row-addressable table
type RecordSource interface {
	Names() []string
	Rows() int
	Record(i int) []string
}

// cancelCheckEvery is how many rows are written between context checks
const cancelCheckEvery = 10000

// WriteTable streams src to filePath with a header row and no index
// column. The destination is replaced atomically.
func (w *CSVWriter) WriteTable(ctx context.Context, filePath string, src RecordSource) (Artifact, error) {
	stream, err := w.CreateStreamWriter(filePath, StreamOptions{Headers: src.Names()})
	if err != nil {
		return Artifact{}, err
	}

	for i := 0; i < src.Rows(); i++ {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				stream.Abort()
				return Artifact{}, err
			}
		}
		if err := stream.WriteRecord(src.Record(i)); err != nil {
			stream.Abort()
			return Artifact{}, fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	artifact, err := stream.Close()
	if err != nil {
		return Artifact{}, err
	}

	w.logger.InfoContext(ctx, "Table exported",
		slog.String("path", artifact.Path),
		slog.Int("rows", artifact.Rows),
		slog.Int64("bytes", artifact.Size),
		slog.String("etag", artifact.ETag))
	return artifact, nil
}
