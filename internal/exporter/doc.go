// Package exporter writes CSV artifacts under the application report and
// download directories.
//
// CSVWriter resolves names into those directories and hands out a
// StreamWriter, which writes row by row into a temporary file that only replaces the destination on
// Close, so readers never observe a half-written artifact, and it hashes
// the bytes as they go out to produce a strong ETag.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(paths, logger)
//	artifact, err := w.WriteTable(ctx, "Preprocessed_sales_data.csv", table)
//	// artifact.ETag can be served as the HTTP ETag of the file
package exporter
