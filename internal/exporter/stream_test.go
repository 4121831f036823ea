package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTable struct {
	names []string
	rows  [][]string
}

func (f fakeTable) Names() []string       { return f.names }
func (f fakeTable) Rows() int             { return len(f.rows) }
func (f fakeTable) Record(i int) []string { return f.rows[i] }

func numberedTable(n int) fakeTable {
	t := fakeTable{names: []string{"Store", "Sales", "Date"}}
	for i := 0; i < n; i++ {
		t.rows = append(t.rows, []string{strconv.Itoa(i + 1), strconv.Itoa(i * 10), "2015-07-31"})
	}
	return t
}

func TestStreamWriter_PublishesOnClose(t *testing.T) {
	writer, paths := setupTestEnv(t)

	stream, err := writer.CreateStreamWriter("stream.csv", StreamOptions{Headers: []string{"a", "b"}})
	require.NoError(t, err)
	require.NoError(t, stream.WriteRecord([]string{"1", "2"}))

	dest := paths.GetReportPath("stream.csv")
	assert.NoFileExists(t, dest, "destination appears only on close")

	artifact, err := stream.Close()
	require.NoError(t, err)

	assert.Equal(t, dest, artifact.Path)
	assert.Equal(t, 1, artifact.Rows)
	assert.Equal(t, int64(len("a,b\n1,2\n")), artifact.Size)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(content))

	entries, err := os.ReadDir(paths.ReportsDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")

	_, err = stream.Close()
	assert.Error(t, err)
}

func TestStreamWriter_Abort(t *testing.T) {
	writer, paths := setupTestEnv(t)

	stream, err := writer.CreateStreamWriter("aborted.csv", StreamOptions{Headers: []string{"a"}})
	require.NoError(t, err)
	require.NoError(t, stream.WriteRecord([]string{"1"}))
	stream.Abort()

	assert.NoFileExists(t, paths.GetReportPath("aborted.csv"))
	entries, err := os.ReadDir(paths.ReportsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStreamWriter_ETagMatchesFile(t *testing.T) {
	writer, _ := setupTestEnv(t)

	artifact, err := writer.WriteTable(context.Background(), "table.csv", numberedTable(25))
	require.NoError(t, err)

	fromFile, err := FileETag(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, fromFile, artifact.ETag)
	assert.Regexp(t, `^"[0-9a-f]{32}"$`, artifact.ETag)

	other, err := writer.WriteTable(context.Background(), "other.csv", numberedTable(26))
	require.NoError(t, err)
	assert.NotEqual(t, artifact.ETag, other.ETag)
}

func TestWriteTable(t *testing.T) {
	tests := []struct {
		name string
		rows int
	}{
		{"empty table", 0},
		{"small table", 3},
		{"crosses the cancellation check interval", cancelCheckEvery + 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer, paths := setupTestEnv(t)
			src := numberedTable(tt.rows)

			artifact, err := writer.WriteTable(context.Background(), "Preprocessed_sales_data.csv", src)
			require.NoError(t, err)
			assert.Equal(t, tt.rows, artifact.Rows)

			records := readCSV(t, paths.GetReportPath("Preprocessed_sales_data.csv"))
			require.Len(t, records, tt.rows+1)
			assert.Equal(t, src.names, records[0])
			if tt.rows > 0 {
				assert.Equal(t, src.rows[tt.rows-1], records[tt.rows])
			}
		})
	}
}

func TestWriteTableCancelled(t *testing.T) {
	writer, paths := setupTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := writer.WriteTable(ctx, "cancelled.csv", numberedTable(10))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(paths.ReportsDir, "cancelled.csv"))
}

func TestFileETagMissingFile(t *testing.T) {
	_, err := FileETag(filepath.Join(t.TempDir(), fmt.Sprintf("missing-%d.csv", 1)))
	assert.Error(t, err)
}
