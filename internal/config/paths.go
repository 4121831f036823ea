package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the application paths
// This is the single source of truth for ALL file paths in the application
type Paths struct {
	BaseDir      string
	DataDir      string
	DownloadsDir string
	ReportsDir   string
	LogsDir      string
}

// GetPaths returns the application paths relative to the executable location
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	return NewPaths(filepath.Dir(exe)), nil
}

// NewPaths lays out the directory tree under baseDir:
//
//	<base>/
//	  ├── data/
//	  │   ├── downloads/   (train.csv, store.csv)
//	  │   └── reports/     (Preprocessed_sales_data.csv)
//	  └── logs/
func NewPaths(baseDir string) *Paths {
	return &Paths{
		BaseDir:      baseDir,
		DataDir:      filepath.Join(baseDir, DefaultDataDir),
		DownloadsDir: filepath.Join(baseDir, DefaultDownloadsDir),
		ReportsDir:   filepath.Join(baseDir, DefaultReportsDir),
		LogsDir:      filepath.Join(baseDir, DefaultLogsDir),
	}
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.DownloadsDir,
		p.ReportsDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// GetDownloadPath returns the path for a downloaded file
func (p *Paths) GetDownloadPath(filename string) string {
	return filepath.Join(p.DownloadsDir, filename)
}

// GetReportPath returns the path for a generated report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// TrainCSV is the local copy of the transaction table
func (p *Paths) TrainCSV() string { return p.GetDownloadPath(TrainFileName) }

// StoreCSV is the local copy of the store metadata table
func (p *Paths) StoreCSV() string { return p.GetDownloadPath(StoreFileName) }

// PreprocessedCSV is where the feature pipeline writes its output table
func (p *Paths) PreprocessedCSV() string { return p.GetReportPath(PreprocessedFileName) }

// LogPathResolution logs the resolved layout once at startup
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Path resolution",
		slog.String("base_dir", p.BaseDir),
		slog.String("downloads_dir", p.DownloadsDir),
		slog.String("reports_dir", p.ReportsDir),
		slog.String("logs_dir", p.LogsDir))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
