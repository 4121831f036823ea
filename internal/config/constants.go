package config

import "time"

// Application constants
const (
	AppName    = "Sales Forecast Dashboard"
	AppVersion = "1.0.0"

	// Dataset identifiers on Google Drive
	DefaultTrainFileID = "1Isp2tA7MnXcNu9le5Lu7wwJNP7Kt67Ky"
	DefaultStoreFileID = "1V8tjbvPiC0mI1AF4M4PajYPDt6orWv4e"
	DefaultURLTemplate = "https://drive.google.com/uc?id=%s"

	// Local file names
	TrainFileName        = "train.csv"
	StoreFileName        = "store.csv"
	PreprocessedFileName = "Preprocessed_sales_data.csv"
	LogFileName          = "dashboard.log"

	// PreviewRows is how many preprocessed rows the dashboard shows
	PreviewRows = 5

	// Directories (relative to the base directory)
	DefaultDataDir      = "data"
	DefaultDownloadsDir = "data/downloads"
	DefaultReportsDir   = "data/reports"
	DefaultLogsDir      = "logs"

	// Split and training
	DefaultTestSize  = 0.2
	DefaultSeed      = 42
	DefaultBatchSize = 64

	// Timeouts
	DefaultDownloadTimeout = 10 * time.Minute
	DefaultRunTimeout      = 2 * time.Hour
	DefaultRunRetention    = 24 * time.Hour

	// WebSocket
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second
)
