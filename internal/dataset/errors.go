package dataset

import "errors"

var (
	// ErrDownload is returned when a remote table cannot be fetched
	ErrDownload = errors.New("dataset download failed")
	// ErrUnexpectedContent is returned when the remote store answers with
	// something that is not a CSV table (typically an HTML interstitial)
	ErrUnexpectedContent = errors.New("unexpected content from remote store")
	// ErrSchema is returned when an expected column is absent or has the
	// wrong kind
	ErrSchema = errors.New("schema mismatch")
)
