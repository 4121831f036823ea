package services

import "errors"

// Training service errors
var (
	// Run errors
	ErrRunFailed    = errors.New("run failed")
	ErrInvalidRunID = errors.New("invalid run id")

	// Artifact errors
	ErrNoPreprocessedData = errors.New("preprocessed data not available")
)
