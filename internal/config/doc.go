// Package config provides centralized configuration management for the
// sales dashboard. It loads settings from defaults, an optional YAML file
// and the environment, validates them, and resolves every file system path
// the application touches.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern SALESDASH_<SECTION>_<FIELD>:
//
//	SALESDASH_SERVER_PORT=8080
//	SALESDASH_LOGGING_LEVEL=debug
//	SALESDASH_DATA_DRIVE_API_KEY=...
//	SALESDASH_PIPELINE_SCALE_BEFORE_SPLIT=false
//	SALESDASH_TRAINING_WORKERS=2
//
// # Path Management
//
// The Paths type is the single source of truth for file locations. All
// paths hang off a base directory which defaults to the executable
// directory:
//
//	paths, _ := config.GetPaths()
//	train := paths.TrainCSV()
//	out := paths.PreprocessedCSV()
package config
