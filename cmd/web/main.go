package main

import (
	"embed"
	"io/fs"
	"log/slog"
	"os"

	"salesdash/internal/app"
)

// Dashboard template and static assets
//
//go:embed all:frontend/*
var frontendFiles embed.FS

func main() {
	var frontendFS fs.FS
	if frontendSubFS, err := fs.Sub(frontendFiles, "frontend"); err == nil {
		frontendFS = frontendSubFS
	} else {
		slog.Warn("Frontend embedding failed", slog.String("error", err.Error()))
	}

	application, err := app.NewApplication(frontendFS)
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
