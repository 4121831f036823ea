package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Fetcher makes sure the raw tables exist on disk
type Fetcher struct {
	downloader Downloader
	logger     *slog.Logger
	group      singleflight.Group

	// OnDownload, when set, is called after every completed download
	OnDownload func(ctx context.Context, src Source, bytes int64)
}

// NewFetcher creates a fetcher backed by downloader
func NewFetcher(downloader Downloader, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		downloader: downloader,
		logger:     logger.With(slog.String("component", "fetcher")),
	}
}

// Ensure downloads every source whose local file is missing. Files that
// already exist are left untouched without contacting the remote store.
// Concurrent callers asking for the same path share one download.
func (f *Fetcher) Ensure(ctx context.Context, sources ...Source) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		g.Go(func() error {
			_, err, _ := f.group.Do(src.Path, func() (interface{}, error) {
				return nil, f.ensureOne(gctx, src)
			})
			return err
		})
	}
	return g.Wait()
}

func (f *Fetcher) ensureOne(ctx context.Context, src Source) error {
	if _, err := os.Stat(src.Path); err == nil {
		f.logger.DebugContext(ctx, "dataset already present",
			slog.String("source", src.Name),
			slog.String("path", src.Path))
		return nil
	}

	dir := filepath.Dir(src.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrDownload, dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(src.Path)+".*.part")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrDownload, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	start := time.Now()
	f.logger.InfoContext(ctx, "downloading dataset",
		slog.String("source", src.Name),
		slog.String("file_id", src.FileID))

	n, err := f.downloader.Download(ctx, src.FileID, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: %v", ErrDownload, cerr)
	}
	if err != nil {
		f.logger.ErrorContext(ctx, "dataset download failed",
			slog.String("source", src.Name),
			slog.String("error", err.Error()))
		return fmt.Errorf("%s: %w", src.Name, err)
	}

	if err := os.Rename(tmpName, src.Path); err != nil {
		return fmt.Errorf("%w: move into place: %v", ErrDownload, err)
	}

	f.logger.InfoContext(ctx, "dataset downloaded",
		slog.String("source", src.Name),
		slog.String("path", src.Path),
		slog.Int64("bytes", n),
		slog.Duration("duration", time.Since(start)))

	if f.OnDownload != nil {
		f.OnDownload(ctx, src, n)
	}
	return nil
}
