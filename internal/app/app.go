package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"salesdash/internal/config"
	"salesdash/internal/dataset"
	"salesdash/internal/errors"
	"salesdash/internal/exporter"
	"salesdash/internal/infrastructure"
	customMiddleware "salesdash/internal/middleware"
	"salesdash/internal/operations"
	"salesdash/internal/services"
	handlers "salesdash/internal/transport/http"
	ws "salesdash/internal/websocket"
)

const AppName = "Sales Forecast Dashboard"

var (
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(config.AppVersion))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	FrontendFS    fs.FS // embedded dashboard, nil serves the API only
	WebSocketHub  *ws.Hub
	Manager       *operations.Manager
	JobQueue      *operations.JobQueue
	Services      *ServiceContainer

	metrics *infrastructure.BusinessMetrics
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Training *services.TrainingService
	Health   *services.HealthService
}

// NewApplication loads the configuration and builds the application
func NewApplication(frontendFS fs.FS) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return New(cfg, frontendFS)
}

// New builds the application from cfg. Nothing is started until Start.
func New(cfg *config.Config, frontendFS fs.FS) (*Application, error) {
	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = paths.GetLogPath(config.LogFileName)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", config.AppVersion),
		slog.String("build_id", BuildID))
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Observability), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		FrontendFS:    frontendFS,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to set up routes: %w", err)
	}

	app.createServer()

	return app, nil
}

// initializeServices wires the hub, the run manager with its steps, the job
// queue and the services on top of them
func (a *Application) initializeServices() error {
	metrics, err := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create business metrics: %w", err)
	}
	a.metrics = metrics

	hub := ws.NewHub(a.Config.WebSocket, a.Logger)
	hubMetrics, err := ws.NewOTelMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to initialize WebSocket metrics: %w", err)
	}
	hub.SetMetrics(hubMetrics)
	a.WebSocketHub = hub

	runConfig := operations.NewConfigBuilder().
		WithStageTimeout(operations.StepIDAcquisition, a.Config.Data.DownloadTimeout).
		WithStageTimeout(operations.StepIDTraining, a.Config.Training.RunTimeout).
		Build()
	manager := operations.NewManager(hub, nil, runConfig)
	manager.SetTracer(operations.NewOperationTracer(metrics))
	hub.SetSnapshotSource(manager.GetBroadcaster().GetAllSnapshots)
	a.Manager = manager

	downloader, err := newDownloader(a.Config.Data, a.Logger)
	if err != nil {
		return err
	}

	steps := operations.NewRunSteps(&operations.StageOptions{
		Paths:             a.Paths,
		Data:              a.Config.Data,
		Pipeline:          a.Config.Pipeline,
		Training:          a.Config.Training,
		Downloader:        downloader,
		Writer:            exporter.NewCSVWriter(a.Paths, a.Logger),
		StatusBroadcaster: manager.GetBroadcaster(),
		Metrics:           metrics,
		Logger:            a.Logger,
	})
	for _, step := range steps {
		if err := manager.RegisterStage(step); err != nil {
			return fmt.Errorf("failed to register step %s: %w", step.ID(), err)
		}
	}

	training := a.Config.Training
	a.JobQueue = operations.NewJobQueue(training.Workers, training.QueueSize, operations.NewMemoryJobStore(), manager, a.Logger)
	a.JobQueue.SetRunTimeout(training.RunTimeout)
	a.JobQueue.SetRetention(training.Retention)

	a.Services = &ServiceContainer{
		Training: services.NewTrainingService(a.JobQueue, manager, a.Paths, a.Logger),
		Health:   services.NewHealthService(config.AppVersion, BuildTime, a.Paths, a.JobQueue, hub, a.Logger),
	}

	return nil
}

// newDownloader uses the Drive API when a key is configured and the public
// URL template otherwise
func newDownloader(cfg config.DataConfig, logger *slog.Logger) (dataset.Downloader, error) {
	if cfg.DriveAPIKey != "" {
		d, err := dataset.NewDriveDownloader(context.Background(), cfg.DriveAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize drive downloader: %w", err)
		}
		logger.Info("Using Google Drive API for data acquisition")
		return d, nil
	}

	logger.Info("Using public download URL for data acquisition",
		slog.String("url_template", cfg.URLTemplate))
	return dataset.NewHTTPDownloader(cfg.URLTemplate, &http.Client{Timeout: cfg.DownloadTimeout}), nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() error {
	r := chi.NewRouter()
	errorHandler := errors.NewErrorHandler(a.Logger, false)

	// Only middleware that leaves the ResponseWriter alone, so the
	// WebSocket upgrade can hijack the connection
	r.Use(customMiddleware.RequestID)
	r.Use(middleware.RealIP)

	r.Handle("/ws", a.WebSocketHub)
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	var pages *handlers.PageHandler
	if a.FrontendFS != nil {
		var err error
		pages, err = handlers.NewPageHandler(a.FrontendFS, config.AppVersion, a.Logger)
		if err != nil {
			return err
		}
	}

	validator := customMiddleware.NewValidator(a.Logger)
	runs := handlers.NewRunsHandler(a.Services.Training, validator, errorHandler, a.Logger)
	data := handlers.NewDataHandler(a.Services.Training, errorHandler, a.Logger)
	health := handlers.NewHealthHandler(a.Services.Health, errorHandler, a.Logger)
	settings := handlers.NewConfigHandler(a.Logger)

	submit := []func(http.Handler) http.Handler{
		customMiddleware.ContentTypeValidator("application/json"),
	}
	if rl := a.Config.Server.RateLimit; rl.Enabled {
		submit = append(submit, customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
	}

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.metrics, a.Logger).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(errorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(a.corsConfig()))

		r.Get("/healthz", health.HealthCheck)
		r.Get("/healthz/ready", health.ReadinessCheck)
		r.Get("/healthz/live", health.LivenessCheck)

		if pages != nil {
			r.Get("/", pages.Index)
			r.Handle("/assets/*", pages.Assets())
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))

			// no request timeout: ?wait=true holds the request for the whole run
			r.Mount("/runs", runs.Routes(submit...))

			r.Group(func(r chi.Router) {
				r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))
				r.Mount("/config", settings.Routes())
				r.Mount("/data", data.Routes())
				r.Get("/version", health.Version)
				r.Get("/stats", health.Stats)
			})
		})
	})

	a.Router = r
	return nil
}

func (a *Application) corsConfig() customMiddleware.CORSConfig {
	origins := a.Config.WebSocket.AllowedOrigins
	if len(origins) == 0 {
		port := a.Config.Server.Port
		origins = []string{
			fmt.Sprintf("http://localhost:%d", port),
			fmt.Sprintf("http://127.0.0.1:%d", port),
		}
	}
	return customMiddleware.CORSConfig{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "If-None-Match"},
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the background workers and the HTTP server. cancel is
// called when the server fails.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", config.AppVersion),
		slog.String("address", a.Server.Addr),
		slog.Int("workers", a.Config.Training.Workers),
		slog.String("level", a.Config.Logging.Level))

	a.WebSocketHub.Start()
	a.JobQueue.Start(infrastructure.DetachedContext(ctx))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	url := a.dashboardURL()
	a.Logger.InfoContext(ctx, "Application started successfully", slog.String("address", url))

	if a.Config.Server.OpenBrowser {
		go a.openWhenReady(ctx, url)
	}
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.Logger.InfoContext(ctx, "Stopping job queue")
	if err := a.JobQueue.Stop(a.Config.Server.ShutdownTimeout); err != nil {
		a.Logger.ErrorContext(ctx, "Failed to stop job queue gracefully", slog.String("error", err.Error()))
	}

	a.WebSocketHub.Stop()
	a.Manager.GetBroadcaster().Stop()

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return infrastructure.CloseLogFile()
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx, stop); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received interrupt signal")

	// ctx is already cancelled; shutdown gets its own deadline
	return a.Stop(context.Background())
}

// performStartupHealthCheck verifies that the data directories are writable
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	directories := map[string]string{
		"Data":      a.Paths.DataDir,
		"Downloads": a.Paths.DownloadsDir,
		"Reports":   a.Paths.ReportsDir,
		"Logs":      a.Paths.LogsDir,
	}
	for name, dir := range directories {
		f, err := os.CreateTemp(dir, ".write_test-*")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
			continue
		}
		f.Close()
		os.Remove(f.Name())
	}

	if a.FrontendFS == nil {
		warnings = append(warnings, "dashboard frontend not embedded, serving the API only")
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}

func (a *Application) dashboardURL() string {
	host := a.Config.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, a.Config.Server.Port)
}

// openWhenReady polls /healthz and opens the dashboard once it answers
func (a *Application) openWhenReady(ctx context.Context, url string) {
	client := &http.Client{Timeout: time.Second}
	for attempt := 1; attempt <= 10; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}

		resp, err := client.Get(url + "/healthz")
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			continue
		}

		if err := openBrowser(url); err != nil {
			a.Logger.WarnContext(ctx, "Failed to open browser",
				slog.String("error", err.Error()),
				slog.String("url", url))
			fmt.Printf("\nSales dashboard is running, open %s in your browser\n\n", url)
			return
		}
		a.Logger.InfoContext(ctx, "Browser opened", slog.String("url", url), slog.Int("attempts", attempt))
		return
	}

	a.Logger.WarnContext(ctx, "Server did not become ready for browser opening", slog.String("url", url))
}

// openBrowser opens url with the platform's default handler
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
