// Package app wires the sales dashboard together and manages its lifecycle.
//
// # Initialization Flow
//
//  1. Load configuration (defaults, YAML file, SALESDASH_* environment)
//  2. Resolve and create the data directories
//  3. Initialize logging (the log file lives in the logs directory) and
//     OpenTelemetry
//  4. Create the WebSocket hub, the run manager with its five steps and
//     the job queue
//  5. Create the training and health services
//  6. Set up handlers, middleware and the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication(frontendFS)
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, then stops the HTTP server, lets the
// job queue finish within the shutdown timeout, disconnects WebSocket
// clients and flushes telemetry.
package app
