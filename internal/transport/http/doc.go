// Package http implements the HTTP handlers of the sales dashboard.
// Handlers are a thin layer over the services package: they parse and
// validate requests, call a service and format the response.
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Job Queue
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Routes
//
// Each handler exposes Routes() and is mounted by the application:
//
//	RunsHandler    /api/v1/runs                 start, list, inspect and cancel runs
//	               /api/v1/runs/{id}/report     report JSON, charts and workbook
//	DataHandler    /api/v1/data/preprocessed    preprocessed CSV with ETag
//	ConfigHandler  /api/v1/config               hyperparameter defaults and bounds
//	HealthHandler  /healthz, /api/v1/version    health, readiness and stats
//	PageHandler    /                            the dashboard page
//
// # Error Handling
//
// All errors are rendered as RFC 7807 problem details through
// errors.ErrorHandler. Service errors are translated by apiError:
//
//	{
//	    "type": "/errors/run/not-complete",
//	    "title": "Conflict",
//	    "status": 409,
//	    "detail": "training run has not completed",
//	    "instance": "/api/v1/runs/3f2a.../report",
//	    "trace_id": "..."
//	}
package http
