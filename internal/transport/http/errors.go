package http

import (
	"errors"
	"net/http"

	apierrors "salesdash/internal/errors"
	"salesdash/internal/operations"
	"salesdash/internal/report"
	"salesdash/internal/services"
)

// apiError translates a service error into the APIError rendered to the
// client. Errors it does not know are returned unchanged and end up as 500.
func apiError(err error, runID string) error {
	var apiErr *apierrors.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, operations.ErrRunNotFound), errors.Is(err, services.ErrInvalidRunID):
		return apierrors.ErrRunNotFound
	case errors.Is(err, operations.ErrRunNotComplete):
		return apierrors.ErrRunNotComplete
	case errors.Is(err, operations.ErrRunFinished):
		return apierrors.NewWithDetails(http.StatusConflict, "CONFLICT", "training run already finished", runID)
	case errors.Is(err, services.ErrRunFailed):
		return apierrors.RunFailedError(runID, err.Error())
	case errors.Is(err, operations.ErrQueueFull):
		return apierrors.QueueFullError(err)
	case errors.Is(err, services.ErrNoPreprocessedData):
		return apierrors.ErrDataNotFound
	case errors.Is(err, report.ErrUnknownChart):
		return apierrors.NotFoundError("chart")
	}
	return err
}
