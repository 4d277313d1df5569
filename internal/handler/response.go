package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/campus-exchange/internal/logging"
	"github.com/shinyyama/campus-exchange/internal/repository"
	"github.com/shinyyama/campus-exchange/internal/service"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// writeServiceError maps service sentinels to an HTTP status. fallback is the
// message used for unexpected failures, which are logged and never echoed.
func writeServiceError(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": ")))
	case errors.Is(err, service.ErrNotCollegeEmail):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("not_college_email", "please sign in with your college email"))
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "not found"))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not allowed"))
	case errors.Is(err, service.ErrProfileRequired):
		return c.JSON(http.StatusForbidden, NewErrorResponse("profile_required", "complete your profile first"))
	case errors.Is(err, service.ErrProfileExists):
		return c.JSON(http.StatusConflict, NewErrorResponse("conflict", "profile already exists"))
	case errors.Is(err, service.ErrAlreadyInterested), errors.Is(err, service.ErrAlreadyOffered):
		return c.JSON(http.StatusConflict, NewErrorResponse("conflict", "you are already matched on this"))
	case errors.Is(err, service.ErrAlreadyRated):
		return c.JSON(http.StatusConflict, NewErrorResponse("conflict", "you already rated this exchange"))
	case errors.Is(err, service.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, NewErrorResponse("invalid_transition", "this exchange can no longer change that way"))
	case errors.Is(err, service.ErrMatchClosed):
		return c.JSON(http.StatusConflict, NewErrorResponse("match_closed", "this exchange is closed"))
	case errors.Is(err, service.ErrListingUnavailable):
		return c.JSON(http.StatusConflict, NewErrorResponse("listing_unavailable", "listing is no longer available"))
	case errors.Is(err, service.ErrRequestUnavailable):
		return c.JSON(http.StatusConflict, NewErrorResponse("request_unavailable", "request is no longer open"))
	case errors.Is(err, repository.ErrDBNotReady):
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("unavailable", "database is not ready"))
	}
	logging.FromContext(c.Request().Context()).WithError(err).Error(fallback)
	return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", fallback))
}

func requireUID(c echo.Context) (string, bool) {
	uid, _ := c.Get("uid").(string)
	return uid, uid != ""
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
}

func parseID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

func invalidID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
}

func queryInt(c echo.Context, name string) int {
	v, _ := strconv.Atoi(c.QueryParam(name))
	return v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
