package api

import (
	"errors"
	"net/http"

	"githubhotspot/db"
	"githubhotspot/github"
	"githubhotspot/models"
)

// APIError is the JSON body of every failed request
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAPIError maps an error to its HTTP status and response body
func NewAPIError(err error) (int, APIError) {
	switch {
	case errors.Is(err, models.ErrInvalidRequest), errors.Is(err, db.ErrInvalidInput):
		return http.StatusBadRequest, APIError{
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		}

	case errors.Is(err, db.ErrRepositoryNotFound), errors.Is(err, github.ErrNotFound):
		return http.StatusNotFound, APIError{
			Code:    "NOT_FOUND",
			Message: "repository not found",
		}

	case errors.Is(err, github.ErrRateLimitReached):
		return http.StatusTooManyRequests, APIError{
			Code:    "RATE_LIMIT_REACHED",
			Message: "github rate limit reached. consider using a token to increase the limit or wait few minutes and try again",
		}

	default:
		return http.StatusInternalServerError, APIError{
			Code:    "INTERNAL_ERROR",
			Message: "internal server error. contact our support with the request id for assistance",
		}
	}
}
