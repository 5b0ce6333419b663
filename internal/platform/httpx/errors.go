package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/accountd/accountd/internal/shared"
)

// ErrorResponse is the envelope returned for every 4xx/5xx response.
// ValidationErrors is present only for field-level validation failures.
type ErrorResponse struct {
	Timestamp        time.Time           `json:"timestamp"`
	Status           int                 `json:"status"`
	Error            string              `json:"error"`
	Message          string              `json:"message"`
	ValidationErrors map[string][]string `json:"validationErrors,omitempty"`
}

// RespondError maps a domain error to its HTTP status and envelope. Unknown
// errors become a 500 with a generic message; the caller is responsible for
// logging the full detail.
func RespondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, shared.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, shared.ErrConcurrency):
		status = http.StatusConflict
	case errors.Is(err, shared.ErrLockTimeout):
		status = http.StatusServiceUnavailable
	}

	resp := ErrorResponse{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   shared.UserSafeMessage(err),
	}

	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		resp.ValidationErrors = verr.Fields
	}

	JSON(w, status, resp)
}
