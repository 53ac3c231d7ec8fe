package errors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// HTTPErrorAdapter translates PagesmithError values into JSON error responses.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter creates an adapter writing structured error responses.
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

type errorResponse struct {
	Error     string        `json:"error"`
	Category  ErrorCategory `json:"category"`
	Retryable bool          `json:"retryable"`
}

// WriteErrorResponse maps an error's category to an HTTP status and writes a JSON body.
func (a *HTTPErrorAdapter) WriteErrorResponse(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: "internal server error", Category: CategoryInternal}

	var pe *PagesmithError
	if errors.As(err, &pe) {
		resp.Error = pe.Message
		resp.Category = pe.Category
		resp.Retryable = pe.Retryable
		status = statusForCategory(pe.Category)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		a.logger.Error("Failed to encode error response", "error", encErr)
	}
}

func statusForCategory(c ErrorCategory) int {
	switch c {
	case CategoryValidation, CategoryConfig:
		return http.StatusBadRequest
	case CategorySource:
		return http.StatusNotFound
	case CategoryStorage, CategoryRuntime, CategoryEvents:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
