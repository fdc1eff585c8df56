package rendezvous

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/core"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error    string             `json:"error"`
	Code     string             `json:"code,omitempty"`
	Category core.ErrorCategory `json:"category,omitempty"`
}

func httpStatusForDomainError(err error) (int, bool) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return 0, false
	}

	switch domErr.Category {
	case core.ErrCatValidation:
		return http.StatusUnprocessableEntity, true
	case core.ErrCatNotFound:
		return http.StatusNotFound, true
	case core.ErrCatConflict:
		return http.StatusConflict, true
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout, true
	default:
		return http.StatusInternalServerError, true
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

func respondDomainError(w http.ResponseWriter, err error) {
	status, ok := httpStatusForDomainError(err)
	if !ok {
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	var domErr *core.DomainError
	errors.As(err, &domErr)
	respondJSON(w, status, errorBody{
		Error:    domErr.Message,
		Code:     domErr.Code,
		Category: domErr.Category,
	})
}
