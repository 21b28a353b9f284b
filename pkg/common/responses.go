package common

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"mindo/pkg/errors"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// RespondJSON sends data wrapped in an APIResponse
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// RespondNoContent sends 204
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// ParseJSONBody decodes the request body into v. Unknown fields, trailing
// data and bodies over maxBytes are validation errors.
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			return errors.NewValidationError("request body too large")
		case stderrors.Is(err, io.EOF):
			return errors.NewValidationError("request body is empty")
		default:
			return errors.NewValidationError("invalid request body: " + err.Error())
		}
	}
	if decoder.More() {
		return errors.NewValidationError("request body must contain a single JSON object")
	}
	return nil
}
