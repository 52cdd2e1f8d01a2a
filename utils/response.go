package utils

import (
	"encoding/json"
	"net/http"

	"gravecare-api/apperrors"
)

// ErrorBody is the JSON envelope for failed requests
type ErrorBody struct {
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// JSONResponse writes data as JSON with the given status code
func JSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ErrorResponse writes err as a JSON error envelope. Internal causes are never exposed.
func ErrorResponse(w http.ResponseWriter, err error) {
	appErr := apperrors.From(err)
	JSONResponse(w, appErr.HTTPStatus(), ErrorBody{
		Message: appErr.Public(),
		Code:    string(appErr.Code),
		Details: appErr.Details,
	})
}
