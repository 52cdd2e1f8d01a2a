package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"gravecare-api/apperrors"
)

// maxBodyBytes caps request bodies; every payload here is a handful of short fields.
const maxBodyBytes = 1 << 20

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperrors.MissingField("Request body is required")
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return apperrors.MissingField("Request body is required")
	}
	if err != nil {
		return apperrors.InvalidField("Invalid request body")
	}
	return nil
}

func errUnauthenticated() error {
	return apperrors.Unauthenticated("Authorization token is required")
}
