package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

const maxBodyBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

var (
	errMissingField     = errors.New("missing field")
	errUnsupportedMedia = errors.New("content type must be application/json")
)

// decodeBody reads a size-capped JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if !isJSON(r) {
		return errUnsupportedMedia
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// writeDecodeError answers a decodeBody failure.
func writeDecodeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, errUnsupportedMedia) {
		status = http.StatusUnsupportedMediaType
	}
	writeJSON(w, status, errorBody(err.Error()))
}

// requireString returns *s, or errMissingField naming field when s is nil.
func requireString(s *string, field string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("%w: %s", errMissingField, field)
	}
	return *s, nil
}
