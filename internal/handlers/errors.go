package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"carecoins/internal/identity"
	"carecoins/internal/service"
)

func respondWithJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		loggerFrom(r.Context()).WithError(err).Warn("Failed to encode response")
	}
}

func respondWithError(w http.ResponseWriter, r *http.Request, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		entry := loggerFrom(r.Context()).WithError(err).WithField("status", status)
		if status >= http.StatusInternalServerError {
			entry.Error(logMsg)
		} else {
			entry.Debug(logMsg)
		}
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	respondWithJSON(w, r, status, map[string]string{"error": userMsg})
}

// decodeJSON reads a JSON request body into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	return err
}

// respondWithServiceError writes the response for an error returned by a
// service. Rejections carry their own message; anything else is logged and
// hidden behind a generic 500.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	var rejection *service.Rejection
	if errors.As(err, &rejection) && status != http.StatusInternalServerError {
		respondWithError(w, r, status, rejection.Message, "", rejection.Err)
		return
	}
	if status == http.StatusUnauthorized {
		respondWithError(w, r, status, ErrInvalidToken, "", err)
		return
	}
	respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "Unhandled service error", err)
}

// statusFor maps service error kinds to HTTP status codes
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidSchedule):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrScheduleConflict), errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrStoreBusy):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// loggerFrom returns the request logger installed by Logging
func loggerFrom(ctx context.Context) logrus.FieldLogger {
	if entry, ok := ctx.Value(loggerContextKey).(logrus.FieldLogger); ok {
		return entry
	}
	return logrus.StandardLogger()
}
