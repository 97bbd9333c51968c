package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"carecoins/internal/identity"
	"carecoins/internal/service"
)

func requestWithLogger(logger logrus.FieldLogger) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	return r.WithContext(context.WithValue(r.Context(), loggerContextKey, logger))
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%q)", err, recorder.Body.String())
	}
	return body["error"]
}

func TestRespondWithErrorWritesStatusAndBody(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondWithError(recorder, httptest.NewRequest(http.MethodGet, "/", nil), 418, "Teapot", "", nil)

	if recorder.Code != 418 {
		t.Fatalf("expected status 418, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected JSON content type, got %q", got)
	}
	if msg := decodeError(t, recorder); msg != "Teapot" {
		t.Fatalf("expected error 'Teapot', got %q", msg)
	}
}

func TestRespondWithErrorLogsMessage(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	recorder := httptest.NewRecorder()

	respondWithError(recorder, requestWithLogger(logger), 500, ErrInternalServerError, "", errors.New("boom"))

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if entry.Level != logrus.ErrorLevel {
		t.Errorf("expected error level, got %v", entry.Level)
	}
	if entry.Message != ErrInternalServerError {
		t.Errorf("expected log to use the user message, got %q", entry.Message)
	}
	if err, _ := entry.Data[logrus.ErrorKey].(error); err == nil || err.Error() != "boom" {
		t.Errorf("expected log to include error, got %v", entry.Data[logrus.ErrorKey])
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", &service.Rejection{Kind: service.ErrInvalidInput, Message: "x"}, http.StatusBadRequest},
		{"invalid schedule", &service.Rejection{Kind: service.ErrInvalidSchedule, Message: "x"}, http.StatusBadRequest},
		{"unauthenticated", service.ErrUnauthenticated, http.StatusUnauthorized},
		{"bad token", fmt.Errorf("verify: %w", identity.ErrInvalidToken), http.StatusUnauthorized},
		{"forbidden", &service.Rejection{Kind: service.ErrForbidden, Message: "x"}, http.StatusForbidden},
		{"not found", &service.Rejection{Kind: service.ErrNotFound, Message: "x"}, http.StatusNotFound},
		{"schedule conflict", &service.Rejection{Kind: service.ErrScheduleConflict, Message: "x"}, http.StatusConflict},
		{"invalid transition", &service.Rejection{Kind: service.ErrInvalidTransition, Message: "x"}, http.StatusConflict},
		{"busy", &service.Rejection{Kind: service.ErrStoreBusy, Message: "x"}, http.StatusServiceUnavailable},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRespondWithServiceError(t *testing.T) {
	t.Run("rejection message is shown", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		respondWithServiceError(recorder, httptest.NewRequest(http.MethodGet, "/", nil),
			&service.Rejection{Kind: service.ErrScheduleConflict, Message: "Time-slot overlaps with an existing activity."})

		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
		if msg := decodeError(t, recorder); msg != "Time-slot overlaps with an existing activity." {
			t.Errorf("unexpected message %q", msg)
		}
	})

	t.Run("busy sets Retry-After", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		respondWithServiceError(recorder, httptest.NewRequest(http.MethodGet, "/", nil),
			&service.Rejection{Kind: service.ErrStoreBusy, Message: "The service is busy, please retry."})

		if recorder.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", recorder.Code)
		}
		if recorder.Header().Get("Retry-After") != "1" {
			t.Errorf("expected Retry-After: 1, got %q", recorder.Header().Get("Retry-After"))
		}
	})

	t.Run("unknown errors are hidden", func(t *testing.T) {
		logger, hook := logtest.NewNullLogger()
		recorder := httptest.NewRecorder()
		respondWithServiceError(recorder, requestWithLogger(logger), errors.New("pq: relation does not exist"))

		if recorder.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", recorder.Code)
		}
		if msg := decodeError(t, recorder); msg != ErrInternalServerError {
			t.Errorf("expected generic message, got %q", msg)
		}
		if len(hook.Entries) != 1 {
			t.Errorf("expected the error to be logged once, got %d entries", len(hook.Entries))
		}
	})
}
