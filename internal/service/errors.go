package service

import (
	"errors"

	"carecoins/internal/database"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidSchedule   = errors.New("invalid schedule")
	ErrForbidden         = errors.New("forbidden")
	ErrScheduleConflict  = errors.New("schedule conflict")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrStoreBusy         = errors.New("store busy")
)

// Rejection is a refused operation. Kind is one of the sentinel errors above
// and Message is safe to show to the caller.
type Rejection struct {
	Kind    error
	Message string
	Err     error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return r.Message + ": " + r.Err.Error()
	}
	return r.Message
}

func (r *Rejection) Unwrap() []error {
	if r.Err != nil {
		return []error{r.Kind, r.Err}
	}
	return []error{r.Kind}
}

func reject(kind error, message string) error {
	return &Rejection{Kind: kind, Message: message}
}

// storeError turns transient database failures into ErrStoreBusy and leaves
// everything else alone
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return err
	}
	err = database.Classify(err)
	if errors.Is(err, database.ErrBusy) {
		return &Rejection{Kind: ErrStoreBusy, Message: "The service is busy, please retry.", Err: err}
	}
	return err
}

// outcome labels err for metrics
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrInvalidSchedule):
		return "invalid_schedule"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrScheduleConflict):
		return "schedule_conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrStoreBusy):
		return "busy"
	}
	return "error"
}
