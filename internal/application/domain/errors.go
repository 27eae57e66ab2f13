package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("application_not_found")
	ErrInvalidID         = errors.New("invalid_application_id")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrAssemblyFailed    = errors.New("assembly_failed")
)

const (
	ReasonInvalidEntryDate          = "invalid_entry_date"
	ReasonInvalidExitDate           = "invalid_exit_date"
	ReasonDepartureNotBeforeArrival = "departure_not_before_arrival"
	ReasonInvalidPassengerDate      = "invalid_passenger_date"
	ReasonInvalidVessel             = "invalid_vessel"
	ReasonPersistenceFailed         = "persistence_failed"
)

// AssemblyError reports why a submission could not become an application.
// Err is kept for logs only and never rendered to clients.
type AssemblyError struct {
	Reason string
	Field  string
	Err    error
}

func (e *AssemblyError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("assembly_failed: %s (%s)", e.Reason, e.Field)
	}
	return "assembly_failed: " + e.Reason
}

func (e *AssemblyError) Is(target error) bool {
	return target == ErrAssemblyFailed
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

// InputError reports whether the failure is attributable to caller input.
func (e *AssemblyError) InputError() bool {
	return e.Reason != ReasonPersistenceFailed
}

func InvalidField(reason, field string, err error) error {
	return &AssemblyError{Reason: reason, Field: field, Err: err}
}

func PersistenceFailed(err error) error {
	return &AssemblyError{Reason: ReasonPersistenceFailed, Err: err}
}
