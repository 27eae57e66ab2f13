package domain

import "errors"

var (
	ErrNotConfirmed      = errors.New("application_payment_not_confirmed")
	ErrMissingRecipient  = errors.New("application_missing_contact_email")
	ErrIncompleteDetails = errors.New("application_missing_vessel")
)
