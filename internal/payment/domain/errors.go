package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEvent             = errors.New("invalid_event")
	ErrInvalidPayload           = errors.New("invalid_payload")
	ErrInvalidProvider          = errors.New("invalid_provider")
	ErrInvalidConfig            = errors.New("invalid_provider_config")
	ErrProviderNotFound         = errors.New("payment_provider_not_found")
	ErrEventAlreadyProcessed    = errors.New("event_already_processed")
	ErrHandlerAlreadyRegistered = errors.New("handler_already_registered")
	ErrHandlerFailed            = errors.New("handler_failed")

	ErrSignatureVerificationFailed = errors.New("signature_verification_failed")
	ErrMissingSignature            = fmt.Errorf("%w: missing_signature", ErrSignatureVerificationFailed)
	ErrMalformedSignature          = fmt.Errorf("%w: malformed_signature", ErrSignatureVerificationFailed)
	ErrSignatureMismatch           = fmt.Errorf("%w: signature_mismatch", ErrSignatureVerificationFailed)
	ErrStaleEvent                  = fmt.Errorf("%w: stale_event", ErrSignatureVerificationFailed)
)

// HandlerError wraps a failure raised while applying an event. The event
// stays unprocessed so the provider's next delivery retries it.
type HandlerError struct {
	EventType       string
	ProviderEventID string
	Err             error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler_failed: %s %s: %v", e.EventType, e.ProviderEventID, e.Err)
}

func (e *HandlerError) Is(target error) bool {
	return target == ErrHandlerFailed
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
