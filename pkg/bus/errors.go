package bus

import (
	"errors"
)

// Recoverable publish/receive failures. None of these propagate past the
// caller; the executor treats them all as non-fatal.
var (
	ErrUnauthorised     = errors.New("unauthorised")
	ErrMalformed        = errors.New("malformed")
	ErrExpired          = errors.New("expired")
	ErrBusy             = errors.New("busy")
	ErrUnknownRecipient = errors.New("unknown_recipient")
	ErrNotFound         = errors.New("not_found")
)
