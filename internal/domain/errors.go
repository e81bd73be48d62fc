package domain

import "errors"

var (
	ErrEmptyText        = errors.New("message text is required")
	ErrTextTooLong      = errors.New("message text is too long")
	ErrMissingSender    = errors.New("sender id is required")
	ErrMissingRecipient = errors.New("recipient id is required")
	ErrPersistence      = errors.New("failed to persist message")
	ErrUnauthorized     = errors.New("authentication required")
)
