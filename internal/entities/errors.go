package entities

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrQuotaExceeded = errors.New("daily message limit reached")
	ErrBusy          = errors.New("a request is already in progress for this conversation")
)
