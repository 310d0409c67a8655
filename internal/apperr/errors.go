package apperr

import "errors"

var (
	ErrNotRecent     = errors.New("not in recent documents")
	ErrInvalidWindow = errors.New("invalid window id")
	ErrUnknownWindow = errors.New("unknown window id")
)
