package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrLockHeld               = errors.New("lock already held")
	ErrNotReady               = errors.New("calendar not loaded")
	ErrHolidayFeedUnavailable = errors.New("holiday feed unavailable")
	ErrInvalidInput           = errors.New("invalid input")
)
