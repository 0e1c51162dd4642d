package rate

import "errors"

var (
	// ErrCaptchaRequired is returned when the failure threshold is reached and no proof was supplied.
	ErrCaptchaRequired = errors.New("captcha required")
	// ErrBackendUnavailable wraps failures of the attempt log.
	ErrBackendUnavailable = errors.New("attempt log unavailable")
)
