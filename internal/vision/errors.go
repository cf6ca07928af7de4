package vision

import "errors"

// Failure kinds. All of them are absorbed by Identifier and turned into a fallback.
var (
	ErrResourceUnavailable  = errors.New("image resource unavailable")
	ErrResourceTooLarge     = errors.New("image resource too large")
	ErrDecodeFailure        = errors.New("image decode failed")
	ErrResolutionTooLow     = errors.New("image resolution too low")
	ErrInferenceFailure     = errors.New("inference failed")
	ErrInferenceUnavailable = errors.New("inference unavailable")
)
