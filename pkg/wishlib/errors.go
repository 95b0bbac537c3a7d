package wishlib

import "errors"

var (
	ErrInvalidHandler  = errors.New("invalid uri handler")
	ErrMalformedRecord = errors.New("malformed wish record")

	ErrMissingStore    = errors.New("queue requires a wish store")
	ErrMissingConsumer = errors.New("queue requires a consumer")
)
