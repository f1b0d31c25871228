package stdesc

import "errors"

var (
	// ErrFrameOutOfRange is returned for history queries about frames that
	// have not been processed.
	ErrFrameOutOfRange = errors.New("frame out of range")

	// ErrInvalidConfig is returned by Config.Validate and NewManager.
	ErrInvalidConfig = errors.New("invalid stdesc config")
)
