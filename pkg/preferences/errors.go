package preferences

import "errors"

var (
	ErrPreferenceNotFound = errors.New("preferences: preference not found")
	ErrInvalidPreference  = errors.New("preferences: invalid preference")
	ErrStoreRequired      = errors.New("preferences: store is required")
)
