package callbacks

import "errors"

var ErrTrackerRequired = errors.New("callbacks: tracker is required")
