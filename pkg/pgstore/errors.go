package pgstore

import "errors"

var ErrCipherRequired = errors.New("pgstore: credentials cipher is required")
