package settings

import "errors"

var ErrTenantNotFound = errors.New("settings: tenant not found")
