package reminders

import "errors"

var (
	ErrReminderExists   = errors.New("reminders: reminder already recorded for reservation")
	ErrStoreRequired    = errors.New("reminders: store is required")
	ErrRouterRequired   = errors.New("reminders: reminder router is required")
	ErrSettingsRequired = errors.New("reminders: settings provider is required")
)
