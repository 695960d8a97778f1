// Package logger builds the *slog.Logger used by notifyd and supplies the
// attribute helpers every package logs with, so keys such as
// notification_id, tenant_id and channel are spelled the same everywhere.
//
// New takes functional options: WithEnvironment picks the format and level
// for development, staging or production, WithAttr adds static attributes
// and WithContextExtractors registers functions that read attributes from
// the context of each record. NewFromConfig does the same from Config,
// loaded from APP_ENV, SERVICE_NAME and LOG_LEVEL.
//
// ContextWithAttrs attaches attributes to a context. The event router uses
// it so that logs written by the service, queue and adapters for one
// reservation event carry the event name and reservation id:
//
//	ctx = logger.ContextWithAttrs(ctx, logger.ReservationID(res.ID))
//	log.InfoContext(ctx, "delivery sent",
//		logger.NotificationID(n.ID),
//		logger.Channel(ch),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed without a nil check.
package logger
