// Package httpserver runs the notification service's HTTP surface.
//
// Server wraps http.Server with context driven graceful shutdown. NewRouter
// builds the chi router with the shared middleware stack (recovery, request
// ids, access logs, CORS and a request body limit), and LivenessHandler and
// ReadinessHandler serve the probes:
//
//	r := httpserver.NewRouter(cfg, log)
//	r.Get("/health/live", httpserver.LivenessHandler())
//	r.Get("/health/ready", httpserver.ReadinessHandler(log, 2*time.Second, map[string]httpserver.Check{
//		"postgres": pool.Ping,
//	}))
//	err := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log)).Run(ctx, r)
//
// Run returns nil after a clean shutdown and an error joined with ErrStart
// when the listener cannot be opened.
package httpserver
