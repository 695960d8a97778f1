// Package redis connects to Redis for state shared between notifyd
// processes, such as sliding-window rate-limit buckets.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	checks = append(checks, redis.Healthcheck(client))
package redis
