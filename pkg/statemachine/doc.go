// Package statemachine provides a declarative transition table for
// finite-state records that live in a datastore.
//
// Unlike an in-memory machine that owns its current state, a Table is
// stateless: callers pass the persisted current state and the requested
// target, and the table answers whether that move is legal. This suits
// ledgers where many rows share one set of rules and the state itself is
// loaded and saved elsewhere.
//
// Rules are declared once at start-up and are read-only afterwards, so a
// Table can be shared across goroutines without locking.
//
//	rules := statemachine.NewTable[Status, Row]().
//		Allow(Pending, Sent, Failed).
//		Allow(Sent, Delivered, Failed, Bounced).
//		AllowIf(Delivered, Read, supportsReadReceipts)
//
//	if err := rules.Check(ctx, row.Status, Read, row); err != nil {
//		// statemachine.IsNoTransitionAvailableError(err) or
//		// statemachine.IsTransitionRejectedError(err)
//	}
package statemachine
