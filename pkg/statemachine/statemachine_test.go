package statemachine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/statemachine"
)

type orderState string

const (
	draft    orderState = "draft"
	placed   orderState = "placed"
	shipped  orderState = "shipped"
	refunded orderState = "refunded"
)

type order struct {
	paid bool
}

func isPaid(_ context.Context, _, _ orderState, o order) bool { return o.paid }

func newTable() *statemachine.Table[orderState, order] {
	return statemachine.NewTable[orderState, order]().
		Allow(draft, placed).
		AllowIf(placed, shipped, isPaid).
		Allow(shipped, refunded).
		Allow(placed, draft, draft)
}

func TestTable_Check(t *testing.T) {
	t.Parallel()

	table := newTable()
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to orderState
		subject  order
		wantErr  func(error) bool
	}{
		{name: "unconditional", from: draft, to: placed},
		{name: "guard passes", from: placed, to: shipped, subject: order{paid: true}},
		{name: "guard rejects", from: placed, to: shipped, wantErr: statemachine.IsTransitionRejectedError},
		{name: "undeclared", from: draft, to: shipped, wantErr: statemachine.IsNoTransitionAvailableError},
		{name: "unknown source", from: refunded, to: draft, wantErr: statemachine.IsNoTransitionAvailableError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := table.Check(ctx, tt.from, tt.to, tt.subject)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.True(t, table.Can(ctx, tt.from, tt.to, tt.subject))
				return
			}
			require.Error(t, err)
			assert.True(t, tt.wantErr(err), "unexpected error type: %v", err)
			assert.False(t, table.Can(ctx, tt.from, tt.to, tt.subject))
		})
	}
}

func TestTable_Targets(t *testing.T) {
	t.Parallel()

	table := newTable()
	assert.Equal(t, []orderState{shipped, draft}, table.Targets(placed))
	assert.Empty(t, table.Targets(refunded))
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	err := statemachine.NewErrNoTransitionAvailable(draft, shipped)
	assert.Equal(t, "no transition available from state 'draft' to 'shipped'", err.Error())

	rej := statemachine.NewErrTransitionRejected(placed, shipped)
	assert.Contains(t, rej.Error(), "rejected by guards")
}
