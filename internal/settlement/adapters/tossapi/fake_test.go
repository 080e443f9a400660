package tossapi

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercelab/settlement/internal/settlement/ports"
)

func TestFakeGateway(t *testing.T) {
	ctx := context.Background()

	t.Run("confirm then cancel", func(t *testing.T) {
		g := NewFakeGateway()

		res, err := g.Confirm(ctx, "key-1", "order-1", 1000)
		require.NoError(t, err)
		assert.Equal(t, "key-1", res.GatewayKey)
		assert.Equal(t, int64(1000), res.TotalAmount)

		cres, err := g.Cancel(ctx, "key-1", "test", 400)
		require.NoError(t, err)
		assert.Equal(t, ports.CancelDone, cres.Status)
	})

	t.Run("empty request key gets a generated one", func(t *testing.T) {
		g := NewFakeGateway()
		res, err := g.Confirm(ctx, "", "order-1", 1000)
		require.NoError(t, err)
		assert.NotEmpty(t, res.GatewayKey)
	})

	t.Run("exhausted payment answers already canceled", func(t *testing.T) {
		g := NewFakeGateway()
		_, err := g.Confirm(ctx, "key-1", "order-1", 1000)
		require.NoError(t, err)
		_, err = g.Cancel(ctx, "key-1", "full", 1000)
		require.NoError(t, err)

		res, err := g.Cancel(ctx, "key-1", "again", 1000)
		require.NoError(t, err)
		assert.Equal(t, ports.CancelAlreadyDone, res.Status)
	})

	t.Run("unknown key", func(t *testing.T) {
		g := NewFakeGateway()
		_, err := g.Cancel(ctx, "nope", "test", 100)

		var ge *ports.GatewayError
		require.True(t, errors.As(err, &ge))
		assert.Equal(t, "NOT_FOUND_PAYMENT", ge.Code)
	})
}
