package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayment(t *testing.T) {
	t.Run("creates a READY payment", func(t *testing.T) {
		p, err := NewPayment("order-1", 50000)
		require.NoError(t, err)
		assert.Equal(t, StatusReady, p.Status)
		assert.Equal(t, int64(50000), p.Amount)
		assert.Equal(t, int64(0), p.CanceledAmount())
		assert.NotEmpty(t, p.ID)
	})

	t.Run("rejects empty order ref", func(t *testing.T) {
		_, err := NewPayment("", 1000)
		assert.Error(t, err)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := NewPayment("order-1", 0)
		assert.Error(t, err)
	})
}

func TestPaymentMarkPaid(t *testing.T) {
	t.Run("transitions READY to PAID", func(t *testing.T) {
		p, _ := NewPayment("order-1", 1000)
		approvedAt := time.Now().UTC()

		require.NoError(t, p.MarkPaid("key-1", approvedAt))

		assert.Equal(t, StatusPaid, p.Status)
		assert.Equal(t, "key-1", p.GatewayKey)
		require.NotNil(t, p.ApprovedAt)
		assert.Equal(t, approvedAt, *p.ApprovedAt)
	})

	t.Run("illegal outside READY", func(t *testing.T) {
		p, _ := NewPayment("order-1", 1000)
		require.NoError(t, p.MarkPaid("key-1", time.Now()))

		err := p.MarkPaid("key-2", time.Now())
		assert.Equal(t, CodePaymentNotReady, CodeOf(err))
		assert.Equal(t, "key-1", p.GatewayKey)
	})
}

func TestPaymentAppendCancellation(t *testing.T) {
	paid := func(t *testing.T, amount int64) *Payment {
		t.Helper()
		p, err := NewPayment("order-1", amount)
		require.NoError(t, err)
		require.NoError(t, p.MarkPaid("key-1", time.Now()))
		return p
	}

	t.Run("partial cancel keeps PAID and accumulates", func(t *testing.T) {
		p := paid(t, 1000)

		require.NoError(t, p.AppendCancellation(NewCancellation("key-1", 400, "change of mind", time.Now())))

		assert.Equal(t, StatusPaid, p.Status)
		assert.Equal(t, int64(400), p.CanceledAmount())
		assert.Equal(t, int64(600), p.Remaining())
	})

	t.Run("canceling the exact remaining flips to CANCELLED", func(t *testing.T) {
		p := paid(t, 1000)
		require.NoError(t, p.AppendCancellation(NewCancellation("key-1", 400, "partial", time.Now())))
		require.NoError(t, p.AppendCancellation(NewCancellation("key-1", 600, "rest", time.Now())))

		assert.Equal(t, StatusCancelled, p.Status)
		assert.Equal(t, p.Amount, p.CanceledAmount())
	})

	t.Run("overflow is rejected without mutating the ledger", func(t *testing.T) {
		p := paid(t, 1000)
		require.NoError(t, p.AppendCancellation(NewCancellation("key-1", 700, "partial", time.Now())))

		err := p.AppendCancellation(NewCancellation("key-1", 400, "too much", time.Now()))
		assert.True(t, errors.Is(err, ErrLedgerOverflow))
		assert.Equal(t, int64(700), p.CanceledAmount())
		assert.Equal(t, StatusPaid, p.Status)
		assert.Len(t, p.Cancels, 1)
	})

	t.Run("non-positive record amount is rejected", func(t *testing.T) {
		p := paid(t, 1000)
		err := p.AppendCancellation(NewCancellation("key-1", 0, "zero", time.Now()))
		assert.Equal(t, CodeInvalidCancelAmount, CodeOf(err))
	})
}

func TestPaymentAbandon(t *testing.T) {
	t.Run("READY to FAILED", func(t *testing.T) {
		p, _ := NewPayment("order-1", 1000)
		require.NoError(t, p.Abandon())
		assert.Equal(t, StatusFailed, p.Status)
	})

	t.Run("illegal after PAID", func(t *testing.T) {
		p, _ := NewPayment("order-1", 1000)
		require.NoError(t, p.MarkPaid("key-1", time.Now()))
		assert.Equal(t, CodePaymentNotReady, CodeOf(p.Abandon()))
	})
}
