package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSplit(t *testing.T) {
	tests := []struct {
		name        string
		paymentID   string
		orderRef    string
		orderItemID string
		ownerID     string
		itemAmount  int64
		wantErr     bool
	}{
		{"valid", "pay-1", "order-1", "item-1", "seller-1", 30000, false},
		{"missing payment id", "", "order-1", "item-1", "seller-1", 30000, true},
		{"missing order ref", "pay-1", "", "item-1", "seller-1", 30000, true},
		{"missing order item id", "pay-1", "order-1", "", "seller-1", 30000, true},
		{"missing owner id", "pay-1", "order-1", "item-1", "", 30000, true},
		{"zero amount", "pay-1", "order-1", "item-1", "seller-1", 0, true},
		{"negative amount", "pay-1", "order-1", "item-1", "seller-1", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSplit(tt.paymentID, tt.orderRef, tt.orderItemID, tt.ownerID, tt.itemAmount)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.itemAmount, s.ItemAmount)
			assert.Equal(t, int64(0), s.CanceledAmount)
			assert.NotEmpty(t, s.ID)
		})
	}
}

func TestSplitAddCancellation(t *testing.T) {
	t.Run("accumulates up to the item amount", func(t *testing.T) {
		s, _ := NewSplit("pay-1", "order-1", "item-1", "seller-1", 30000)

		require.NoError(t, s.AddCancellation(10000))
		require.NoError(t, s.AddCancellation(20000))

		assert.Equal(t, int64(30000), s.CanceledAmount)
		assert.Equal(t, int64(0), s.Remaining())
	})

	t.Run("rejects overflow past the item amount", func(t *testing.T) {
		s, _ := NewSplit("pay-1", "order-1", "item-1", "seller-1", 30000)
		require.NoError(t, s.AddCancellation(30000))

		err := s.AddCancellation(1)
		assert.True(t, errors.Is(err, ErrLedgerOverflow))
		assert.Equal(t, int64(30000), s.CanceledAmount)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		s, _ := NewSplit("pay-1", "order-1", "item-1", "seller-1", 30000)
		assert.Equal(t, CodeInvalidCancelAmount, CodeOf(s.AddCancellation(0)))
	})
}
