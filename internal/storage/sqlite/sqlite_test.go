package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercelab/settlement/internal/settlement/audit"
	"github.com/commercelab/settlement/internal/settlement/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "settlement.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPaymentRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("roundtrip through the full lifecycle", func(t *testing.T) {
		repo := NewPaymentRepository(openTestDB(t))

		p, err := domain.NewPayment("order-1", 50000)
		require.NoError(t, err)
		require.NoError(t, repo.CreateReady(ctx, p))

		got, err := repo.GetByOrderRef(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.Equal(t, domain.StatusReady, got.Status)
		assert.Nil(t, got.ApprovedAt)
		assert.Empty(t, got.Cancels)

		require.NoError(t, got.MarkPaid("gw-key-1", time.Now().UTC()))
		require.NoError(t, got.AppendCancellation(domain.NewCancellation("gw-key-1", 20000, "partial", time.Now().UTC())))
		require.NoError(t, repo.Save(ctx, got))

		reloaded, err := repo.GetByGatewayKey(ctx, "gw-key-1")
		require.NoError(t, err)
		assert.Equal(t, p.ID, reloaded.ID)
		assert.Equal(t, domain.StatusPaid, reloaded.Status)
		require.NotNil(t, reloaded.ApprovedAt)
		require.Len(t, reloaded.Cancels, 1)
		assert.Equal(t, int64(20000), reloaded.CanceledAmount())
		assert.Equal(t, int64(30000), reloaded.Remaining())
	})

	t.Run("missing payment maps to the domain code", func(t *testing.T) {
		repo := NewPaymentRepository(openTestDB(t))

		_, err := repo.GetByOrderRef(ctx, "nope")
		assert.Equal(t, domain.CodePaymentNotFound, domain.CodeOf(err))

		_, err = repo.GetByGatewayKey(ctx, "nope")
		assert.Equal(t, domain.CodePaymentNotFound, domain.CodeOf(err))
	})

	t.Run("replaying Save never duplicates cancellation rows", func(t *testing.T) {
		repo := NewPaymentRepository(openTestDB(t))

		p, err := domain.NewPayment("order-1", 1000)
		require.NoError(t, err)
		require.NoError(t, repo.CreateReady(ctx, p))
		require.NoError(t, p.MarkPaid("gw-key-1", time.Now().UTC()))
		require.NoError(t, p.AppendCancellation(domain.NewCancellation("gw-key-1", 400, "partial", time.Now().UTC())))

		require.NoError(t, repo.Save(ctx, p))
		require.NoError(t, repo.Save(ctx, p))
		require.NoError(t, repo.Save(ctx, p))

		reloaded, err := repo.GetByOrderRef(ctx, "order-1")
		require.NoError(t, err)
		assert.Len(t, reloaded.Cancels, 1)
		assert.Equal(t, int64(400), reloaded.CanceledAmount())
	})

	t.Run("stale copy cannot push the stored total past the amount", func(t *testing.T) {
		repo := NewPaymentRepository(openTestDB(t))

		p, err := domain.NewPayment("order-1", 1000)
		require.NoError(t, err)
		require.NoError(t, repo.CreateReady(ctx, p))
		require.NoError(t, p.MarkPaid("gw-key-1", time.Now().UTC()))
		require.NoError(t, repo.Save(ctx, p))

		// Two copies of the same payment, each canceling the full amount.
		// Both pass the in-memory check because each copy's view is stale.
		first, err := repo.GetByOrderRef(ctx, "order-1")
		require.NoError(t, err)
		second, err := repo.GetByOrderRef(ctx, "order-1")
		require.NoError(t, err)
		require.NoError(t, first.AppendCancellation(domain.NewCancellation("gw-key-1", 1000, "full", time.Now().UTC())))
		require.NoError(t, second.AppendCancellation(domain.NewCancellation("gw-key-1", 1000, "full again", time.Now().UTC())))

		require.NoError(t, repo.Save(ctx, first))
		err = repo.Save(ctx, second)
		require.ErrorIs(t, err, domain.ErrLedgerOverflow)

		reloaded, err := repo.GetByOrderRef(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1000), reloaded.CanceledAmount())
		assert.LessOrEqual(t, reloaded.CanceledAmount(), reloaded.Amount)
		assert.Equal(t, domain.StatusCancelled, reloaded.Status)
	})

	t.Run("final status is derived from the stored total", func(t *testing.T) {
		repo := NewPaymentRepository(openTestDB(t))

		p, err := domain.NewPayment("order-1", 1000)
		require.NoError(t, err)
		require.NoError(t, repo.CreateReady(ctx, p))
		require.NoError(t, p.MarkPaid("gw-key-1", time.Now().UTC()))
		require.NoError(t, repo.Save(ctx, p))

		// Two stale copies canceling complementary halves. Both writes land;
		// the second one must flip the stored status to CANCELLED even though
		// its own copy still believes only half is canceled.
		first, err := repo.GetByOrderRef(ctx, "order-1")
		require.NoError(t, err)
		second, err := repo.GetByOrderRef(ctx, "order-1")
		require.NoError(t, err)
		require.NoError(t, first.AppendCancellation(domain.NewCancellation("gw-key-1", 500, "half", time.Now().UTC())))
		require.NoError(t, second.AppendCancellation(domain.NewCancellation("gw-key-1", 500, "other half", time.Now().UTC())))
		require.NoError(t, repo.Save(ctx, first))
		require.NoError(t, repo.Save(ctx, second))

		reloaded, err := repo.GetByOrderRef(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1000), reloaded.CanceledAmount())
		assert.Equal(t, domain.StatusCancelled, reloaded.Status)
	})

	t.Run("canceled total is derived from the records", func(t *testing.T) {
		repo := NewPaymentRepository(openTestDB(t))

		p, err := domain.NewPayment("order-1", 1000)
		require.NoError(t, err)
		require.NoError(t, repo.CreateReady(ctx, p))
		require.NoError(t, p.MarkPaid("gw-key-1", time.Now().UTC()))

		base := time.Now().UTC()
		require.NoError(t, p.AppendCancellation(domain.NewCancellation("gw-key-1", 300, "first", base)))
		require.NoError(t, p.AppendCancellation(domain.NewCancellation("gw-key-1", 700, "second", base.Add(time.Second))))
		require.NoError(t, repo.Save(ctx, p))

		reloaded, err := repo.GetByOrderRef(ctx, "order-1")
		require.NoError(t, err)
		require.Len(t, reloaded.Cancels, 2)
		assert.Equal(t, "first", reloaded.Cancels[0].Reason)
		assert.Equal(t, "second", reloaded.Cancels[1].Reason)
		assert.Equal(t, int64(1000), reloaded.CanceledAmount())
		assert.Equal(t, domain.StatusCancelled, reloaded.Status)
	})
}

func TestSplitRepository(t *testing.T) {
	ctx := context.Background()

	seedPayment := func(t *testing.T, db *DB, orderRef string, amount int64) *domain.Payment {
		t.Helper()
		p, err := domain.NewPayment(orderRef, amount)
		require.NoError(t, err)
		require.NoError(t, NewPaymentRepository(db).CreateReady(ctx, p))
		return p
	}

	t.Run("SaveAll then load", func(t *testing.T) {
		db := openTestDB(t)
		repo := NewSplitRepository(db)
		p := seedPayment(t, db, "order-1", 50000)

		s1, err := domain.NewSplit(p.ID, p.OrderRef, "item-1", "seller-1", 30000)
		require.NoError(t, err)
		s2, err := domain.NewSplit(p.ID, p.OrderRef, "item-2", "seller-2", 20000)
		require.NoError(t, err)
		require.NoError(t, repo.SaveAll(ctx, []*domain.Split{s1, s2}))

		got, err := repo.GetByOrderItemID(ctx, "item-1")
		require.NoError(t, err)
		assert.Equal(t, s1.ID, got.ID)
		assert.Equal(t, int64(30000), got.ItemAmount)
		assert.Equal(t, int64(0), got.CanceledAmount)

		all, err := repo.ListByPaymentID(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("SaveAll skips an item that already has a split", func(t *testing.T) {
		db := openTestDB(t)
		repo := NewSplitRepository(db)
		p := seedPayment(t, db, "order-1", 1000)

		first, err := domain.NewSplit(p.ID, p.OrderRef, "item-1", "seller-1", 1000)
		require.NoError(t, err)
		require.NoError(t, repo.SaveAll(ctx, []*domain.Split{first}))

		dup, err := domain.NewSplit(p.ID, p.OrderRef, "item-1", "seller-1", 1000)
		require.NoError(t, err)
		require.NoError(t, repo.SaveAll(ctx, []*domain.Split{dup}))

		got, err := repo.GetByOrderItemID(ctx, "item-1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)

		all, err := repo.ListByPaymentID(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Save persists the canceled amount", func(t *testing.T) {
		db := openTestDB(t)
		repo := NewSplitRepository(db)
		p := seedPayment(t, db, "order-1", 1000)

		s, err := domain.NewSplit(p.ID, p.OrderRef, "item-1", "seller-1", 1000)
		require.NoError(t, err)
		require.NoError(t, repo.SaveAll(ctx, []*domain.Split{s}))

		require.NoError(t, s.AddCancellation(400))
		require.NoError(t, repo.Save(ctx, s))

		got, err := repo.GetByOrderItemID(ctx, "item-1")
		require.NoError(t, err)
		assert.Equal(t, int64(400), got.CanceledAmount)
		assert.Equal(t, int64(600), got.Remaining())
	})

	t.Run("exists and not-found paths", func(t *testing.T) {
		repo := NewSplitRepository(openTestDB(t))

		ok, err := repo.ExistsByOrderItemID(ctx, "item-1")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = repo.GetByOrderItemID(ctx, "item-1")
		assert.Equal(t, domain.CodeSplitNotFound, domain.CodeOf(err))
	})
}

func TestAuditRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditRepository(openTestDB(t))

	e1 := audit.NewEntry(ctx, "pay-1", "order-1", audit.EventConfirmed, 50000, "gw-key-1")
	e2 := audit.NewEntry(ctx, "pay-1", "order-1", audit.EventCancelled, 50000, "gw-key-1")
	e2.RecordedAt = e1.RecordedAt.Add(time.Second)
	require.NoError(t, repo.Append(ctx, e1))
	require.NoError(t, repo.Append(ctx, e2))
	require.NoError(t, repo.Append(ctx, audit.NewEntry(ctx, "pay-2", "order-2", audit.EventReadyChecked, 0, "")))

	entries, err := repo.ListByPaymentID(ctx, "pay-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.EventConfirmed, entries[0].Event)
	assert.Equal(t, audit.EventCancelled, entries[1].Event)
	assert.Equal(t, int64(50000), entries[0].Amount)
}
