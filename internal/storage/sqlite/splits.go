package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/commercelab/settlement/internal/settlement/domain"
	"github.com/commercelab/settlement/internal/settlement/ports"
)

// SplitRepository is the SQLite implementation of ports.SplitRepository.
type SplitRepository struct {
	db *sql.DB
}

var _ ports.SplitRepository = (*SplitRepository)(nil)

func NewSplitRepository(d *DB) *SplitRepository {
	return &SplitRepository{db: d.db}
}

const splitColumns = `split_id, payment_id, order_ref, order_item_id, owner_id, item_amount, canceled_amount, created_at`

func (r *SplitRepository) GetByOrderItemID(ctx context.Context, orderItemID string) (*domain.Split, error) {
	q := `SELECT ` + splitColumns + ` FROM splits WHERE order_item_id = ?`
	row := r.db.QueryRowContext(ctx, q, orderItemID)

	s, err := scanSplit(row)
	if err == sql.ErrNoRows {
		return nil, domain.E(domain.CodeSplitNotFound, "no split for order item "+orderItemID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load split for item %q: %w", orderItemID, err)
	}
	return s, nil
}

func (r *SplitRepository) ExistsByOrderItemID(ctx context.Context, orderItemID string) (bool, error) {
	const q = `SELECT 1 FROM splits WHERE order_item_id = ?`
	var one int
	err := r.db.QueryRowContext(ctx, q, orderItemID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: check split for item %q: %w", orderItemID, err)
	}
	return true, nil
}

func (r *SplitRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]*domain.Split, error) {
	q := `SELECT ` + splitColumns + ` FROM splits WHERE payment_id = ? ORDER BY created_at, split_id`
	rows, err := r.db.QueryContext(ctx, q, paymentID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list splits for payment %q: %w", paymentID, err)
	}
	defer rows.Close()

	var splits []*domain.Split
	for rows.Next() {
		s, err := scanSplit(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan split for payment %q: %w", paymentID, err)
		}
		splits = append(splits, s)
	}
	return splits, rows.Err()
}

// SaveAll inserts new splits. INSERT OR IGNORE on the unique order_item_id
// keeps confirm replays from ever creating a second split for a line item.
func (r *SplitRepository) SaveAll(ctx context.Context, splits []*domain.Split) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin save splits: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT OR IGNORE INTO splits (` + splitColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for _, s := range splits {
		_, err := tx.ExecContext(ctx, q,
			s.ID, s.PaymentID, s.OrderRef, s.OrderItemID, s.OwnerID, s.ItemAmount, s.CanceledAmount, formatTime(s.CreatedAt))
		if err != nil {
			return fmt.Errorf("sqlite: save split for item %q: %w", s.OrderItemID, err)
		}
	}
	return tx.Commit()
}

func (r *SplitRepository) Save(ctx context.Context, s *domain.Split) error {
	const q = `UPDATE splits SET canceled_amount = ? WHERE split_id = ?`
	if _, err := r.db.ExecContext(ctx, q, s.CanceledAmount, s.ID); err != nil {
		return fmt.Errorf("sqlite: save split %q: %w", s.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSplit(row rowScanner) (*domain.Split, error) {
	var s domain.Split
	var createdAt string
	err := row.Scan(&s.ID, &s.PaymentID, &s.OrderRef, &s.OrderItemID, &s.OwnerID, &s.ItemAmount, &s.CanceledAmount, &createdAt)
	if err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseRFC3339(createdAt); err != nil {
		return nil, err
	}
	return &s, nil
}
