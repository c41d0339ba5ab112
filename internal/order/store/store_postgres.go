package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"coopmarket/internal/order/models"
	"coopmarket/pkg/domain"
	"coopmarket/pkg/platform/sentinel"
)

// Postgres persists orders in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const orderColumns = `id, order_number, buyer_id, seller_id, product_id, auction_id, status, quantity, subtotal, tax, shipping, total, notes, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(order.ID), order.OrderNumber, uuid.UUID(order.BuyerID), uuid.UUID(order.SellerID),
		uuid.UUID(order.ProductID), nullAuctionID(order.AuctionID), string(order.Status),
		order.Quantity, order.Subtotal, order.Tax, order.Shipping, order.Total, order.Notes,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.OrderID) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, uuid.UUID(id))
	order, err := scanOrderRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *Postgres) Update(ctx context.Context, order *models.Order) error {
	query := `
		UPDATE orders SET status = $2, notes = $3, updated_at = $4
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(order.ID), string(order.Status), order.Notes, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, filter ListFilter) ([]*models.Order, int, error) {
	var side string
	switch filter.Side {
	case SideBuyer:
		side = `buyer_id = $1`
	case SideSeller:
		side = `seller_id = $1`
	default:
		side = `(buyer_id = $1 OR seller_id = $1)`
	}
	where := `WHERE ` + side + ` AND ($2 = '' OR status = $2)`

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM orders `+where,
		uuid.UUID(filter.UserID), string(filter.Status)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders `+where+`
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		uuid.UUID(filter.UserID), string(filter.Status), limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrderRow(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	return orders, total, rows.Err()
}

func (s *Postgres) Count(ctx context.Context) (int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM orders`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return total, nil
}

func scanOrderRow(row interface{ Scan(dest ...any) error }) (*models.Order, error) {
	var (
		order     models.Order
		id        uuid.UUID
		buyerID   uuid.UUID
		sellerID  uuid.UUID
		productID uuid.UUID
		auctionID uuid.NullUUID
		status    string
	)
	err := row.Scan(&id, &order.OrderNumber, &buyerID, &sellerID, &productID, &auctionID,
		&status, &order.Quantity, &order.Subtotal, &order.Tax, &order.Shipping, &order.Total,
		&order.Notes, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	order.ID = domain.OrderID(id)
	order.BuyerID = domain.UserID(buyerID)
	order.SellerID = domain.UserID(sellerID)
	order.ProductID = domain.ProductID(productID)
	order.Status = models.Status(status)
	if auctionID.Valid {
		aid := domain.AuctionID(auctionID.UUID)
		order.AuctionID = &aid
	}
	return &order, nil
}

func nullAuctionID(id *domain.AuctionID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*id), Valid: true}
}
