package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"coopmarket/internal/auction/models"
	"coopmarket/pkg/domain"
	"coopmarket/pkg/platform/sentinel"
)

// Postgres persists auctions and bids in PostgreSQL. The bid CAS is a
// conditional UPDATE inside a transaction: the price row only moves when the
// auction is still ACTIVE and the price still matches what the caller saw.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const auctionColumns = `id, product_id, seller_id, title, description, starting_price, current_price, reserve_price, min_bid_increment, start_time, end_time, status, winner_id, total_bids, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, auction *models.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(auction.ID), uuid.UUID(auction.ProductID), uuid.UUID(auction.SellerID),
		auction.Title, auction.Description, auction.StartingPrice, auction.CurrentPrice,
		auction.ReservePrice, auction.MinBidIncrement, auction.StartTime, auction.EndTime,
		string(auction.Status), nullUserID(auction.WinnerID), auction.TotalBids,
		auction.CreatedAt, auction.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create auction: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.AuctionID) (*models.Auction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, uuid.UUID(id))
	auction, err := scanAuctionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return auction, nil
}

func (s *Postgres) Update(ctx context.Context, auction *models.Auction) error {
	query := `
		UPDATE auctions SET
			title = $2, description = $3, current_price = $4, reserve_price = $5,
			min_bid_increment = $6, start_time = $7, end_time = $8, status = $9,
			winner_id = $10, total_bids = $11, updated_at = $12
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(auction.ID), auction.Title, auction.Description, auction.CurrentPrice,
		auction.ReservePrice, auction.MinBidIncrement, auction.StartTime, auction.EndTime,
		string(auction.Status), nullUserID(auction.WinnerID), auction.TotalBids,
		auction.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update auction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update auction: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, filter ListFilter) ([]*models.Auction, int, error) {
	where := `WHERE ($1 = '' OR status = $1) AND ($2::uuid IS NULL OR seller_id = $2)`

	var sellerID any
	if !filter.SellerID.IsZero() {
		sellerID = uuid.UUID(filter.SellerID)
	}

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM auctions `+where, string(filter.Status), sellerID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count auctions: %w", err)
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
		`SELECT `+auctionColumns+` FROM auctions `+where+`
		ORDER BY end_time ASC LIMIT $3 OFFSET $4`,
		string(filter.Status), sellerID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*models.Auction
	for rows.Next() {
		auction, err := scanAuctionRow(rows)
		if err != nil {
			return nil, 0, err
		}
		auctions = append(auctions, auction)
	}
	return auctions, total, rows.Err()
}

func (s *Postgres) ListDue(ctx context.Context, now time.Time) ([]*models.Auction, []*models.Auction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions
		WHERE (status = $1 AND start_time <= $3) OR (status = $2 AND end_time <= $3)`,
		string(models.StatusScheduled), string(models.StatusActive), now)
	if err != nil {
		return nil, nil, fmt.Errorf("list due auctions: %w", err)
	}
	defer rows.Close()

	var toActivate, toEnd []*models.Auction
	for rows.Next() {
		auction, err := scanAuctionRow(rows)
		if err != nil {
			return nil, nil, err
		}
		if auction.Status == models.StatusScheduled {
			toActivate = append(toActivate, auction)
		} else {
			toEnd = append(toEnd, auction)
		}
	}
	return toActivate, toEnd, rows.Err()
}

func (s *Postgres) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM auctions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count auctions by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[models.Status(status)] = count
	}
	return counts, rows.Err()
}

func (s *Postgres) PlaceBid(ctx context.Context, bid *models.Bid, expectedPrice float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("place bid: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE auctions
		SET current_price = $2, total_bids = total_bids + 1, updated_at = $3
		WHERE id = $1 AND current_price = $4 AND status = $5
	`, uuid.UUID(bid.AuctionID), bid.Amount, bid.CreatedAt, expectedPrice, string(models.StatusActive))
	if err != nil {
		return fmt.Errorf("place bid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("place bid: %w", err)
	}
	if affected == 0 {
		// The auction vanished, closed, or a concurrent bid moved the price.
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM auctions WHERE id = $1`,
			uuid.UUID(bid.AuctionID)).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("place bid: %w", err)
		}
		if models.Status(status) != models.StatusActive {
			return sentinel.ErrInvalidState
		}
		return sentinel.ErrConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bids (id, auction_id, bidder_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(bid.ID), uuid.UUID(bid.AuctionID), uuid.UUID(bid.BidderID), bid.Amount, bid.CreatedAt)
	if err != nil {
		return fmt.Errorf("place bid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("place bid: %w", err)
	}
	return nil
}

func (s *Postgres) ListBids(ctx context.Context, auctionID domain.AuctionID) ([]*models.Bid, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, auction_id, bidder_id, amount, created_at
		FROM bids WHERE auction_id = $1 ORDER BY amount DESC
	`, uuid.UUID(auctionID))
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()
	return scanBids(rows)
}

func (s *Postgres) HighestBid(ctx context.Context, auctionID domain.AuctionID) (*models.Bid, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, auction_id, bidder_id, amount, created_at
		FROM bids WHERE auction_id = $1 ORDER BY amount DESC LIMIT 1
	`, uuid.UUID(auctionID))
	bid, err := scanBidRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return bid, nil
}

func (s *Postgres) ListBidsByBidder(ctx context.Context, bidderID domain.UserID) ([]*models.Bid, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, auction_id, bidder_id, amount, created_at
		FROM bids WHERE bidder_id = $1 ORDER BY created_at DESC
	`, uuid.UUID(bidderID))
	if err != nil {
		return nil, fmt.Errorf("list bids by bidder: %w", err)
	}
	defer rows.Close()
	return scanBids(rows)
}

func scanAuctionRow(row interface{ Scan(dest ...any) error }) (*models.Auction, error) {
	var (
		auction   models.Auction
		id        uuid.UUID
		productID uuid.UUID
		sellerID  uuid.UUID
		status    string
		winnerID  uuid.NullUUID
	)
	err := row.Scan(&id, &productID, &sellerID, &auction.Title, &auction.Description,
		&auction.StartingPrice, &auction.CurrentPrice, &auction.ReservePrice,
		&auction.MinBidIncrement, &auction.StartTime, &auction.EndTime, &status,
		&winnerID, &auction.TotalBids, &auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, err
	}
	auction.ID = domain.AuctionID(id)
	auction.ProductID = domain.ProductID(productID)
	auction.SellerID = domain.UserID(sellerID)
	auction.Status = models.Status(status)
	if winnerID.Valid {
		winner := domain.UserID(winnerID.UUID)
		auction.WinnerID = &winner
	}
	return &auction, nil
}

func scanBids(rows *sql.Rows) ([]*models.Bid, error) {
	var bids []*models.Bid
	for rows.Next() {
		bid, err := scanBidRow(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

func scanBidRow(row interface{ Scan(dest ...any) error }) (*models.Bid, error) {
	var (
		bid       models.Bid
		id        uuid.UUID
		auctionID uuid.UUID
		bidderID  uuid.UUID
	)
	if err := row.Scan(&id, &auctionID, &bidderID, &bid.Amount, &bid.CreatedAt); err != nil {
		return nil, err
	}
	bid.ID = domain.BidID(id)
	bid.AuctionID = domain.AuctionID(auctionID)
	bid.BidderID = domain.UserID(bidderID)
	return &bid, nil
}

func nullUserID(id *domain.UserID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*id), Valid: true}
}
