//go:build integration

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coopmarket/internal/auction/models"
	productmodels "coopmarket/internal/product/models"
	productstore "coopmarket/internal/product/store"
	usermodels "coopmarket/internal/user/models"
	userstore "coopmarket/internal/user/store"
	"coopmarket/pkg/domain"
	"coopmarket/pkg/platform/sentinel"
	"coopmarket/pkg/testutil/containers"
)

type pgFixture struct {
	pg       *containers.PostgresContainer
	store    *Postgres
	sellerID domain.UserID
	bidderID domain.UserID
	product  domain.ProductID
}

func newPgFixture(t *testing.T) *pgFixture {
	t.Helper()
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	users := userstore.NewPostgres(pg.DB)
	seller := &usermodels.User{
		ID: domain.NewUserID(), Email: "seller@example.com", Username: "seller",
		Role: domain.RoleSeller, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	bidder := &usermodels.User{
		ID: domain.NewUserID(), Email: "bidder@example.com", Username: "bidder",
		Role: domain.RoleBuyer, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, users.Create(ctx, seller))
	require.NoError(t, users.Create(ctx, bidder))

	products := productstore.NewPostgres(pg.DB)
	product := &productmodels.Product{
		ID: domain.NewProductID(), SellerID: seller.ID, Name: "Heritage Hens",
		Category: productmodels.CategoryHen, Price: 50, Quantity: 3,
		Unit: productmodels.UnitPiece, Images: []string{}, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, products.Create(ctx, product))

	return &pgFixture{
		pg:       pg,
		store:    NewPostgres(pg.DB),
		sellerID: seller.ID,
		bidderID: bidder.ID,
		product:  product.ID,
	}
}

func (f *pgFixture) seedAuction(t *testing.T, status models.Status, start, end time.Time) *models.Auction {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	auction := &models.Auction{
		ID:              domain.NewAuctionID(),
		ProductID:       f.product,
		SellerID:        f.sellerID,
		Title:           "Lot",
		StartingPrice:   50,
		CurrentPrice:    50,
		MinBidIncrement: 5,
		StartTime:       start,
		EndTime:         end,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, f.store.Create(context.Background(), auction))
	return auction
}

func TestPostgresAuctionStore(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("bid CAS", func(t *testing.T) {
		auction := f.seedAuction(t, models.StatusActive, now.Add(-time.Hour), now.Add(time.Hour))

		bid := &models.Bid{
			ID: domain.NewBidID(), AuctionID: auction.ID, BidderID: f.bidderID,
			Amount: 60, CreatedAt: now,
		}
		require.NoError(t, f.store.PlaceBid(ctx, bid, 50))

		updated, err := f.store.FindByID(ctx, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, 60.0, updated.CurrentPrice)
		assert.Equal(t, 1, updated.TotalBids)

		stale := &models.Bid{
			ID: domain.NewBidID(), AuctionID: auction.ID, BidderID: f.bidderID,
			Amount: 70, CreatedAt: now,
		}
		assert.ErrorIs(t, f.store.PlaceBid(ctx, stale, 50), sentinel.ErrConflict)

		missing := &models.Bid{
			ID: domain.NewBidID(), AuctionID: domain.NewAuctionID(), BidderID: f.bidderID,
			Amount: 70, CreatedAt: now,
		}
		assert.ErrorIs(t, f.store.PlaceBid(ctx, missing, 50), sentinel.ErrNotFound)
	})

	t.Run("closed auction rejects bids even at the expected price", func(t *testing.T) {
		auction := f.seedAuction(t, models.StatusActive, now.Add(-time.Hour), now.Add(time.Hour))
		auction.Status = models.StatusEnded
		require.NoError(t, f.store.Update(ctx, auction))

		late := &models.Bid{
			ID: domain.NewBidID(), AuctionID: auction.ID, BidderID: f.bidderID,
			Amount: 60, CreatedAt: now,
		}
		assert.ErrorIs(t, f.store.PlaceBid(ctx, late, 50), sentinel.ErrInvalidState)

		unchanged, err := f.store.FindByID(ctx, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, 50.0, unchanged.CurrentPrice)
		assert.Equal(t, 0, unchanged.TotalBids)
	})

	t.Run("concurrent bids admit exactly one", func(t *testing.T) {
		auction := f.seedAuction(t, models.StatusActive, now.Add(-time.Hour), now.Add(time.Hour))

		const racers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				bid := &models.Bid{
					ID: domain.NewBidID(), AuctionID: auction.ID, BidderID: f.bidderID,
					Amount: 60, CreatedAt: time.Now(),
				}
				if err := f.store.PlaceBid(ctx, bid, 50); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
		updated, err := f.store.FindByID(ctx, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, updated.TotalBids)
	})

	t.Run("bid queries", func(t *testing.T) {
		auction := f.seedAuction(t, models.StatusActive, now.Add(-time.Hour), now.Add(time.Hour))

		_, err := f.store.HighestBid(ctx, auction.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		expected := 50.0
		for _, amount := range []float64{60, 75, 90} {
			bid := &models.Bid{
				ID: domain.NewBidID(), AuctionID: auction.ID, BidderID: f.bidderID,
				Amount: amount, CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
			}
			require.NoError(t, f.store.PlaceBid(ctx, bid, expected))
			expected = amount
		}

		highest, err := f.store.HighestBid(ctx, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, 90.0, highest.Amount)

		bids, err := f.store.ListBids(ctx, auction.ID)
		require.NoError(t, err)
		require.Len(t, bids, 3)
		assert.Equal(t, 90.0, bids[0].Amount)

		mine, err := f.store.ListBidsByBidder(ctx, f.bidderID)
		require.NoError(t, err)
		assert.NotEmpty(t, mine)
	})

	t.Run("due auctions", func(t *testing.T) {
		require.NoError(t, f.pg.Truncate(ctx, "bids", "auctions"))

		dueStart := f.seedAuction(t, models.StatusScheduled, now.Add(-time.Minute), now.Add(time.Hour))
		f.seedAuction(t, models.StatusScheduled, now.Add(time.Hour), now.Add(2*time.Hour))
		dueEnd := f.seedAuction(t, models.StatusActive, now.Add(-2*time.Hour), now.Add(-time.Minute))
		f.seedAuction(t, models.StatusActive, now.Add(-time.Hour), now.Add(time.Hour))

		toActivate, toEnd, err := f.store.ListDue(ctx, now)
		require.NoError(t, err)
		require.Len(t, toActivate, 1)
		assert.Equal(t, dueStart.ID, toActivate[0].ID)
		require.Len(t, toEnd, 1)
		assert.Equal(t, dueEnd.ID, toEnd[0].ID)
	})

	t.Run("list and counts", func(t *testing.T) {
		require.NoError(t, f.pg.Truncate(ctx, "bids", "auctions"))

		f.seedAuction(t, models.StatusActive, now.Add(-time.Hour), now.Add(time.Hour))
		f.seedAuction(t, models.StatusActive, now.Add(-time.Hour), now.Add(30*time.Minute))
		f.seedAuction(t, models.StatusEnded, now.Add(-3*time.Hour), now.Add(-time.Hour))

		active, total, err := f.store.List(ctx, ListFilter{Status: models.StatusActive, Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, active, 2)
		assert.True(t, active[0].EndTime.Before(active[1].EndTime), "soonest ending first")

		counts, err := f.store.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, counts[models.StatusActive])
		assert.Equal(t, 1, counts[models.StatusEnded])
	})
}
