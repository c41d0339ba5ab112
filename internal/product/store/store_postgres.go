package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"coopmarket/internal/product/models"
	"coopmarket/pkg/domain"
	"coopmarket/pkg/platform/sentinel"
)

// Postgres persists the product catalog in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const productColumns = `id, seller_id, name, description, category, subcategory, price, quantity, unit, images, is_active, is_featured, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(product.ID), uuid.UUID(product.SellerID), product.Name, product.Description,
		string(product.Category), product.Subcategory, product.Price, product.Quantity,
		string(product.Unit), pq.Array(product.Images), product.IsActive, product.IsFeatured,
		product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.ProductID) (*models.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, uuid.UUID(id))
	product, err := scanProductRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *Postgres) Update(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products SET
			name = $2, description = $3, category = $4, subcategory = $5, price = $6,
			quantity = $7, unit = $8, images = $9, is_active = $10, is_featured = $11,
			updated_at = $12
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(product.ID), product.Name, product.Description, string(product.Category),
		product.Subcategory, product.Price, product.Quantity, string(product.Unit),
		pq.Array(product.Images), product.IsActive, product.IsFeatured, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, id domain.ProductID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, filter ListFilter) ([]*models.Product, int, error) {
	where := `WHERE ($1 = '' OR category = $1)
		AND ($2 = '' OR lower(subcategory) = lower($2))
		AND ($3 = '' OR name ILIKE '%' || $3 || '%' OR description ILIKE '%' || $3 || '%')
		AND ($4::numeric IS NULL OR price >= $4)
		AND ($5::numeric IS NULL OR price <= $5)
		AND ($6::uuid IS NULL OR seller_id = $6)
		AND (NOT $7 OR is_active)`

	var sellerID any
	if !filter.SellerID.IsZero() {
		sellerID = uuid.UUID(filter.SellerID)
	}
	args := []any{
		string(filter.Category), filter.Subcategory, filter.Search,
		nullFloat(filter.MinPrice), nullFloat(filter.MaxPrice), sellerID, filter.ActiveOnly,
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM products `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
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
		`SELECT `+productColumns+` FROM products `+where+`
		ORDER BY `+orderClause(filter)+` LIMIT $8 OFFSET $9`,
		append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		product, err := scanProductRow(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, product)
	}
	return products, total, rows.Err()
}

func (s *Postgres) CategoryStats(ctx context.Context) ([]models.CategoryStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, subcategory, count(*)
		FROM products
		WHERE is_active
		GROUP BY category, subcategory
		ORDER BY category, subcategory
	`)
	if err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	defer rows.Close()

	var stats []models.CategoryStat
	for rows.Next() {
		var (
			stat     models.CategoryStat
			category string
		)
		if err := rows.Scan(&category, &stat.Subcategory, &stat.Count); err != nil {
			return nil, fmt.Errorf("scan category stat: %w", err)
		}
		stat.Category = models.Category(category)
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

func (s *Postgres) Count(ctx context.Context) (int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

// orderClause maps a ListFilter sort onto a fixed set of columns; values never
// reach the SQL text.
func orderClause(filter ListFilter) string {
	column := "created_at"
	switch filter.SortField {
	case SortPrice:
		column = "price"
	case SortName:
		column = "name"
	}
	direction := "ASC"
	if filter.SortDesc || filter.SortField == "" {
		direction = "DESC"
	}
	if filter.SortField == "" {
		column = "created_at"
	}
	return column + " " + direction
}

func scanProductRow(row interface{ Scan(dest ...any) error }) (*models.Product, error) {
	var (
		product  models.Product
		id       uuid.UUID
		sellerID uuid.UUID
		category string
		unit     string
		images   pq.StringArray
	)
	err := row.Scan(&id, &sellerID, &product.Name, &product.Description, &category,
		&product.Subcategory, &product.Price, &product.Quantity, &unit, &images,
		&product.IsActive, &product.IsFeatured, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	product.ID = domain.ProductID(id)
	product.SellerID = domain.UserID(sellerID)
	product.Category = models.Category(category)
	product.Unit = models.Unit(unit)
	product.Images = []string(images)
	return &product, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
