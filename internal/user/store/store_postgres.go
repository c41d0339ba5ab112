package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"coopmarket/internal/user/models"
	"coopmarket/pkg/domain"
	"coopmarket/pkg/platform/sentinel"
)

// Postgres persists the user directory in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const userColumns = `id, email, username, first_name, last_name, phone, external_id, password_hash, role, is_verified, is_active, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(user.ID), user.Email, user.Username, user.FirstName, user.LastName,
		user.Phone, nullString(user.ExternalID), nullString(user.PasswordHash),
		string(user.Role), user.IsVerified, user.IsActive, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.UserID) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, uuid.UUID(id))
	return scanUser(row)
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (s *Postgres) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	if externalID == "" {
		return nil, sentinel.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID)
	return scanUser(row)
}

func (s *Postgres) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET
			email = $2, username = $3, first_name = $4, last_name = $5, phone = $6,
			external_id = $7, password_hash = $8, role = $9, is_verified = $10,
			is_active = $11, updated_at = $12
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(user.ID), user.Email, user.Username, user.FirstName, user.LastName,
		user.Phone, nullString(user.ExternalID), nullString(user.PasswordHash),
		string(user.Role), user.IsVerified, user.IsActive, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, filter ListFilter) ([]*models.User, int, error) {
	where := `WHERE ($1 = '' OR role = $1)
		AND ($2 = '' OR email ILIKE '%' || $2 || '%' OR first_name ILIKE '%' || $2 || '%' OR last_name ILIKE '%' || $2 || '%')`

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM users `+where, string(filter.Role), filter.Search).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
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
		`SELECT `+userColumns+` FROM users `+where+`
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		string(filter.Role), filter.Search, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUserRows(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

func (s *Postgres) CountByRole(ctx context.Context) (map[domain.Role]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role, count(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Role]int)
	for rows.Next() {
		var (
			role  string
			count int
		)
		if err := rows.Scan(&role, &count); err != nil {
			return nil, fmt.Errorf("scan role count: %w", err)
		}
		counts[domain.Role(role)] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row *sql.Row) (*models.User, error) {
	user, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func scanUserRows(rows *sql.Rows) (*models.User, error) {
	return scanUserRow(rows)
}

func scanUserRow(row rowScanner) (*models.User, error) {
	var (
		user       models.User
		id         uuid.UUID
		externalID sql.NullString
		pwHash     sql.NullString
		role       string
	)
	err := row.Scan(&id, &user.Email, &user.Username, &user.FirstName, &user.LastName,
		&user.Phone, &externalID, &pwHash, &role, &user.IsVerified, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.ID = domain.UserID(id)
	user.ExternalID = externalID.String
	user.PasswordHash = pwHash.String
	user.Role = domain.Role(role)
	return &user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
