package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daeli/backend/internal/models"
)

// MaxCoupleSize is how many partners may share a couple token.
const MaxCoupleSize = 2

var (
	ErrPartnerNotFound = errors.New("partner not found")
	ErrEmailTaken      = errors.New("email already in use")
	ErrCoupleFull      = errors.New("couple already has two partners")
	ErrCoupleNotFound  = errors.New("couple not found")
)

const uniqueViolation = "23505"

// Repository handles partner persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const partnerColumns = `partner_id, couple_token, email, display_name, password_hash, created_at`

func scanPartner(row pgx.Row) (*models.Partner, error) {
	var p models.Partner
	err := row.Scan(&p.ID, &p.CoupleToken, &p.Email, &p.DisplayName, &p.PasswordHash, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPartnerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID returns a partner by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Partner, error) {
	return scanPartner(r.pool.QueryRow(ctx, `SELECT `+partnerColumns+` FROM partners WHERE partner_id = $1`, id))
}

// GetByEmail returns a partner by (lower-cased) email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Partner, error) {
	return scanPartner(r.pool.QueryRow(ctx, `SELECT `+partnerColumns+` FROM partners WHERE email = $1`, email))
}

// Create inserts a partner. When join is true the couple must already exist
// and have room; the couple row count is checked under an advisory lock so
// two concurrent joins cannot both succeed.
func (r *Repository) Create(ctx context.Context, p *models.Partner, join bool) (*models.Partner, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, p.CoupleToken); err != nil {
		return nil, fmt.Errorf("lock couple: %w", err)
	}
	var members int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM partners WHERE couple_token = $1`, p.CoupleToken).Scan(&members); err != nil {
		return nil, fmt.Errorf("count couple: %w", err)
	}
	switch {
	case join && members == 0:
		return nil, ErrCoupleNotFound
	case members >= MaxCoupleSize:
		return nil, ErrCoupleFull
	}

	created, err := scanPartner(tx.QueryRow(ctx, `INSERT INTO partners (partner_id, couple_token, email, display_name, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+partnerColumns,
		p.ID, p.CoupleToken, p.Email, p.DisplayName, p.PasswordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert partner: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

// ListByCouple returns the partners sharing a couple token.
func (r *Repository) ListByCouple(ctx context.Context, coupleToken string) ([]models.Partner, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+partnerColumns+` FROM partners WHERE couple_token = $1 ORDER BY created_at`, coupleToken)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}
