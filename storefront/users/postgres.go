package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// subset of pgxpool.Pool used by the repository, satisfied by pgxmock in tests
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Store = (*Repository)(nil)

// postgres-backed user store
type Repository struct {
	db  DBTX
	now func() time.Time
}

// creates a new user repository
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db, now: time.Now}
}

// inserts a new user, assigning an id when none is set
func (r *Repository) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	u.Email = normalizeEmail(u.Email)
	prepareNew(u, r.now().UTC())

	_, err := r.db.Exec(
		ctx,
		queryCreate,
		u.ID,
		u.Name,
		u.Email,
		u.PasswordHash,
		string(u.Role),
		u.IsVerified,
		u.IsActive,
		string(u.Provider),
		u.ProviderID,
		u.AvatarURL,
		u.CreatedAt,
		u.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}

		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// finds a user by their ID
func (r *Repository) FindByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	return r.queryOne(ctx, queryFindByID, id)
}

// finds a user by email (case-insensitive)
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.queryOne(ctx, queryFindByEmail, normalizeEmail(email))
}

// finds a user by external provider identity
func (r *Repository) FindByProviderID(ctx context.Context, provider Provider, providerID string) (*User, error) {
	if providerID == "" {
		return nil, ErrNotFound
	}

	return r.queryOne(ctx, queryFindByProviderID, string(provider), providerID)
}

// attaches an external identity to an existing account
func (r *Repository) LinkProvider(ctx context.Context, id string, link ProviderLink) (*User, error) {
	return r.queryOne(
		ctx,
		queryLinkProvider,
		string(link.Provider),
		link.ProviderID,
		link.AvatarURL,
		id,
	)
}

// updates a user's name and avatar URL
func (r *Repository) UpdateProfile(ctx context.Context, id, name, avatarURL string) (*User, error) {
	return r.queryOne(ctx, queryUpdateProfile, name, avatarURL, id)
}

// changes a user's role
func (r *Repository) UpdateRole(ctx context.Context, id string, role Role) (*User, error) {
	return r.queryOne(ctx, queryUpdateRole, string(role), id)
}

// replaces the stored password hash
func (r *Repository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := r.db.Exec(ctx, queryUpdatePassword, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// lists users, newest first
func (r *Repository) List(ctx context.Context, limit, offset int) ([]*User, error) {
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(ctx, queryList, clampLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var result []*User

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}

		result = append(result, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return result, nil
}

func (r *Repository) queryOne(ctx context.Context, query string, args ...any) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}

		return nil, err
	}

	return u, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u        User
		role     string
		provider string
	)

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.IsVerified,
		&u.IsActive,
		&provider,
		&u.ProviderID,
		&u.AvatarURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	u.Role = Role(role)
	u.Provider = Provider(provider)

	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	return strings.Contains(err.Error(), "SQLSTATE 23505")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
