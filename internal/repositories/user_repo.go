package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/authcore/internal/database"
	"github.com/BradenHooton/authcore/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MsgEmailTaken is returned when another active account already owns the email
const MsgEmailTaken = "An account with that email already exists"

const userColumns = `id, name, email, password_hash, role, is_verified, is_active, last_login,
	password_changed_at, otp_hash, otp_expires_at, reset_token_hash, reset_token_expires_at,
	created_at, updated_at`

// UserRepository is the Postgres credential store. Every read ignores
// deactivated accounts.
type UserRepository struct {
	pool     *pgxpool.Pool
	preparer *SavePreparer
}

func NewUserRepository(db *database.DB, preparer *SavePreparer) *UserRepository {
	return &UserRepository{pool: db.Pool, preparer: preparer}
}

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var role string
	var otpHash, resetTokenHash *string

	err := scanner.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &role,
		&user.IsVerified, &user.IsActive, &user.LastLogin,
		&user.PasswordChangedAt, &otpHash, &user.OTPExpiresAt,
		&resetTokenHash, &user.ResetTokenExpiresAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.Role = models.Role(role)
	if otpHash != nil {
		user.OTPHash = *otpHash
	}
	if resetTokenHash != nil {
		user.ResetTokenHash = *resetTokenHash
	}

	return &user, nil
}

// scanUserRows iterates through rows and scans each into User models
func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_active`

	// Malformed ids cannot match a uuid column
	if !isUUID(id) {
		return nil, models.ErrNotFound
	}

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_active`

	return scanUserRow(r.pool.QueryRow(ctx, query, models.NormalizeEmail(email)))
}

func (r *UserRepository) FindByResetTokenHash(ctx context.Context, hash string) (*models.User, error) {
	if hash == "" {
		return nil, models.ErrNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE reset_token_hash = $1 AND is_active`

	return scanUserRow(r.pool.QueryRow(ctx, query, hash))
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_active
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

// Save runs the save pipeline on a copy of user and upserts it by ID.
// The caller's value is left untouched; the persisted record is returned.
func (r *UserRepository) Save(ctx context.Context, user *models.User) (*models.User, error) {
	u := *user
	if err := r.preparer.Prepare(ctx, &u); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			is_verified = EXCLUDED.is_verified,
			is_active = EXCLUDED.is_active,
			last_login = EXCLUDED.last_login,
			password_changed_at = EXCLUDED.password_changed_at,
			otp_hash = EXCLUDED.otp_hash,
			otp_expires_at = EXCLUDED.otp_expires_at,
			reset_token_hash = EXCLUDED.reset_token_hash,
			reset_token_expires_at = EXCLUDED.reset_token_expires_at,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns

	saved, err := scanUserRow(r.pool.QueryRow(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role),
		u.IsVerified, u.IsActive, u.LastLogin,
		u.PasswordChangedAt, nullIfEmpty(u.OTPHash), u.OTPExpiresAt,
		nullIfEmpty(u.ResetTokenHash), u.ResetTokenExpiresAt,
		u.CreatedAt, u.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			return nil, models.NewDuplicateKeyError(MsgEmailTaken)
		}
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	return saved, nil
}

// ClearExpiredSecrets drops OTP and reset secrets whose expiry is at or before now.
func (r *UserRepository) ClearExpiredSecrets(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users SET
			otp_hash = CASE WHEN otp_expires_at <= $1 THEN NULL ELSE otp_hash END,
			otp_expires_at = CASE WHEN otp_expires_at <= $1 THEN NULL ELSE otp_expires_at END,
			reset_token_hash = CASE WHEN reset_token_expires_at <= $1 THEN NULL ELSE reset_token_hash END,
			reset_token_expires_at = CASE WHEN reset_token_expires_at <= $1 THEN NULL ELSE reset_token_expires_at END
		WHERE otp_expires_at <= $1 OR reset_token_expires_at <= $1
	`

	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired secrets: %w", err)
	}

	return tag.RowsAffected(), nil
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
