package account

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medora/medora/internal/platform/apierr"
	"github.com/medora/medora/internal/platform/auth"
	"github.com/medora/medora/internal/platform/db"
)

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userColumns = `id, username, email, password_hash, first_name, last_name, phone, role, is_active, created_at, updated_at`

var constraintMessages = map[string]string{
	"users_username_key": "Username already exists",
	"users_email_key":    "Email already exists",
}

func conflictOr(err error, op string) error {
	if db.ValueTooLong(err) {
		return apierr.Validation(db.ValueTooLongMessage)
	}
	if name, ok := db.UniqueViolation(err); ok {
		if msg, known := constraintMessages[name]; known {
			return apierr.Conflict(msg)
		}
		return apierr.Conflict("Record already exists")
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, first_name, last_name, phone, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, string(u.Role), u.IsActive,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return conflictOr(err, "insert user")
	}
	return nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByLogin(ctx context.Context, login string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $1 ORDER BY username = $1 DESC LIMIT 1`, login))
}

func (r *userRepoPG) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

func (r *userRepoPG) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE users SET
			first_name = $2, last_name = $3, phone = $4, role = $5, is_active = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.FirstName, u.LastName, u.Phone, string(u.Role), u.IsActive,
	).Scan(&u.UpdatedAt)
	if db.IsNotFound(err) {
		return apierr.NotFound("User not found")
	}
	if err != nil {
		return conflictOr(err, "update user")
	}
	return nil
}

func (r *userRepoPG) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.NotFound("User not found")
	}
	return nil
}

func (r *userRepoPG) List(ctx context.Context, limit, offset int) ([]*UserSummary, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users u WHERE u.is_active`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT u.id, u.username, u.email, u.password_hash, u.first_name, u.last_name, u.phone,
		       u.role, u.is_active, u.created_at, u.updated_at,
		       (SELECT COUNT(*) FROM patients p WHERE p.user_id = u.id AND p.is_active)
		FROM users u
		WHERE u.is_active
		ORDER BY u.created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*UserSummary
	for rows.Next() {
		var s UserSummary
		var role string
		if err := rows.Scan(&s.ID, &s.Username, &s.Email, &s.PasswordHash, &s.FirstName, &s.LastName, &s.Phone,
			&role, &s.IsActive, &s.CreatedAt, &s.UpdatedAt, &s.TotalPatients); err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		s.Role = auth.Role(role)
		users = append(users, &s)
	}
	return users, total, rows.Err()
}

var countedTables = []string{"users", "patients", "appointments", "revoked_tokens"}

func (r *userRepoPG) TableCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(countedTables))
	for _, table := range countedTables {
		var n int
		// table names come from the fixed list above
		if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone,
		&role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if db.IsNotFound(err) {
		return nil, apierr.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = auth.Role(role)
	return &u, nil
}
