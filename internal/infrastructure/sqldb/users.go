package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-alumni-api/internal/domain"
)

const userColumns = `id, email, student_id, name, role, password_hash, verified, approved, avatar_key, enabled, created_at, updated_at`

type UserRepo struct {
	q dbtx
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u                domain.User
		studentID        sql.NullString
		created, updated int64
	)
	err := row.Scan(&u.UserID, &u.Email, &studentID, &u.Name, &u.Role, &u.PasswordHash,
		&u.Verified, &u.Approved, &u.AvatarKey, &u.Enabled, &created, &updated)
	if err != nil {
		return nil, err
	}
	u.StudentID = stringPtr(studentID)
	u.HasAvatar = u.AvatarKey != ""
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return &u, nil
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepo) Get(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `email = $1`, email)
}

func (r *UserRepo) GetByStudentID(ctx context.Context, studentID string) (*domain.User, error) {
	return r.getOne(ctx, `student_id = $1`, studentID)
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.UserID, u.Email, nullString(u.StudentID), u.Name, u.Role, u.PasswordHash,
		u.Verified, u.Approved, u.AvatarKey, u.Enabled, toMillis(u.CreatedAt), toMillis(u.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", u.Email, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	u.HasAvatar = u.AvatarKey != ""
	return nil
}

// Update writes every mutable column of u.
func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	res, err := r.q.ExecContext(ctx, `UPDATE users SET
		email = $2, student_id = $3, name = $4, role = $5, password_hash = $6,
		verified = $7, approved = $8, avatar_key = $9, enabled = $10, updated_at = $11
		WHERE id = $1`,
		u.UserID, u.Email, nullString(u.StudentID), u.Name, u.Role, u.PasswordHash,
		u.Verified, u.Approved, u.AvatarKey, u.Enabled, toMillis(u.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", u.Email, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if err := expectOne(res, u.UserID); err != nil {
		return err
	}
	u.HasAvatar = u.AvatarKey != ""
	return nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, u *domain.User) error {
	res, err := r.q.ExecContext(ctx, `UPDATE users SET
		student_id = $2, name = $3, role = $4, enabled = $5, updated_at = $6
		WHERE id = $1`,
		u.UserID, nullString(u.StudentID), u.Name, u.Role, u.Enabled, toMillis(u.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", u.UserID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	return expectOne(res, u.UserID)
}

func (r *UserRepo) SetPassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, toMillis(at))
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return expectOne(res, id)
}

func (r *UserRepo) SetAvatar(ctx context.Context, id, avatarKey string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `UPDATE users SET avatar_key = $2, updated_at = $3 WHERE id = $1`,
		id, avatarKey, toMillis(at))
	if err != nil {
		return fmt.Errorf("set avatar: %w", err)
	}
	return expectOne(res, id)
}

func expectOne(res sql.Result, id string) error {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// List returns one page of users, newest first, and the total count.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]domain.User, int, error) {
	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	rows, err := r.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users
		ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}
