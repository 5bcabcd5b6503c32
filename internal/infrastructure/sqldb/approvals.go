package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-alumni-api/internal/domain"
)

const approvalColumns = `id, email, student_id, role, used_by, used_at, created_at`

type ApprovalRepo struct {
	q dbtx
}

func scanApproval(row rowScanner) (*domain.Approval, error) {
	var (
		a                        domain.Approval
		email, studentID, usedBy sql.NullString
		usedAt                   sql.NullInt64
		created                  int64
	)
	if err := row.Scan(&a.ID, &email, &studentID, &a.Role, &usedBy, &usedAt, &created); err != nil {
		return nil, err
	}
	a.Email = stringPtr(email)
	a.StudentID = stringPtr(studentID)
	a.UsedBy = stringPtr(usedBy)
	a.UsedAt = timePtr(usedAt)
	a.CreatedAt = fromMillis(created)
	return &a, nil
}

func (r *ApprovalRepo) Create(ctx context.Context, a *domain.Approval) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO approved_users (`+approvalColumns+`)
		VALUES ($1, $2, $3, $4, NULL, NULL, $5)`,
		a.ID, nullString(a.Email), nullString(a.StudentID), a.Role, toMillis(a.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("approval: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create approval: %w", err)
	}
	return nil
}

func (r *ApprovalRepo) List(ctx context.Context) ([]domain.Approval, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+approvalColumns+` FROM approved_users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	out := []domain.Approval{}
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *ApprovalRepo) FindUnused(ctx context.Context, email, studentID string) (*domain.Approval, error) {
	a, err := scanApproval(r.q.QueryRowContext(ctx, `SELECT `+approvalColumns+`
		FROM approved_users
		WHERE used_at IS NULL AND ((email IS NOT NULL AND email = $1) OR (student_id IS NOT NULL AND student_id = $2))
		ORDER BY created_at, id
		LIMIT 1`, email, studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("approval: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find approval: %w", err)
	}
	return a, nil
}

// MarkUsed fails with ErrConflict when the approval was already used.
func (r *ApprovalRepo) MarkUsed(ctx context.Context, id, userID string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `UPDATE approved_users SET used_by = $2, used_at = $3
		WHERE id = $1 AND used_at IS NULL`, id, userID, toMillis(at))
	if err != nil {
		return fmt.Errorf("mark approval used: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("approval %s already used: %w", id, domain.ErrConflict)
	}
	return nil
}
