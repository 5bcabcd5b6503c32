package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-alumni-api/internal/domain"
)

const verificationColumns = `id, address, purpose, code_hash, consumed, consumed_at, created_at, expires_at`

type VerificationRepo struct {
	q    dbtx
	lock string
}

func scanVerification(row rowScanner) (*domain.VerificationCode, error) {
	var (
		v                domain.VerificationCode
		purpose          string
		consumedAt       sql.NullInt64
		created, expires int64
	)
	if err := row.Scan(&v.ID, &v.Address, &purpose, &v.CodeHash, &v.Consumed, &consumedAt, &created, &expires); err != nil {
		return nil, err
	}
	v.Purpose = domain.Purpose(purpose)
	v.ConsumedAt = timePtr(consumedAt)
	v.CreatedAt = fromMillis(created)
	v.ExpiresAt = fromMillis(expires)
	return &v, nil
}

// Create inserts a new code row. Earlier rows for the same address and
// purpose stay redeemable until they expire.
func (r *VerificationRepo) Create(ctx context.Context, v *domain.VerificationCode) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO verification_codes (`+verificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.ID, v.Address, string(v.Purpose), v.CodeHash, false, nil, toMillis(v.CreatedAt), toMillis(v.ExpiresAt))
	if err != nil {
		return fmt.Errorf("create verification code: %w", err)
	}
	return nil
}

// ConsumeLatest must run inside a transaction for the consume to be atomic
// with whatever the caller does next.
func (r *VerificationRepo) ConsumeLatest(ctx context.Context, address string, purpose domain.Purpose, codeHash string, now time.Time) (*domain.VerificationCode, error) {
	v, err := scanVerification(r.q.QueryRowContext(ctx, `SELECT `+verificationColumns+`
		FROM verification_codes
		WHERE address = $1 AND purpose = $2 AND code_hash = $3 AND consumed = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT 1`+r.lock, address, string(purpose), codeHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrInvalidOrExpiredCode
	}
	if err != nil {
		return nil, fmt.Errorf("load verification code: %w", err)
	}
	if v.Expired(now) {
		return nil, domain.ErrInvalidOrExpiredCode
	}

	res, err := r.q.ExecContext(ctx, `UPDATE verification_codes
		SET consumed = TRUE, consumed_at = $2
		WHERE id = $1 AND consumed = FALSE`, v.ID, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("consume verification code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("consume verification code: %w", err)
	}
	if n != 1 {
		return nil, domain.ErrInvalidOrExpiredCode
	}

	v.Consumed = true
	consumedAt := fromMillis(toMillis(now))
	v.ConsumedAt = &consumedAt
	return v, nil
}

// ListByAddress returns every row for (address, purpose), newest first.
func (r *VerificationRepo) ListByAddress(ctx context.Context, address string, purpose domain.Purpose) ([]domain.VerificationCode, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+verificationColumns+`
		FROM verification_codes WHERE address = $1 AND purpose = $2
		ORDER BY created_at DESC, id DESC`, address, string(purpose))
	if err != nil {
		return nil, fmt.Errorf("list verification codes: %w", err)
	}
	defer rows.Close()

	var out []domain.VerificationCode
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification code: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}
