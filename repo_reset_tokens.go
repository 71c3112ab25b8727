package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ResetTokenTTL is the validity window of a password reset token.
const ResetTokenTTL = time.Hour

// resetTokenBytes matches a 32-byte url-safe random token.
const resetTokenBytes = 32

type ResetTokens interface {
	IssueFor(ctx context.Context, userID int64, now time.Time) (*ResetToken, error)
	IssueForTx(ctx context.Context, tx bun.IDB, userID int64, now time.Time) (*ResetToken, error)
	// Consume validates the token and marks it used inside its own
	// transaction, so the single-use guarantee holds under concurrent
	// redemptions. Checks run in order: unknown token, already used,
	// expired. It returns the owning account id on success.
	Consume(ctx context.Context, token string, now time.Time) (int64, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (int64, error)
	DeleteForUserTx(ctx context.Context, tx bun.IDB, userID int64) error
}

type resetTokens struct {
	db *bun.DB
}

var _ ResetTokens = (*resetTokens)(nil)

func NewResetTokensRepository(db *bun.DB) ResetTokens {
	return &resetTokens{db: db}
}

func (r *resetTokens) IssueFor(ctx context.Context, userID int64, now time.Time) (*ResetToken, error) {
	return r.IssueForTx(ctx, r.db, userID, now)
}

func (r *resetTokens) IssueForTx(ctx context.Context, tx bun.IDB, userID int64, now time.Time) (*ResetToken, error) {
	token, err := generateResetToken()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate reset token")
	}

	record := &ResetToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(ResetTokenTTL),
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to store reset token")
	}

	return record, nil
}

func (r *resetTokens) Consume(ctx context.Context, token string, now time.Time) (int64, error) {
	var userID int64
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		userID, err = r.ConsumeTx(ctx, tx, token, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func (r *resetTokens) ConsumeTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (int64, error) {
	record := &ResetToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrResetTokenNotFound
		}
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to load reset token")
	}

	if record.Used {
		return 0, ErrResetTokenUsed
	}

	if now.After(record.ExpiresAt) {
		return 0, ErrResetTokenExpired
	}

	_, err = tx.NewUpdate().
		Model((*ResetToken)(nil)).
		Set("used = ?", true).
		Where("id = ?", record.ID).
		Exec(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to mark reset token used")
	}

	return record.UserID, nil
}

func (r *resetTokens) DeleteForUserTx(ctx context.Context, tx bun.IDB, userID int64) error {
	_, err := tx.NewDelete().
		Model((*ResetToken)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete reset tokens")
	}
	return nil
}

func generateResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
