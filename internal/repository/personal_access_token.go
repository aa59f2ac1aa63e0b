package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"microfinance-reports/internal/domain"
)

const userTokenableType = "App\\Models\\User"

type PersonalAccessTokenRepository struct {
	db  *sql.DB
	log *zap.Logger
}

func NewPersonalAccessTokenRepository(db *sql.DB, log *zap.Logger) *PersonalAccessTokenRepository {
	return &PersonalAccessTokenRepository{db: db, log: log}
}

// splitPlainToken splits "<id>|<secret>" bearer tokens. Tokens without an id
// prefix are returned whole.
func splitPlainToken(plainToken string) (*int64, string) {
	idx := strings.Index(plainToken, "|")
	if idx <= 0 {
		return nil, plainToken
	}
	id, err := strconv.ParseInt(plainToken[:idx], 10, 64)
	if err != nil {
		return nil, plainToken[idx+1:]
	}
	return &id, plainToken[idx+1:]
}

func hashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("%x", sum)
}

func (r *PersonalAccessTokenRepository) FindTokenByPlainToken(ctx context.Context, plainToken string) (*domain.PersonalAccessToken, error) {
	plainToken = strings.TrimSpace(plainToken)
	if plainToken == "" {
		return nil, domain.ErrTokenNotFound
	}

	tokenID, secret := splitPlainToken(plainToken)
	hashStr := hashToken(secret)

	var pat domain.PersonalAccessToken

	if tokenID != nil {
		query := `
			SELECT id, token, tokenable_id, abilities, expires_at
			FROM personal_access_tokens
			WHERE id = $1
			  AND tokenable_type = $2
			  AND (expires_at IS NULL OR expires_at > $3)
		`

		err := r.db.QueryRowContext(ctx, query, *tokenID, userTokenableType, time.Now()).Scan(
			&pat.ID,
			&pat.TokenHash,
			&pat.UserID,
			&pat.Abilities,
			&pat.ExpiresAt,
		)
		if err == nil && pat.TokenHash == hashStr {
			return &pat, nil
		}
		if err != nil && err != sql.ErrNoRows {
			r.log.Warn("token lookup by id failed", zap.Int64("token_id", *tokenID), zap.Error(err))
		}
	}

	query := `
		SELECT id, token, tokenable_id, abilities, expires_at
		FROM personal_access_tokens
		WHERE tokenable_type = $1
		  AND token = $2
		  AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.QueryRowContext(ctx, query, userTokenableType, hashStr, time.Now()).Scan(
		&pat.ID,
		&pat.TokenHash,
		&pat.UserID,
		&pat.Abilities,
		&pat.ExpiresAt,
	)
	if err != nil {
		if err != sql.ErrNoRows {
			r.log.Warn("token lookup by hash failed", zap.Error(err))
		}
		return nil, domain.ErrTokenNotFound
	}

	return &pat, nil
}
