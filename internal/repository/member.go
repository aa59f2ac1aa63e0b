package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"microfinance-reports/internal/domain"
)

type MemberRepository struct {
	db *sql.DB
}

func NewMemberRepository(db *sql.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// FindMember resolves a member by NIC or, for numeric keys, by internal id.
// NIC wins when both match different members.
func (r *MemberRepository) FindMember(ctx context.Context, key string) (*domain.Member, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.ErrMemberNotFound
	}

	var internalID *int64
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		internalID = &id
	}

	query := `
		SELECT m.id, m.full_name, m.nic, m.phone, m.address, m.created_at
		FROM members m
		WHERE m.nic = $1 OR ($2::bigint IS NOT NULL AND m.id = $2)
		ORDER BY (m.nic = $1) DESC, m.id
		LIMIT 1
	`

	var m domain.Member
	err := r.db.QueryRowContext(ctx, query, key, internalID).Scan(
		&m.ID,
		&m.FullName,
		&m.NIC,
		&m.Phone,
		&m.Address,
		&m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find member %q: %w", key, err)
	}
	return &m, nil
}

func (r *MemberRepository) MemberByID(ctx context.Context, id int64) (*domain.Member, error) {
	query := `
		SELECT m.id, m.full_name, m.nic, m.phone, m.address, m.created_at
		FROM members m
		WHERE m.id = $1
	`

	var m domain.Member
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.FullName,
		&m.NIC,
		&m.Phone,
		&m.Address,
		&m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("member %d: %w", id, err)
	}
	return &m, nil
}
