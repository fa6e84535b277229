package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// MembershipDirectory checks group membership in group_members.
type MembershipDirectory struct {
	pool *pgxpool.Pool
}

func NewMembershipDirectory(pool *pgxpool.Pool) *MembershipDirectory {
	return &MembershipDirectory{pool: pool}
}

func (d *MembershipDirectory) IsMember(ctx context.Context, groupRef, principal string) (bool, error) {
	var ok bool
	err := d.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`,
		groupRef, principal).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return ok, nil
}

// ProfileDirectory resolves names from profiles: display name, then username,
// then the local part of the email address.
type ProfileDirectory struct {
	pool *pgxpool.Pool
}

func NewProfileDirectory(pool *pgxpool.Pool) *ProfileDirectory {
	return &ProfileDirectory{pool: pool}
}

func (d *ProfileDirectory) LookupName(ctx context.Context, uid string) (string, error) {
	var name string
	err := d.pool.QueryRow(ctx, `
		SELECT COALESCE(NULLIF(display_name, ''), NULLIF(username, ''), NULLIF(split_part(email, '@', 1), ''), '')
		FROM profiles WHERE user_id = $1`, uid).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup profile: %w", err)
	}
	return name, nil
}
