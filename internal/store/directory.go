package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/purgegate/internal/approval"
)

// Directory implements approval.Directory on the members table.
//
// This is the reference backend used by the operator CLI. Deployments that
// sync membership from an external chat platform substitute their own
// implementation behind the same interface.
type Directory struct {
	db *sql.DB
}

// UpsertMember creates or updates a membership row.
// Role is "admin" or "member".
func (d *Directory) UpsertMember(ctx context.Context, groupID, identityID, displayName, role string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO members (group_id, identity_id, display_name, role, active)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(group_id, identity_id) DO UPDATE SET
			display_name = excluded.display_name,
			role = excluded.role,
			active = 1
	`, groupID, identityID, displayName, role)
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

// DeactivateMember marks a membership inactive. Inactive members keep their
// row (past approvals stay attributable) but stop counting toward the
// threshold and lose voting eligibility.
func (d *Directory) DeactivateMember(ctx context.Context, groupID, identityID string) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE members SET active = 0 WHERE group_id = ? AND identity_id = ?
	`, groupID, identityID)
	if err != nil {
		return fmt.Errorf("deactivate member: %w", err)
	}
	return nil
}

// CountActiveMembers implements approval.Directory.
func (d *Directory) CountActiveMembers(ctx context.Context, groupID string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM members WHERE group_id = ? AND active = 1
	`, groupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active members: %w", err)
	}
	return count, nil
}

// IsAdmin implements approval.Directory.
func (d *Directory) IsAdmin(ctx context.Context, identityID, groupID string) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM members
		WHERE group_id = ? AND identity_id = ? AND role = 'admin' AND active = 1
	`, groupID, identityID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return count > 0, nil
}

// IsMember implements approval.Directory.
func (d *Directory) IsMember(ctx context.Context, identityID, groupID string) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM members
		WHERE group_id = ? AND identity_id = ? AND active = 1
	`, groupID, identityID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return count > 0, nil
}

// ResolveIdentity implements approval.Directory. Returns (nil, nil) when the
// ref matches no active membership.
func (d *Directory) ResolveIdentity(ctx context.Context, ref string) (*approval.Identity, error) {
	var id approval.Identity
	err := d.db.QueryRowContext(ctx, `
		SELECT identity_id, display_name FROM members
		WHERE identity_id = ? AND active = 1
		ORDER BY group_id ASC
		LIMIT 1
	`, ref).Scan(&id.ID, &id.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	return &id, nil
}
