package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/purgegate/internal/approval"
)

// Groups implements approval.GroupStore on the groups table.
//
// The pending request is stored as a JSON column on the group row, guarded
// by the revision counter. WriteRequest bumps the revision in the same
// UPDATE that checks it, so two racing writers can never both succeed.
type Groups struct {
	db *sql.DB
}

// UpsertGroup creates or updates a group row. The revision and any pending
// request are preserved on update.
func (g *Groups) UpsertGroup(ctx context.Context, grp approval.Group) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO groups (id, external_id, name, channel_ref)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			external_id = excluded.external_id,
			name = excluded.name,
			channel_ref = excluded.channel_ref
	`, grp.ID, grp.ExternalID, grp.Name, grp.ChannelRef)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	return nil
}

// ResolveGroup implements approval.GroupStore.
// Matches by internal id first, then by external id. Returns (nil, nil)
// when no group matches.
func (g *Groups) ResolveGroup(ctx context.Context, ref string) (*approval.Group, error) {
	row := g.db.QueryRowContext(ctx, `
		SELECT id, external_id, name, channel_ref
		FROM groups
		WHERE id = ? OR external_id = ?
		ORDER BY (id = ?) DESC
		LIMIT 1
	`, ref, ref, ref)

	var grp approval.Group
	err := row.Scan(&grp.ID, &grp.ExternalID, &grp.Name, &grp.ChannelRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve group: %w", err)
	}
	return &grp, nil
}

// ReadRequest implements approval.GroupStore. Returns the pending request
// (nil when absent) and the aggregate revision for a subsequent CAS write.
func (g *Groups) ReadRequest(ctx context.Context, groupID string) (*approval.DeletionRequest, int64, error) {
	var raw sql.NullString
	var revision int64
	err := g.db.QueryRowContext(ctx, `
		SELECT pending_request, revision FROM groups WHERE id = ?
	`, groupID).Scan(&raw, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("read request: unknown group %s", groupID)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read request: %w", err)
	}

	if !raw.Valid || raw.String == "" {
		return nil, revision, nil
	}

	var req approval.DeletionRequest
	if err := json.Unmarshal([]byte(raw.String), &req); err != nil {
		return nil, 0, fmt.Errorf("read request: decode: %w", err)
	}
	return &req, revision, nil
}

// WriteRequest implements approval.GroupStore with compare-and-swap on the
// aggregate revision. A nil request clears the column. Returns the new
// revision on success and approval.ErrRevisionConflict when the aggregate
// moved since the read.
func (g *Groups) WriteRequest(ctx context.Context, groupID string, req *approval.DeletionRequest, expectedRevision int64) (int64, error) {
	var raw any
	if req != nil {
		encoded, err := json.Marshal(req)
		if err != nil {
			return 0, fmt.Errorf("write request: encode: %w", err)
		}
		raw = string(encoded)
	}

	res, err := g.db.ExecContext(ctx, `
		UPDATE groups
		SET pending_request = ?, revision = revision + 1
		WHERE id = ? AND revision = ?
	`, raw, groupID, expectedRevision)
	if err != nil {
		return 0, fmt.Errorf("write request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("write request: rows affected: %w", err)
	}
	if affected == 0 {
		// Either the revision moved or the group does not exist.
		var exists int
		if err := g.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM groups WHERE id = ?`, groupID,
		).Scan(&exists); err != nil {
			return 0, fmt.Errorf("write request: %w", err)
		}
		if exists == 0 {
			return 0, fmt.Errorf("write request: unknown group %s", groupID)
		}
		return 0, approval.ErrRevisionConflict
	}

	return expectedRevision + 1, nil
}
