package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/purgegate/internal/approval"
)

// Items implements approval.ItemStore on the items table.
type Items struct {
	db *sql.DB
}

// UpsertItem creates or updates a work item.
func (it *Items) UpsertItem(ctx context.Context, item approval.Item) error {
	assignees, err := json.Marshal(item.Assignees)
	if err != nil {
		return fmt.Errorf("upsert item: encode assignees: %w", err)
	}

	_, err = it.db.ExecContext(ctx, `
		INSERT INTO items (id, group_id, title, status, assignees)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			group_id = excluded.group_id,
			title = excluded.title,
			status = excluded.status,
			assignees = excluded.assignees
	`, item.ID, item.GroupID, item.Title, item.Status, string(assignees))
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}

// FindItems implements approval.ItemStore. Only existing items belonging to
// groupID appear in the result; missing or foreign ids are simply absent.
// Results are ordered by id for determinism.
func (it *Items) FindItems(ctx context.Context, ids []string, groupID string) ([]approval.Item, error) {
	if len(ids) == 0 {
		return []approval.Item{}, nil
	}

	placeholders := make([]byte, 0, len(ids)*2-1)
	args := make([]any, 0, len(ids)+1)
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}
	args = append(args, groupID)

	rows, err := it.db.QueryContext(ctx, `
		SELECT id, group_id, title, status, assignees
		FROM items
		WHERE id IN (`+string(placeholders)+`) AND group_id = ?
		ORDER BY id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	defer rows.Close()

	var items []approval.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	if items == nil {
		items = []approval.Item{}
	}
	return items, nil
}

// DeleteItem implements approval.ItemStore. Deleting an absent item is an
// error so a failed deletion is never silently reported as success.
func (it *Items) DeleteItem(ctx context.Context, id string) error {
	res, err := it.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete item: %s not found", id)
	}
	return nil
}

// ListGroupItems returns every item of a group ordered by id.
// Used by the operator CLI and the "all"/"incomplete" selection filters.
func (it *Items) ListGroupItems(ctx context.Context, groupID string, filter approval.Filter) ([]approval.Item, error) {
	query := `
		SELECT id, group_id, title, status, assignees
		FROM items
		WHERE group_id = ?
		ORDER BY id ASC
	`
	if filter == approval.FilterIncomplete {
		query = `
			SELECT id, group_id, title, status, assignees
			FROM items
			WHERE group_id = ? AND status != 'done'
			ORDER BY id ASC
		`
	}

	rows, err := it.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group items: %w", err)
	}
	defer rows.Close()

	var items []approval.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	if items == nil {
		items = []approval.Item{}
	}
	return items, nil
}

// scanItem scans a row into an Item struct.
func scanItem(rows *sql.Rows) (approval.Item, error) {
	var item approval.Item
	var assigneesJSON string

	if err := rows.Scan(&item.ID, &item.GroupID, &item.Title, &item.Status, &assigneesJSON); err != nil {
		return approval.Item{}, fmt.Errorf("scan item: %w", err)
	}

	if err := json.Unmarshal([]byte(assigneesJSON), &item.Assignees); err != nil {
		return approval.Item{}, fmt.Errorf("scan item: decode assignees: %w", err)
	}
	return item, nil
}
