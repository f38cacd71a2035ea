package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"moneypal/internal/core"
	"moneypal/internal/log"
)

// ResolveOrCreateTags normalizes the given names and resolves each to a tag
// id, inserting rows for names not seen before. Calling it twice with the
// same input yields the same id set without duplicate rows; races between
// concurrent writers are absorbed by INSERT OR IGNORE plus the engine's
// retry policy, not by application-level locking.
func (r *Repository) ResolveOrCreateTags(ctx context.Context, names []string) ([]int64, error) {
	var ids []int64
	err := r.engine.Transact(ctx, func(tx *sql.Tx) error {
		var err error
		ids, err = resolveOrCreateTags(ctx, tx, names)
		return err
	})
	return ids, err
}

func resolveOrCreateTags(ctx context.Context, tx *sql.Tx, names []string) ([]int64, error) {
	normalized := core.NormalizeTags(names)
	if len(normalized) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(normalized))
	for _, name := range normalized {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tags (name) VALUES (?)`, name); err != nil {
			return nil, fmt.Errorf("insert tag %q: %w", name, err)
		}
		var id int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM tags WHERE name = ?`, name).Scan(&id); err != nil {
			return nil, fmt.Errorf("resolve tag %q: %w", name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LinkTags replaces the expense's current tag links with exactly the given
// tag ids, inside one transaction. The expense never ends up with a partial
// link set.
func (r *Repository) LinkTags(ctx context.Context, expenseID int64, tagIDs []int64) error {
	return r.engine.Transact(ctx, func(tx *sql.Tx) error {
		var exists int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM expenses WHERE id = ?`, expenseID).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: expense %d", core.ErrNotFound, expenseID)
		}
		if err != nil {
			return fmt.Errorf("check expense: %w", err)
		}
		return linkTagIDs(ctx, tx, expenseID, tagIDs)
	})
}

func linkTagIDs(ctx context.Context, tx *sql.Tx, expenseID int64, tagIDs []int64) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM expense_tags WHERE expense_id = ?`, expenseID); err != nil {
		return fmt.Errorf("clear tag links: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO expense_tags (expense_id, tag_id) VALUES (?, ?)`,
			expenseID, tagID); err != nil {
			return fmt.Errorf("link tag %d: %w", tagID, err)
		}
	}
	return nil
}

// replaceExpenseTags resolves names and relinks in the caller's transaction.
func replaceExpenseTags(ctx context.Context, tx *sql.Tx, expenseID int64, names []string) error {
	ids, err := resolveOrCreateTags(ctx, tx, names)
	if err != nil {
		return err
	}
	return linkTagIDs(ctx, tx, expenseID, ids)
}

// ListTags returns all tags ordered by name.
func (r *Repository) ListTags(ctx context.Context) ([]core.Tag, error) {
	rows, err := r.engine.Query(ctx, `SELECT id, name FROM tags ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []core.Tag
	for rows.Next() {
		var t core.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

// DeleteTag removes a tag; the cascade removes its expense links.
func (r *Repository) DeleteTag(ctx context.Context, id int64) error {
	res, err := r.engine.Exec(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: tag %d", core.ErrNotFound, id)
	}

	slog.InfoContext(ctx, "Tag deleted",
		log.FieldComponent, log.ComponentTags,
		log.FieldOperation, log.OpDelete,
		log.FieldTagID, id)
	return nil
}

// expenseTagNames reads the sorted tag names of one expense.
func (r *Repository) expenseTagNames(ctx context.Context, expenseID int64) ([]string, error) {
	rows, err := r.engine.Query(ctx, `
		SELECT t.name
		  FROM expense_tags et
		  JOIN tags t ON t.id = et.tag_id
		 WHERE et.expense_id = ?
		 ORDER BY t.name ASC`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("load expense tags: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan tag name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
