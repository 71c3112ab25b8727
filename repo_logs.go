package auth

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Logs is the append-only audit log store. Entries are never updated
// or deleted.
type Logs interface {
	Append(ctx context.Context, entry *LogEntry) error
	AppendTx(ctx context.Context, tx bun.IDB, entry *LogEntry) error
	ListOrdered(ctx context.Context) ([]*LogEntry, error)
	CountByAction(ctx context.Context) (map[string]int, error)
}

type logs struct {
	db *bun.DB
}

var _ Logs = (*logs)(nil)

func NewLogsRepository(db *bun.DB) Logs {
	return &logs{db: db}
}

func (l *logs) Append(ctx context.Context, entry *LogEntry) error {
	return l.AppendTx(ctx, l.db, entry)
}

func (l *logs) AppendTx(ctx context.Context, tx bun.IDB, entry *LogEntry) error {
	if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to append log entry")
	}
	return nil
}

func (l *logs) ListOrdered(ctx context.Context) ([]*LogEntry, error) {
	var entries []*LogEntry
	err := l.db.NewSelect().
		Model(&entries).
		Order("lg.created_at ASC", "lg.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list log entries")
	}
	return entries, nil
}

func (l *logs) CountByAction(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Action string `bun:"action"`
		Count  int    `bun:"count"`
	}
	err := l.db.NewSelect().
		Model((*LogEntry)(nil)).
		ColumnExpr("?TableAlias.action AS action").
		ColumnExpr("COUNT(*) AS count").
		Group("action").
		Scan(ctx, &rows)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to count log entries")
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Action] = row.Count
	}
	return counts, nil
}
