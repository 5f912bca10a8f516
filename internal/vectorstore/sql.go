package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/xxxsen/pdfqa/internal/pkg/dbutil"
)

const recordsTable = "records"

// insertRows writes all rows in one transaction so a batch is either
// fully persisted or not at all.
func insertRows(ctx context.Context, db *sql.DB, d dbutil.Dialect, rows []map[string]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	sqlStr, args, err := builder.BuildInsert(recordsTable, rows)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(d, sqlStr, args)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert records: %w", err)
	}
	return tx.Commit()
}

func countRows(ctx context.Context, db *sql.DB, d dbutil.Dialect, collection string) (int64, error) {
	where := map[string]interface{}{"collection": collection}
	sqlStr, args, err := builder.BuildSelect(recordsTable, where, []string{"COUNT(*) AS cnt"})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(d, sqlStr, args)
	var cnt int64
	if err := db.QueryRowContext(ctx, sqlStr, args...).Scan(&cnt); err != nil {
		return 0, err
	}
	return cnt, nil
}
