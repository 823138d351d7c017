package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupUoWTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)

	return db
}

func TestSQLiteUnitOfWork_CommitPersists(t *testing.T) {
	db := setupUoWTestDB(t)
	uow := NewSQLiteUnitOfWork(db)

	ctx, err := uow.Begin(context.Background())
	require.NoError(t, err)

	info, ok := SQLiteTxInfoFromContext(ctx)
	require.True(t, ok)
	require.True(t, info.Owned)

	_, err = info.Tx.ExecContext(ctx, `INSERT INTO items (name) VALUES ('a')`)
	require.NoError(t, err)

	require.NoError(t, uow.Commit(ctx))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLiteUnitOfWork_RollbackDiscards(t *testing.T) {
	db := setupUoWTestDB(t)
	uow := NewSQLiteUnitOfWork(db)

	ctx, err := uow.Begin(context.Background())
	require.NoError(t, err)

	info, _ := SQLiteTxInfoFromContext(ctx)
	_, err = info.Tx.ExecContext(ctx, `INSERT INTO items (name) VALUES ('a')`)
	require.NoError(t, err)

	require.NoError(t, uow.Rollback(ctx))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestSQLiteUnitOfWork_NestedBeginJoinsOuterTx(t *testing.T) {
	db := setupUoWTestDB(t)
	uow := NewSQLiteUnitOfWork(db)

	outer, err := uow.Begin(context.Background())
	require.NoError(t, err)

	inner, err := uow.Begin(outer)
	require.NoError(t, err)

	innerInfo, ok := SQLiteTxInfoFromContext(inner)
	require.True(t, ok)
	assert.False(t, innerInfo.Owned)

	// Inner commit is a no-op; outer still owns the transaction.
	require.NoError(t, uow.Commit(inner))

	_, err = innerInfo.Tx.ExecContext(inner, `INSERT INTO items (name) VALUES ('a')`)
	require.NoError(t, err)
	require.NoError(t, uow.Commit(outer))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLiteUnitOfWork_CommitWithoutBegin(t *testing.T) {
	db := setupUoWTestDB(t)
	uow := NewSQLiteUnitOfWork(db)

	err := uow.Commit(context.Background())
	assert.Error(t, err)
}
