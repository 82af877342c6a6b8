package sqlstd_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/forbearing/sqlmap/driver/sqlstd"
)

func TestQueryRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow(int64(1), "Alice").
		AddRow(int64(2), "Bob")
	mock.ExpectPrepare("SELECT id, name FROM person WHERE id > \\?").ExpectQuery().WithArgs(int64(0)).WillReturnRows(rows)

	conn := sqlstd.Wrap(db)
	defer conn.Close()

	ctx := context.Background()
	stmt, err := conn.Prepare(ctx, "SELECT id, name FROM person WHERE id > ?")
	require.NoError(t, err)
	defer stmt.Close()

	require.NoError(t, stmt.Bind(1, int64(0), ""))
	cursor, err := stmt.Execute(ctx)
	require.NoError(t, err)
	defer cursor.Close()

	var names []string
	for cursor.Next() {
		cols, err := cursor.Columns()
		require.NoError(t, err)
		require.Equal(t, []string{"id", "name"}, cols)

		cell, err := cursor.Column("name")
		require.NoError(t, err)
		names = append(names, cell.Value.(string))
	}
	require.NoError(t, cursor.Err())
	require.Equal(t, []string{"Alice", "Bob"}, names)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecReportsGeneratedKeyAndRowsAffected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare("INSERT INTO person").ExpectExec().WithArgs("Carol").WillReturnResult(sqlmock.NewResult(42, 1))

	conn := sqlstd.Wrap(db)
	ctx := context.Background()
	stmt, err := conn.Prepare(ctx, "INSERT INTO person (name) VALUES (?)")
	require.NoError(t, err)

	require.NoError(t, stmt.Bind(1, "Carol", ""))
	cursor, err := stmt.Execute(ctx)
	require.NoError(t, err)
	require.False(t, cursor.Next())

	id, affected, err := stmt.(interface {
		Result() (int64, int64, error)
	}).Result()
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
	require.Equal(t, int64(1), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionCommitAndRollback(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	conn := sqlstd.Wrap(db)
	ctx := context.Background()

	tx, err := conn.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx, err = conn.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	require.NoError(t, mock.ExpectationsWereMet())
}
