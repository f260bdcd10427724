package sqlx_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	storage "loyaltykit/adapters/sqlx"
	"loyaltykit/core"
)

func newMockStore(t *testing.T) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, "postgres"), storage.DriverPostgres)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

func TestSQLMock_IncrBy_Insert(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	key := core.TrackKey("u1", core.TrackBuyer, core.FieldPoints)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO participants .* ON CONFLICT`).
		WithArgs(key.Participant).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT value FROM participant_values .* FOR UPDATE`).
		WithArgs(key.Participant, key.Track, key.Field).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO participant_values`).
		WithArgs(key.Participant, key.Track, key.Field, "10", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	total, err := store.IncrBy(ctx, key, 10)
	require.NoError(t, err)
	require.Equal(t, int64(10), total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_IncrBy_Update(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	key := core.TrackKey("u1", core.TrackSeller, core.FieldPoints)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO participants`).
		WithArgs(key.Participant).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT value FROM participant_values`).
		WithArgs(key.Participant, key.Track, key.Field).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("950"))
	mock.ExpectExec(`UPDATE participant_values SET value`).
		WithArgs("1150", sqlmock.AnyArg(), key.Participant, key.Track, key.Field).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	total, err := store.IncrBy(ctx, key, 200)
	require.NoError(t, err)
	require.Equal(t, int64(1150), total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_IncrBy_RollbackOnError(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	key := core.TrackKey("u1", core.TrackBuyer, core.FieldPoints)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO participants`).
		WithArgs(key.Participant).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT value FROM participant_values`).
		WithArgs(key.Participant, key.Track, key.Field).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.IncrBy(context.Background(), key, 1)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Get(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	key := core.SharedKey("u1", core.FieldProfile)

	mock.ExpectQuery(`SELECT value FROM participant_values WHERE participant_id = \$1`).
		WithArgs(key.Participant, key.Track, key.Field).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"country":"FR"}`))
	mock.ExpectQuery(`SELECT value FROM participant_values`).
		WithArgs(key.Participant, key.Track, key.Field).
		WillReturnError(sql.ErrNoRows)

	v, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, `{"country":"FR"}`, v)

	_, err = store.Get(ctx, key)
	require.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_AppendAndRange(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	key := core.TrackKey("u1", core.TrackBuyer, core.FieldHistory)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO participants`).
		WithArgs(key.Participant).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO participant_entries`).
		WithArgs(key.Participant, key.Track, key.Field, "{}", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectQuery(`SELECT value FROM \(SELECT id, value FROM participant_entries .* LIMIT \$4\) recent ORDER BY id ASC`).
		WithArgs(key.Participant, key.Track, key.Field, 2).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("a").AddRow("b"))

	require.NoError(t, store.Append(ctx, key, "{}"))
	vals, err := store.Range(ctx, key, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, vals)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Participants(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT participant_id FROM participants ORDER BY seq`).
		WillReturnRows(sqlmock.NewRows([]string{"participant_id"}).AddRow("b").AddRow("a"))

	ids, err := store.Participants(context.Background())
	require.NoError(t, err)
	require.Equal(t, []core.ParticipantID{"b", "a"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
