package state

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLStoreValidatesTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLStore(db, "aptemsync_state")
	assert.NoError(t, err)

	_, err = NewSQLStore(db, "state; DROP TABLE users")
	assert.Error(t, err)

	_, err = NewSQLStore(nil, "aptemsync_state")
	assert.Error(t, err)
}

func TestSQLStoreInitializeTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS `aptemsync_state`").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewSQLStore(db, "aptemsync_state")
	require.NoError(t, err)

	require.NoError(t, store.InitializeTable(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"cursor_kind", "cursor_value"}).
		AddRow("timestamp", "2024-03-01T12:00:00Z")
	mock.ExpectQuery("SELECT cursor_kind, cursor_value FROM `aptemsync_state`").
		WithArgs("Learners").
		WillReturnRows(rows)

	store, err := NewSQLStore(db, "aptemsync_state")
	require.NoError(t, err)

	cursor, ok, err := store.Get(context.Background(), "Learners")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, KindTimestamp, cursor.Kind)
	assert.Equal(t, "2024-03-01T12:00:00Z", cursor.Timestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreGetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT cursor_kind, cursor_value FROM `aptemsync_state`").
		WithArgs("Centres").
		WillReturnRows(sqlmock.NewRows([]string{"cursor_kind", "cursor_value"}))

	store, err := NewSQLStore(db, "aptemsync_state")
	require.NoError(t, err)

	_, ok, err := store.Get(context.Background(), "Centres")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreSet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO `aptemsync_state`").
		WithArgs("Learners", "offset", "500").
		WillReturnResult(sqlmock.NewResult(1, 1))

	store, err := NewSQLStore(db, "aptemsync_state")
	require.NoError(t, err)

	require.NoError(t, store.Set(context.Background(), "Learners", OffsetCursor(500)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
