package database

import (
	"context"
	"database/sql"
	"log" // Standard log for GORM logger
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres" // Using postgres driver for GORM, can be any dialect for mock
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newMockDB creates a new GORM DB instance with a sqlmock.
func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockSqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	// Configure a silent GORM logger for tests
	silentLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: mockSqlDB,
	}), &gorm.Config{
		Logger: silentLogger,
	})
	require.NoError(t, err)

	db := &DB{
		handler: gormDB,
		log:     logger.Mock().With().Logger(),
	}
	return db, mock
}

func TestNewKVRepo(t *testing.T) {
	log := logger.Mock()
	db, _ := newMockDB(t)

	repo := NewKVRepo(log, db)
	assert.NotNil(t, repo)

	kvRepo, ok := repo.(*KVRepo)
	assert.True(t, ok, "NewKVRepo should return a *KVRepo type")
	assert.NotNil(t, kvRepo.db, "DB should be assigned in KVRepo")
	assert.NotNil(t, kvRepo.log, "Logger should be assigned in KVRepo")
}

func TestKVRepo_Get(t *testing.T) {
	ctx := context.Background()
	log := logger.Mock()
	key := "@hamu_customers"
	value := []byte(`{"data":[],"timestamp":0}`)

	t.Run("Key found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewKVRepo(log, db)

		rows := sqlmock.NewRows([]string{"key", "value", "updated_at"}).
			AddRow(key, value, time.Now())
		// First() parameterizes the LIMIT, hence the trailing 1
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "kv_entries" WHERE key = $1`)).
			WithArgs(key, 1).
			WillReturnRows(rows)

		got, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, value, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Key absent", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewKVRepo(log, db)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "kv_entries" WHERE key = $1`)).
			WithArgs(key, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		got, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewKVRepo(log, db)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "kv_entries" WHERE key = $1`)).
			WithArgs(key, 1).
			WillReturnError(sql.ErrConnDone)

		got, err := repo.Get(ctx, key)
		require.Error(t, err)
		assert.Nil(t, got)
		assert.Contains(t, err.Error(), "failed to get kv entry")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestKVRepo_Set(t *testing.T) {
	ctx := context.Background()
	log := logger.Mock()
	key := "@hamu_offline_queue"
	value := []byte(`[]`)

	t.Run("Update existing key", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewKVRepo(log, db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "kv_entries" SET "updated_at"=$1,"value"=$2 WHERE key = $3`)).
			WithArgs(sqlmock.AnyArg(), value, key).
			WillReturnResult(sqlmock.NewResult(0, 1)) // 1 row affected
		mock.ExpectCommit()

		err := repo.Set(ctx, key, value)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Insert when update affects no rows", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewKVRepo(log, db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "kv_entries" SET "updated_at"=$1,"value"=$2 WHERE key = $3`)).
			WithArgs(sqlmock.AnyArg(), value, key).
			WillReturnResult(sqlmock.NewResult(0, 0)) // 0 rows affected by update
		mock.ExpectCommit()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "kv_entries" ("key","value","updated_at") VALUES ($1,$2,$3)`)).
			WithArgs(key, value, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := repo.Set(ctx, key, value)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Update error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewKVRepo(log, db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "kv_entries" SET "updated_at"=$1,"value"=$2 WHERE key = $3`)).
			WithArgs(sqlmock.AnyArg(), value, key).
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		err := repo.Set(ctx, key, value)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error updating kv entry")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Insert error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewKVRepo(log, db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "kv_entries" SET "updated_at"=$1,"value"=$2 WHERE key = $3`)).
			WithArgs(sqlmock.AnyArg(), value, key).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "kv_entries" ("key","value","updated_at") VALUES ($1,$2,$3)`)).
			WithArgs(key, value, sqlmock.AnyArg()).
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		err := repo.Set(ctx, key, value)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error inserting kv entry")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestKVRepo_Delete(t *testing.T) {
	ctx := context.Background()
	log := logger.Mock()

	t.Run("Delete multiple keys", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewKVRepo(log, db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "kv_entries" WHERE key IN ($1,$2)`)).
			WithArgs("auth_token", "refresh_token").
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		err := repo.Delete(ctx, "auth_token", "refresh_token")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No keys is a no-op", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewKVRepo(log, db)

		err := repo.Delete(ctx)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewKVRepo(log, db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "kv_entries" WHERE key IN ($1)`)).
			WithArgs("auth_token").
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		err := repo.Delete(ctx, "auth_token")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to delete kv entries")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestKVRepo_ListKeys(t *testing.T) {
	ctx := context.Background()
	log := logger.Mock()

	t.Run("Prefix match", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewKVRepo(log, db)

		rows := sqlmock.NewRows([]string{"key"}).
			AddRow("@hamu_customers").
			AddRow("@hamu_refills")
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT "key" FROM "kv_entries" WHERE key LIKE $1`)).
			WithArgs("@hamu_%").
			WillReturnRows(rows)

		keys, err := repo.ListKeys(ctx, "@hamu_")
		require.NoError(t, err)
		assert.Equal(t, []string{"@hamu_customers", "@hamu_refills"}, keys)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewKVRepo(log, db)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT "key" FROM "kv_entries" WHERE key LIKE $1`)).
			WithArgs("@hamu_%").
			WillReturnError(sql.ErrConnDone)

		keys, err := repo.ListKeys(ctx, "@hamu_")
		require.Error(t, err)
		assert.Nil(t, keys)
		assert.Contains(t, err.Error(), "failed to list kv keys")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
