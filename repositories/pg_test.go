package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"energy-server/db"
	"energy-server/entities"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (db.Database, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)

	return &db.GormDatabase{DB: gdb}, mock
}

func TestUserPgRepository_GetByEmail(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewUserPgRepository(database)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "created_at", "updated_at"}).
		AddRow("u1", "Alice", "alice@example.com", "hash", now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1`)).WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "hash", user.PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPgRepository_GetByEmail_NotFound(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewUserPgRepository(database)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDevicePgRepository_SumEnergyUsage(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewDevicePgRepository(database)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(energy_usage), 0) FROM "devices"`)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(60.0))

	total, err := repo.SumEnergyUsage(context.Background(), "u1", entities.DeviceOn)
	require.NoError(t, err)
	assert.Equal(t, 60.0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDevicePgRepository_DeleteMissing(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewDevicePgRepository(database)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "devices" SET "deleted_at"=`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDevicePgRepository_GetHistoryNewestChronological(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewDevicePgRepository(database)

	base := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "device_id", "timestamp", "energy_consumed"}).
		AddRow("s3", "d1", base.Add(2*time.Minute), 0.3).
		AddRow("s2", "d1", base.Add(time.Minute), 0.2)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "energy_samples" WHERE device_id = $1 ORDER BY timestamp DESC LIMIT`)).
		WillReturnRows(rows)

	hist, err := repo.GetHistory(context.Background(), "d1", 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "s2", hist[0].ID)
	assert.Equal(t, "s3", hist[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetPgRepository_GetByStatus(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewBudgetPgRepository(database)

	rows := sqlmock.NewRows([]string{"id", "user_id", "energy_limit", "period", "energy_usage", "alerts", "status"}).
		AddRow("b1", "u1", 50.0, "Monthly", 0.0, false, "Active").
		AddRow("b2", "u2", 10.0, "Daily", 12.0, true, "Active")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "budgets" WHERE status = $1`)).WillReturnRows(rows)

	budgets, err := repo.GetByStatus(context.Background(), entities.BudgetActive)
	require.NoError(t, err)
	require.Len(t, budgets, 2)
	assert.Equal(t, entities.PeriodMonthly, budgets[0].Period)
	assert.True(t, budgets[1].Alerts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertPgRepository_GetByUserID(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewAlertPgRepository(database)

	rows := sqlmock.NewRows([]string{"id", "user_id", "message", "is_read"}).
		AddRow("a2", "u1", "newer", false).
		AddRow("a1", "u1", "older", true)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "alerts" WHERE user_id = $1 ORDER BY created_at DESC`)).
		WillReturnRows(rows)

	alerts, err := repo.GetByUserID(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "a2", alerts[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
