package repository

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupMockDB 构造基于 sqlmock 的 gorm 连接
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	return db, mock, func() { sqlDB.Close() }
}

func TestPagination(t *testing.T) {
	p := &Pagination{}
	require.Equal(t, 0, p.Offset())
	require.Equal(t, 20, p.Limit())

	p = &Pagination{Page: 3, PageSize: 10}
	require.Equal(t, 20, p.Offset())
	require.Equal(t, 10, p.Limit())

	p = &Pagination{Page: 1, PageSize: 1000}
	require.Equal(t, 100, p.Limit())
}
