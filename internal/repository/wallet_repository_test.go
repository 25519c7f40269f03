package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tronpay/gateway/internal/model"
)

// walletColumns 返回 wallets 表的所有列名
func walletColumns() []string {
	return []string{
		"id", "address", "hex_address", "private_key", "owner_id",
		"activated", "activation_tx_hash", "created_at", "updated_at",
	}
}

func TestWalletRepository_Create(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewWalletRepository(db)

	wallet := &model.Wallet{
		Address:    "TH3QBLNLsimQbNwq2DxTGhoDYeeCZYTvK3",
		HexAddress: "41a614f803b6fd780986a42c78ec9c7f77e6ded13c",
		PrivateKey: "df319c4fe709ad6a9f32b07ada986f4055708f4e064e5ff6cab439561a6eae59",
		OwnerID:    "user_12345",
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "wallets"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), wallet)

	assert.NoError(t, err)
	assert.Equal(t, int64(1), wallet.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_GetByID(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewWalletRepository(db)

	rows := sqlmock.NewRows(walletColumns()).AddRow(
		1, "TH3QBLNLsimQbNwq2DxTGhoDYeeCZYTvK3",
		"41a614f803b6fd780986a42c78ec9c7f77e6ded13c",
		"df319c4fe709ad6a9f32b07ada986f4055708f4e064e5ff6cab439561a6eae59",
		"user_12345", true, "abc123", 1700000000000, 1700000000000,
	)
	mock.ExpectQuery(`SELECT \* FROM "wallets"`).WillReturnRows(rows)

	wallet, err := repo.GetByID(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, "user_12345", wallet.OwnerID)
	assert.True(t, wallet.Activated)
}

func TestWalletRepository_GetByID_NotFound(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewWalletRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "wallets"`).
		WillReturnRows(sqlmock.NewRows(walletColumns()))

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestWalletRepository_MarkActivated(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewWalletRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "wallets" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.MarkActivated(context.Background(), 1, "txhash"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_MarkActivated_Missing(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewWalletRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "wallets" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	assert.ErrorIs(t, repo.MarkActivated(context.Background(), 42, "txhash"), ErrWalletNotFound)
}
