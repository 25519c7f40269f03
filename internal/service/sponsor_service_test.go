package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tronpay/gateway/internal/client"
	"github.com/tronpay/gateway/internal/config"
	"github.com/tronpay/gateway/internal/model"
	"github.com/tronpay/gateway/internal/tron"
	"github.com/tronpay/gateway/pkg/errors"
)

func newSponsorEnv(t *testing.T, pollCfg config.PollConfig) (*fakeTronRPC, SponsorService, *tron.Keypair) {
	t.Helper()

	rpc := newFakeTronRPC()
	master, err := tron.GenerateKeypair()
	require.NoError(t, err)
	rpc.setTRX(master.Base58Address, 2000)

	sender, err := NewTrxSender(rpc, master.Base58Address, master.PrivateKeyHex, nil)
	require.NoError(t, err)

	sponsor := NewSponsorService(sender, config.SponsorConfig{AmountTrx: mustDecimal("15")}, pollCfg)
	return rpc, sponsor, master
}

func sponsorTarget(t *testing.T, rpc *fakeTronRPC) (*model.OutgoingTransfer, *model.Wallet) {
	t.Helper()
	kp, err := tron.GenerateKeypair()
	require.NoError(t, err)
	wallet := &model.Wallet{ID: 1, Address: kp.Base58Address, PrivateKey: kp.PrivateKeyHex, Activated: true}
	transfer := &model.OutgoingTransfer{ID: 1, FromWalletID: 1, Status: model.TransferStatusSponsoring}
	return transfer, wallet
}

func TestSponsorService_Sponsor(t *testing.T) {
	rpc, sponsor, master := newSponsorEnv(t, config.PollConfig{
		VisibilitySec: 2, VisibilityIntervalSec: 0,
	})
	transfer, wallet := sponsorTarget(t, rpc)
	ctx := context.Background()

	txHash, err := sponsor.Sponsor(ctx, transfer, wallet)
	require.NoError(t, err)
	assert.NotEmpty(t, txHash)

	// 用户钱包收到 15 TRX，主钱包扣减
	account, err := rpc.GetAccount(ctx, wallet.Address)
	require.NoError(t, err)
	assert.Equal(t, int64(15_000_000), account.BalanceSun)

	masterAccount, err := rpc.GetAccount(ctx, master.Base58Address)
	require.NoError(t, err)
	assert.Equal(t, int64(2000_000_000-15_000_000), masterAccount.BalanceSun)
}

func TestSponsorService_ReentryDoesNotRebroadcast(t *testing.T) {
	rpc, sponsor, _ := newSponsorEnv(t, config.PollConfig{
		VisibilitySec: 2, VisibilityIntervalSec: 0,
	})
	transfer, wallet := sponsorTarget(t, rpc)
	ctx := context.Background()

	first, err := sponsor.Sponsor(ctx, transfer, wallet)
	require.NoError(t, err)
	transfer.SponsorTxHash = first
	count := rpc.broadcastCount()

	// 重入: 只等待可见，不再广播
	second, err := sponsor.Sponsor(ctx, transfer, wallet)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, count, rpc.broadcastCount())
}

func TestSponsorService_InsufficientMasterBalance(t *testing.T) {
	rpc, sponsor, master := newSponsorEnv(t, config.PollConfig{
		VisibilitySec: 1, VisibilityIntervalSec: 0,
	})
	rpc.setTRX(master.Base58Address, 1)
	transfer, wallet := sponsorTarget(t, rpc)

	_, err := sponsor.Sponsor(context.Background(), transfer, wallet)
	assert.ErrorIs(t, err, errors.ErrInsufficientMasterBalance)
	assert.Equal(t, 0, rpc.broadcastCount())
}

func TestSponsorService_BroadcastRejected(t *testing.T) {
	rpc, sponsor, _ := newSponsorEnv(t, config.PollConfig{
		VisibilitySec: 1, VisibilityIntervalSec: 0,
	})
	rpc.broadcastResult = &client.BroadcastResult{
		Result: false, Code: "BANDWITH_ERROR", Message: "bandwidth not enough",
	}
	transfer, wallet := sponsorTarget(t, rpc)

	_, err := sponsor.Sponsor(context.Background(), transfer, wallet)
	assert.ErrorIs(t, err, errors.ErrBroadcastRejected)
}

func TestSponsorService_DuplicateBroadcastIsSuccess(t *testing.T) {
	rpc, sponsor, _ := newSponsorEnv(t, config.PollConfig{
		VisibilitySec: 0, VisibilityIntervalSec: 0,
	})
	transfer, wallet := sponsorTarget(t, rpc)

	// 重复码视同广播成功；资金未动，可见性超时
	rpc.broadcastResult = &client.BroadcastResult{
		Result: false, Code: "DUP_TRANSACTION_ERROR", TxID: "deadbeef",
	}

	_, err := sponsor.Sponsor(context.Background(), transfer, wallet)
	assert.ErrorIs(t, err, errors.ErrVisibilityTimeout)
}

func TestSponsorService_VisibilityTimeout(t *testing.T) {
	rpc, sponsor, _ := newSponsorEnv(t, config.PollConfig{
		VisibilitySec: 0, VisibilityIntervalSec: 0,
	})
	transfer, wallet := sponsorTarget(t, rpc)

	// 广播"成功"但链上永远看不到资金
	rpc.broadcastResult = &client.BroadcastResult{Result: true, TxID: "feedface"}

	_, err := sponsor.Sponsor(context.Background(), transfer, wallet)
	assert.ErrorIs(t, err, errors.ErrVisibilityTimeout)
}
