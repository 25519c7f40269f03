package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tronpay/gateway/internal/cache"
	"github.com/tronpay/gateway/internal/client"
	"github.com/tronpay/gateway/internal/tron"
	"github.com/tronpay/gateway/pkg/errors"
	"github.com/tronpay/gateway/pkg/logger"
)

// sunPerTrx 1 TRX = 1,000,000 SUN
var sunPerTrx = decimal.NewFromInt(1_000_000)

// TrxToSun TRX 金额转 SUN
func TrxToSun(trx decimal.Decimal) int64 {
	return trx.Mul(sunPerTrx).IntPart()
}

// SunToTrx SUN 转 TRX 金额
func SunToTrx(sun int64) decimal.Decimal {
	return decimal.NewFromInt(sun).Div(sunPerTrx)
}

// TrxSender 主钱包 TRX 发送器
// 赞助与激活共用；主钱包广播被进程内互斥锁与 Redis 锁双重串行化，
// 防止 ref_block 窗口在并发广播间交错
type TrxSender struct {
	rpc        client.TronRPC
	masterAddr string
	masterKey  string
	masterHex  []byte

	mu         sync.Mutex
	masterLock *cache.MasterLock
}

// NewTrxSender 创建 TRX 发送器
// 启动时校验主钱包私钥与地址匹配
func NewTrxSender(rpc client.TronRPC, masterAddr, masterKey string, masterLock *cache.MasterLock) (*TrxSender, error) {
	if err := tron.VerifyKeyAddress(masterKey, masterAddr); err != nil {
		return nil, errors.ErrKeyMismatch.WithMessage("master wallet key does not match address").WithCause(err)
	}
	masterHex, err := tron.DecodeBase58(masterAddr)
	if err != nil {
		return nil, errors.ErrInvalidAddress.WithCause(err)
	}
	return &TrxSender{
		rpc:        rpc,
		masterAddr: masterAddr,
		masterKey:  masterKey,
		masterHex:  masterHex,
		masterLock: masterLock,
	}, nil
}

// MasterAddress 主钱包 Base58 地址
func (s *TrxSender) MasterAddress() string {
	return s.masterAddr
}

// MasterBalance 主钱包 TRX 余额
func (s *TrxSender) MasterBalance(ctx context.Context) (decimal.Decimal, error) {
	account, err := s.rpc.GetAccount(ctx, s.masterAddr)
	if err != nil {
		return decimal.Zero, mapRPCError(err)
	}
	return SunToTrx(account.BalanceSun), nil
}

// SendFromMaster 从主钱包发送 TRX
// 返回交易哈希；余额不足/广播被拒以类型化错误上抛
func (s *TrxSender) SendFromMaster(ctx context.Context, toBase58 string, amountTrx decimal.Decimal) (string, error) {
	toAddr, err := tron.DecodeBase58(toBase58)
	if err != nil {
		return "", errors.ErrInvalidAddress.WithCause(err)
	}
	amountSun := TrxToSun(amountTrx)

	// 余额预检: 余额不少于转账额即通过，不为带宽燃烧预留余量
	account, err := s.rpc.GetAccount(ctx, s.masterAddr)
	if err != nil {
		return "", mapRPCError(err)
	}
	if account.BalanceSun < amountSun {
		return "", errors.ErrInsufficientMasterBalance.
			WithDetail("required_sun", fmt.Sprintf("%d", amountSun)).
			WithDetail("available_sun", fmt.Sprintf("%d", account.BalanceSun))
	}

	var txID string
	broadcast := func(ctx context.Context) error {
		block, err := s.rpc.GetNowBlock(ctx)
		if err != nil {
			return mapRPCError(err)
		}
		ref, err := tron.BlockRefFromID(block.BlockID, block.Timestamp)
		if err != nil {
			return errors.ErrInternal.WithCause(err)
		}

		tx, err := tron.BuildTRXTransfer(s.masterHex, toAddr, amountSun, ref)
		if err != nil {
			return errors.ErrInternal.WithCause(err)
		}
		signed, err := tron.Sign(tx, s.masterKey, s.masterAddr)
		if err != nil {
			return errors.ErrKeyMismatch.WithCause(err)
		}

		result, err := s.rpc.BroadcastTransaction(ctx, signed.Transaction)
		if err != nil {
			return mapRPCError(err)
		}
		if !result.Result && !result.Duplicate() {
			return errors.ErrBroadcastRejected.
				WithDetail("code", result.Code).
				WithDetail("message", result.Message)
		}

		txID = signed.TxID
		if result.TxID != "" {
			txID = result.TxID
		}
		return nil
	}

	// 先进程内互斥，再跨实例互斥
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.masterLock != nil {
		err = s.masterLock.WithLock(ctx, broadcast)
	} else {
		err = broadcast(ctx)
	}
	if err != nil {
		return "", err
	}

	logger.Info("trx sent from master",
		zap.String("to", toBase58),
		zap.String("amount_trx", amountTrx.String()),
		zap.String("tx_id", txID))

	return txID, nil
}

// mapRPCError 将客户端错误映射到业务错误
func mapRPCError(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, client.ErrUnavailable) {
		return errors.ErrRpcUnavailable.WithCause(err)
	}
	return errors.ErrInternal.WithCause(err)
}
