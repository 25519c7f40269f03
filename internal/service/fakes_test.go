package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"sync"
	"time"

	core "github.com/fbsobreira/gotron-sdk/pkg/proto/core"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/proto"

	"github.com/tronpay/gateway/internal/cache"
	"github.com/tronpay/gateway/internal/client"
	"github.com/tronpay/gateway/internal/model"
	"github.com/tronpay/gateway/internal/repository"
	"github.com/tronpay/gateway/internal/tron"
)

const fakeBlockID = "0000000002e04d8c9d3c72b1f1ac07d2b754c9aef8576a4a3f0c1e2d4b5a6978"

// fakeTronRPC 确定性节点假实现
// 广播立即应用转账并出具回执，行为由字段配置
type fakeTronRPC struct {
	mu sync.Mutex

	// accountsSun base58 → TRX 余额 (SUN)
	accountsSun map[string]int64
	// trc20Wei base58 → USDT 余额 (wei, 6 位)
	trc20Wei map[string]*big.Int

	energyEstimate int64
	energyPrice    int64

	// estimateErr 能量估算返回的错误
	estimateErr error
	// broadcastErr 广播返回的错误
	broadcastErr error
	// broadcastResult 覆盖广播结果 (拒绝/重复场景)
	broadcastResult *client.BroadcastResult
	// receiptResult 合约调用回执 (默认 SUCCESS)
	receiptResult string
	// suppressReceipts 为 true 时交易永不被索引 (确认超时场景)
	suppressReceipts bool

	txInfos    map[string]*client.TransactionInfo
	broadcasts []*core.Transaction
}

func newFakeTronRPC() *fakeTronRPC {
	return &fakeTronRPC{
		accountsSun:    make(map[string]int64),
		trc20Wei:       make(map[string]*big.Int),
		energyEstimate: 31895,
		energyPrice:    420,
		txInfos:        make(map[string]*client.TransactionInfo),
	}
}

func (f *fakeTronRPC) setTRX(addr string, trx int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accountsSun[addr] = trx * 1_000_000
}

func (f *fakeTronRPC) setUSDT(addr string, usdt int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trc20Wei[addr] = new(big.Int).Mul(big.NewInt(usdt), big.NewInt(1_000_000))
}

func (f *fakeTronRPC) broadcastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.broadcasts)
}

func (f *fakeTronRPC) GetNowBlock(ctx context.Context) (*client.Block, error) {
	return &client.Block{
		BlockID:   fakeBlockID,
		Number:    48_250_252,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

func (f *fakeTronRPC) GetAccount(ctx context.Context, base58Addr string) (*client.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sun, ok := f.accountsSun[base58Addr]
	return &client.Account{Address: base58Addr, BalanceSun: sun, Exists: ok}, nil
}

func (f *fakeTronRPC) GetTRC20Balance(ctx context.Context, holder, contract string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if wei, ok := f.trc20Wei[holder]; ok {
		return new(big.Int).Set(wei), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeTronRPC) EstimateEnergy(ctx context.Context, owner, contract, parameter string) (int64, error) {
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return f.energyEstimate, nil
}

func (f *fakeTronRPC) GetEnergyPriceSun(ctx context.Context) (int64, error) {
	return f.energyPrice, nil
}

func (f *fakeTronRPC) BroadcastTransaction(ctx context.Context, tx *core.Transaction) (*client.BroadcastResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.broadcastErr != nil {
		return nil, f.broadcastErr
	}

	rawBytes, err := proto.Marshal(tx.GetRawData())
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(rawBytes)
	txid := hex.EncodeToString(sum[:])

	if f.broadcastResult != nil {
		result := *f.broadcastResult
		if result.TxID == "" {
			result.TxID = txid
		}
		return &result, nil
	}

	f.broadcasts = append(f.broadcasts, tx)
	f.applyLocked(tx)

	if !f.suppressReceipts {
		receipt := ""
		if isTrigger(tx) {
			receipt = client.ReceiptSuccess
			if f.receiptResult != "" {
				receipt = f.receiptResult
			}
		}
		f.txInfos[txid] = &client.TransactionInfo{
			ID:          txid,
			BlockNumber: 48_250_253,
			Receipt:     receipt,
			Found:       true,
		}
	}

	return &client.BroadcastResult{Result: true, TxID: txid}, nil
}

func (f *fakeTronRPC) GetTransactionInfo(ctx context.Context, txid string) (*client.TransactionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.txInfos[txid]; ok {
		return info, nil
	}
	return &client.TransactionInfo{ID: txid, Found: false}, nil
}

// applyLocked 应用 TRX 转账的余额变动
func (f *fakeTronRPC) applyLocked(tx *core.Transaction) {
	for _, contract := range tx.GetRawData().GetContract() {
		if contract.GetType() != core.Transaction_Contract_TransferContract {
			continue
		}
		var transfer core.TransferContract
		if err := contract.GetParameter().UnmarshalTo(&transfer); err != nil {
			continue
		}
		from := mustBase58(transfer.GetOwnerAddress())
		to := mustBase58(transfer.GetToAddress())
		f.accountsSun[from] -= transfer.GetAmount()
		f.accountsSun[to] += transfer.GetAmount()
	}
}

func isTrigger(tx *core.Transaction) bool {
	contracts := tx.GetRawData().GetContract()
	return len(contracts) == 1 &&
		contracts[0].GetType() == core.Transaction_Contract_TriggerSmartContract
}

func mustBase58(addr []byte) string {
	s, _ := tron.EncodeBase58(addr)
	return s
}

// memWalletRepo 内存钱包仓储
type memWalletRepo struct {
	mu      sync.Mutex
	nextID  int64
	wallets map[int64]*model.Wallet
}

func newMemWalletRepo() *memWalletRepo {
	return &memWalletRepo{nextID: 1, wallets: make(map[int64]*model.Wallet)}
}

func (r *memWalletRepo) Create(ctx context.Context, wallet *model.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	wallet.ID = r.nextID
	r.nextID++
	wallet.CreatedAt = time.Now().UnixMilli()
	clone := *wallet
	r.wallets[wallet.ID] = &clone
	return nil
}

func (r *memWalletRepo) GetByID(ctx context.Context, id int64) (*model.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wallet, ok := r.wallets[id]; ok {
		clone := *wallet
		return &clone, nil
	}
	return nil, repository.ErrWalletNotFound
}

func (r *memWalletRepo) GetByAddress(ctx context.Context, address string) (*model.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, wallet := range r.wallets {
		if wallet.Address == address {
			clone := *wallet
			return &clone, nil
		}
	}
	return nil, repository.ErrWalletNotFound
}

func (r *memWalletRepo) List(ctx context.Context, page *repository.Pagination) ([]*model.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Wallet
	for _, wallet := range r.wallets {
		clone := *wallet
		out = append(out, &clone)
	}
	page.Total = int64(len(out))
	return out, nil
}

func (r *memWalletRepo) ListActivated(ctx context.Context, limit int) ([]*model.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Wallet
	for _, wallet := range r.wallets {
		if wallet.Activated && len(out) < limit {
			clone := *wallet
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memWalletRepo) MarkActivated(ctx context.Context, id int64, txHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	wallet, ok := r.wallets[id]
	if !ok {
		return repository.ErrWalletNotFound
	}
	wallet.Activated = true
	wallet.ActivationTxHash = txHash
	return nil
}

// memTransferRepo 内存出账仓储，复刻 CAS 与幂等键语义
type memTransferRepo struct {
	mu        sync.Mutex
	nextID    int64
	transfers map[int64]*model.OutgoingTransfer
}

func newMemTransferRepo() *memTransferRepo {
	return &memTransferRepo{nextID: 1, transfers: make(map[int64]*model.OutgoingTransfer)}
}

func (r *memTransferRepo) Create(ctx context.Context, transfer *model.OutgoingTransfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if transfer.ReferenceID != "" {
		for _, existing := range r.transfers {
			if existing.ReferenceID == transfer.ReferenceID &&
				existing.Status != model.TransferStatusFailed {
				return repository.ErrDuplicateReference
			}
		}
	}

	transfer.ID = r.nextID
	r.nextID++
	transfer.CreatedAt = time.Now().UnixMilli()
	clone := *transfer
	r.transfers[transfer.ID] = &clone
	return nil
}

func (r *memTransferRepo) GetByID(ctx context.Context, id int64) (*model.OutgoingTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if transfer, ok := r.transfers[id]; ok {
		clone := *transfer
		return &clone, nil
	}
	return nil, repository.ErrTransferNotFound
}

func (r *memTransferRepo) GetByReferenceID(ctx context.Context, referenceID string) (*model.OutgoingTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, transfer := range r.transfers {
		if transfer.ReferenceID == referenceID && transfer.Status != model.TransferStatusFailed {
			clone := *transfer
			return &clone, nil
		}
	}
	return nil, repository.ErrTransferNotFound
}

func (r *memTransferRepo) GetByTxHash(ctx context.Context, txHash string) (*model.OutgoingTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, transfer := range r.transfers {
		if transfer.TxHash == txHash {
			clone := *transfer
			return &clone, nil
		}
	}
	return nil, repository.ErrTransferNotFound
}

func (r *memTransferRepo) ListByWallet(ctx context.Context, walletID int64, page *repository.Pagination) ([]*model.OutgoingTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.OutgoingTransfer
	for _, transfer := range r.transfers {
		if transfer.FromWalletID == walletID {
			clone := *transfer
			out = append(out, &clone)
		}
	}
	page.Total = int64(len(out))
	return out, nil
}

func (r *memTransferRepo) ListByStatus(ctx context.Context, status model.TransferStatus, limit int) ([]*model.OutgoingTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.OutgoingTransfer
	for _, transfer := range r.transfers {
		if transfer.Status == status && len(out) < limit {
			clone := *transfer
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memTransferRepo) AdvanceStatus(ctx context.Context, id int64, from, to model.TransferStatus) error {
	if !from.CanAdvanceTo(to) {
		return repository.ErrIllegalTransition
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	transfer, ok := r.transfers[id]
	if !ok || transfer.Status != from {
		return repository.ErrIllegalTransition
	}
	transfer.Status = to
	return nil
}

func (r *memTransferRepo) SetSponsorTxHash(ctx context.Context, id int64, txHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if transfer, ok := r.transfers[id]; ok {
		transfer.SponsorTxHash = txHash
	}
	return nil
}

func (r *memTransferRepo) SetTxHash(ctx context.Context, id int64, txHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if transfer, ok := r.transfers[id]; ok && transfer.TxHash == "" {
		transfer.TxHash = txHash
	}
	return nil
}

func (r *memTransferRepo) MarkConfirmed(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	transfer, ok := r.transfers[id]
	if !ok || transfer.Status != model.TransferStatusSending {
		return repository.ErrIllegalTransition
	}
	transfer.Status = model.TransferStatusConfirmed
	transfer.CompletedAt = time.Now().UnixMilli()
	return nil
}

func (r *memTransferRepo) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	transfer, ok := r.transfers[id]
	if !ok || transfer.Status.IsTerminal() {
		return repository.ErrIllegalTransition
	}
	transfer.Status = model.TransferStatusFailed
	transfer.ErrorMessage = errorMessage
	transfer.CompletedAt = time.Now().UnixMilli()
	return nil
}

// staticState 进程内网络状态缓存假实现
type staticState struct {
	mu    sync.Mutex
	state *cache.NetworkState
}

func (s *staticState) Get(ctx context.Context) (*cache.NetworkState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, cache.ErrStateNotFound
	}
	return s.state, nil
}

func (s *staticState) Set(ctx context.Context, state *cache.NetworkState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}

// mustDecimal 测试辅助
func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
