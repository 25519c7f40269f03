package tron

import (
	"encoding/hex"
	"errors"
	"math/big"

	core "github.com/fbsobreira/gotron-sdk/pkg/proto/core"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

const (
	// TransferSelector TRC20 transfer(address,uint256) 方法选择器
	TransferSelector = "a9059cbb"
	// BalanceOfSelector TRC20 balanceOf(address) 方法选择器
	BalanceOfSelector = "70a08231"
	// txExpirationMs 交易有效期 (毫秒)
	txExpirationMs = 60_000
)

var (
	// ErrBadBlockRef 区块引用不完整
	ErrBadBlockRef = errors.New("tron builder: bad block reference")
	// ErrBadAmount 金额非法
	ErrBadAmount = errors.New("tron builder: bad amount")
)

// BlockRef 最新区块引用
// ref_block_bytes = 区块 id 第 6..8 字节，ref_block_hash = 第 8..16 字节
type BlockRef struct {
	BlockBytes []byte // 2 字节
	BlockHash  []byte // 8 字节
	Timestamp  int64  // 区块时间戳 (毫秒)
}

// BlockRefFromID 由 32 字节区块 id 构造引用
func BlockRefFromID(blockID string, timestamp int64) (*BlockRef, error) {
	raw, err := hex.DecodeString(blockID)
	if err != nil || len(raw) != 32 {
		return nil, ErrBadBlockRef
	}
	return &BlockRef{
		BlockBytes: raw[6:8],
		BlockHash:  raw[8:16],
		Timestamp:  timestamp,
	}, nil
}

// SignedTx 构造并签名完成的交易
type SignedTx struct {
	// TxID 交易 id hex
	TxID string
	// RawDataHex raw_data 的 protobuf 序列化 hex (即被签名的字节)
	RawDataHex string
	// SignatureHex 65 字节签名 hex
	SignatureHex string
	// Transaction 完整交易 (含签名)
	Transaction *core.Transaction
}

// BuildTRXTransfer 构造原生 TRX 转账 (TransferContract)
// amountSun 单位 SUN，1 TRX = 1,000,000 SUN
func BuildTRXTransfer(owner, to []byte, amountSun int64, ref *BlockRef) (*core.Transaction, error) {
	if amountSun <= 0 {
		return nil, ErrBadAmount
	}
	if err := validateAddr(owner); err != nil {
		return nil, err
	}
	if err := validateAddr(to); err != nil {
		return nil, err
	}

	contract := &core.TransferContract{
		OwnerAddress: owner,
		ToAddress:    to,
		Amount:       amountSun,
	}
	param, err := anypb.New(contract)
	if err != nil {
		return nil, err
	}

	raw, err := newRawData(ref)
	if err != nil {
		return nil, err
	}
	raw.Contract = []*core.Transaction_Contract{{
		Type:      core.Transaction_Contract_TransferContract,
		Parameter: param,
	}}

	return &core.Transaction{RawData: raw}, nil
}

// BuildTRC20Transfer 构造 TRC20 transfer 调用 (TriggerSmartContract)
// data = selector ‖ pad32(to 的 20 字节体) ‖ pad32(amount)
func BuildTRC20Transfer(owner, contractAddr, to []byte, amount *big.Int, feeLimit int64, ref *BlockRef) (*core.Transaction, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrBadAmount
	}
	if err := validateAddr(owner); err != nil {
		return nil, err
	}
	if err := validateAddr(contractAddr); err != nil {
		return nil, err
	}
	if err := validateAddr(to); err != nil {
		return nil, err
	}

	contract := &core.TriggerSmartContract{
		OwnerAddress:    owner,
		ContractAddress: contractAddr,
		CallValue:       0,
		Data:            EncodeTransferData(to, amount),
	}
	param, err := anypb.New(contract)
	if err != nil {
		return nil, err
	}

	raw, err := newRawData(ref)
	if err != nil {
		return nil, err
	}
	raw.FeeLimit = feeLimit
	raw.Contract = []*core.Transaction_Contract{{
		Type:      core.Transaction_Contract_TriggerSmartContract,
		Parameter: param,
	}}

	return &core.Transaction{RawData: raw}, nil
}

// EncodeTransferData 编码 transfer(address,uint256) 调用数据
// 地址参数是去掉 0x41 前缀的 20 字节，左补零到 32 字节
func EncodeTransferData(to []byte, amount *big.Int) []byte {
	selector, _ := hex.DecodeString(TransferSelector)

	data := make([]byte, 0, 4+32+32)
	data = append(data, selector...)
	data = append(data, leftPad32(to[1:])...)
	data = append(data, leftPad32(amount.Bytes())...)
	return data
}

// EncodeBalanceOfData 编码 balanceOf(address) 调用参数 (不含选择器)
func EncodeBalanceOfData(holder []byte) string {
	return hex.EncodeToString(leftPad32(holder[1:]))
}

// Sign 对交易的 raw_data 签名并附加签名
// raw_data 的序列化字节即广播字节，同一输入必然产生同一签名哈希
func Sign(tx *core.Transaction, privHex, base58Address string) (*SignedTx, error) {
	rawBytes, err := proto.Marshal(tx.GetRawData())
	if err != nil {
		return nil, err
	}

	sig, txid, err := SignForAddress(rawBytes, privHex, base58Address)
	if err != nil {
		return nil, err
	}
	tx.Signature = append(tx.Signature, sig)

	return &SignedTx{
		TxID:         hex.EncodeToString(txid[:]),
		RawDataHex:   hex.EncodeToString(rawBytes),
		SignatureHex: hex.EncodeToString(sig),
		Transaction:  tx,
	}, nil
}

// newRawData 构造带区块引用和有效期的 raw_data
func newRawData(ref *BlockRef) (*core.TransactionRaw, error) {
	if ref == nil || len(ref.BlockBytes) != 2 || len(ref.BlockHash) != 8 {
		return nil, ErrBadBlockRef
	}
	return &core.TransactionRaw{
		RefBlockBytes: ref.BlockBytes,
		RefBlockHash:  ref.BlockHash,
		Timestamp:     ref.Timestamp,
		Expiration:    ref.Timestamp + txExpirationMs,
	}, nil
}

// validateAddr 校验 21 字节地址
func validateAddr(addr []byte) error {
	if len(addr) != AddressLength {
		return ErrBadLength
	}
	if addr[0] != AddressPrefix {
		return ErrBadPrefix
	}
	return nil
}

// leftPad32 左补零到 32 字节
func leftPad32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
