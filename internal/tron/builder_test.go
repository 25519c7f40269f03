package tron

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

const testBlockID = "0000000002e04d8c9d3c72b1f1ac07d2b754c9aef8576a4a3f0c1e2d4b5a6978"

func testBlockRef(t *testing.T) *BlockRef {
	t.Helper()
	ref, err := BlockRefFromID(testBlockID, 1_700_000_000_000)
	require.NoError(t, err)
	return ref
}

func TestBlockRefFromID(t *testing.T) {
	ref := testBlockRef(t)
	assert.Equal(t, "4d8c", hex.EncodeToString(ref.BlockBytes))
	assert.Equal(t, "9d3c72b1f1ac07d2", hex.EncodeToString(ref.BlockHash))

	_, err := BlockRefFromID("abcd", 0)
	assert.ErrorIs(t, err, ErrBadBlockRef)
}

func TestBuildTRXTransfer(t *testing.T) {
	owner := testAddr(t)
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	tx, err := BuildTRXTransfer(owner, kp.Address, 15_000_000, testBlockRef(t))
	require.NoError(t, err)

	raw := tx.GetRawData()
	require.Len(t, raw.GetContract(), 1)
	assert.Equal(t, raw.GetTimestamp()+60_000, raw.GetExpiration())
	assert.Equal(t, []byte{0x4d, 0x8c}, raw.GetRefBlockBytes())
	assert.Contains(t, raw.GetContract()[0].GetParameter().GetTypeUrl(), "TransferContract")
}

func TestBuildTRXTransfer_Rejects(t *testing.T) {
	owner := testAddr(t)
	ref := testBlockRef(t)

	_, err := BuildTRXTransfer(owner, owner, 0, ref)
	assert.ErrorIs(t, err, ErrBadAmount)

	_, err = BuildTRXTransfer(owner[1:], owner, 1, ref)
	assert.ErrorIs(t, err, ErrBadLength)

	_, err = BuildTRXTransfer(owner, owner, 1, nil)
	assert.ErrorIs(t, err, ErrBadBlockRef)
}

func TestBuildTRC20Transfer(t *testing.T) {
	owner := testAddr(t)
	contract, err := DecodeBase58("TG3XXyExBkPp9nzdajDZsozEu4BkaSJozs")
	require.NoError(t, err)
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	amount := big.NewInt(101_000_000) // 101 USDT
	tx, err := BuildTRC20Transfer(owner, contract, kp.Address, amount, 42_000_000, testBlockRef(t))
	require.NoError(t, err)

	raw := tx.GetRawData()
	assert.Equal(t, int64(42_000_000), raw.GetFeeLimit())
	require.Len(t, raw.GetContract(), 1)
	assert.Contains(t, raw.GetContract()[0].GetParameter().GetTypeUrl(), "TriggerSmartContract")
}

func TestEncodeTransferData(t *testing.T) {
	to := testAddr(t)
	data := EncodeTransferData(to, big.NewInt(101_000_000))

	encoded := hex.EncodeToString(data)
	assert.Len(t, data, 4+32+32)
	assert.True(t, strings.HasPrefix(encoded, TransferSelector))
	// 地址参数: 去 41 前缀的 20 字节左补零
	assert.Equal(t, strings.Repeat("0", 24)+hex.EncodeToString(to[1:]), encoded[8:8+64])
	// 金额参数: 大端 U256
	assert.Equal(t, strings.Repeat("0", 57)+"6052340", encoded[8+64:])
}

func TestSign_ProducesStableRawData(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)
	owner, err := DecodeBase58(kp.Base58Address)
	require.NoError(t, err)
	to := testAddr(t)

	tx1, err := BuildTRXTransfer(owner, to, 1_000_000, testBlockRef(t))
	require.NoError(t, err)
	tx2, err := BuildTRXTransfer(owner, to, 1_000_000, testBlockRef(t))
	require.NoError(t, err)

	signed1, err := Sign(tx1, kp.PrivateKeyHex, kp.Base58Address)
	require.NoError(t, err)
	signed2, err := Sign(tx2, kp.PrivateKeyHex, kp.Base58Address)
	require.NoError(t, err)

	// 同样输入 → 同样 raw_data → 同样 txid
	assert.Equal(t, signed1.RawDataHex, signed2.RawDataHex)
	assert.Equal(t, signed1.TxID, signed2.TxID)
	require.Len(t, signed1.Transaction.GetSignature(), 1)
	assert.Len(t, signed1.Transaction.GetSignature()[0], SignatureLength)

	// raw_data hex 可反序列化回等价结构
	rawBytes, err := hex.DecodeString(signed1.RawDataHex)
	require.NoError(t, err)
	reencoded, err := proto.Marshal(tx1.GetRawData())
	require.NoError(t, err)
	assert.Equal(t, rawBytes, reencoded)
}

func TestSign_RefusesForeignKey(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)
	other, err := GenerateKeypair()
	require.NoError(t, err)

	owner, err := DecodeBase58(kp.Base58Address)
	require.NoError(t, err)

	tx, err := BuildTRXTransfer(owner, testAddr(t), 1_000_000, testBlockRef(t))
	require.NoError(t, err)

	_, err = Sign(tx, other.PrivateKeyHex, kp.Base58Address)
	assert.ErrorIs(t, err, ErrKeyMismatch)
	assert.Empty(t, tx.GetSignature())
}
