package tron

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignRawData(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	rawData := []byte("raw transaction bytes")
	sig, txid, err := SignRawData(rawData, kp.PrivateKeyHex)
	require.NoError(t, err)

	assert.Len(t, sig, SignatureLength)
	assert.Contains(t, []byte{0, 1}, sig[64], "recovery id must be 0 or 1")
	assert.Equal(t, TxID(rawData), txid)

	// 签名可恢复出原公钥
	pub, err := crypto.SigToPub(txid[:], sig)
	require.NoError(t, err)
	assert.Equal(t, kp.Base58Address, func() string {
		b58, _ := EncodeBase58(DeriveAddress(pub))
		return b58
	}())
}

func TestSignRawData_Deterministic(t *testing.T) {
	// 同一输入必须产生同一签名哈希
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	rawData := []byte("identical payload")
	_, txid1, err := SignRawData(rawData, kp.PrivateKeyHex)
	require.NoError(t, err)
	_, txid2, err := SignRawData(rawData, kp.PrivateKeyHex)
	require.NoError(t, err)

	assert.Equal(t, txid1, txid2)
}

func TestSignRawData_LeadingZeroKey(t *testing.T) {
	// 私钥 0x00…01 正常签名且可验证
	key := strings.Repeat("0", 63) + "1"
	kp, err := KeypairFromHex(key)
	require.NoError(t, err)

	rawData := []byte("payload")
	sig, txid, err := SignRawData(rawData, "01") // 截断形式
	require.NoError(t, err)

	pub, err := crypto.SigToPub(txid[:], sig)
	require.NoError(t, err)

	b58, err := EncodeBase58(DeriveAddress(pub))
	require.NoError(t, err)
	assert.Equal(t, kp.Base58Address, b58)
}

func TestSignForAddress_KeyMismatch(t *testing.T) {
	kp1, err := GenerateKeypair()
	require.NoError(t, err)
	kp2, err := GenerateKeypair()
	require.NoError(t, err)

	_, _, err = SignForAddress([]byte("payload"), kp1.PrivateKeyHex, kp2.Base58Address)
	assert.ErrorIs(t, err, ErrKeyMismatch)
}

func TestVerifyKeyAddress(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	assert.NoError(t, VerifyKeyAddress(kp.PrivateKeyHex, kp.Base58Address))
	assert.ErrorIs(t, VerifyKeyAddress(kp.PrivateKeyHex, "TH3QBLNLsimQbNwq2DxTGhoDYeeCZYTvK3"), ErrKeyMismatch)
}
