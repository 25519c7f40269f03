package tron

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeypair(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	assert.Len(t, kp.PrivateKeyHex, 64)
	assert.Len(t, kp.Address, AddressLength)
	assert.Equal(t, byte(AddressPrefix), kp.Address[0])
	assert.Len(t, kp.Base58Address, Base58AddressLength)
	assert.True(t, strings.HasPrefix(kp.Base58Address, "T"))
	assert.Len(t, kp.HexAddress, 42)
}

func TestKeypairFromHex_LeadingZeros(t *testing.T) {
	// 31 个前导零字节的私钥必须稳定派生
	kp1, err := KeypairFromHex("01")
	require.NoError(t, err)

	kp2, err := KeypairFromHex(strings.Repeat("0", 63) + "1")
	require.NoError(t, err)

	kp3, err := KeypairFromHex("0x" + strings.Repeat("0", 62) + "01")
	require.NoError(t, err)

	assert.Equal(t, kp1.Base58Address, kp2.Base58Address)
	assert.Equal(t, kp1.Base58Address, kp3.Base58Address)
	assert.Equal(t, strings.Repeat("0", 63)+"1", kp1.PrivateKeyHex)
}

func TestKeypairFromHex_ShortHexEqualsNormalized(t *testing.T) {
	// 截断前导零的 hex 与归一化 hex 派生同一地址
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	trimmed := strings.TrimLeft(kp.PrivateKeyHex, "0")
	if trimmed == "" {
		t.Skip("degenerate key")
	}

	restored, err := KeypairFromHex(trimmed)
	require.NoError(t, err)
	assert.Equal(t, kp.Base58Address, restored.Base58Address)
	assert.Equal(t, kp.HexAddress, restored.HexAddress)
	assert.Equal(t, kp.PrivateKeyHex, restored.PrivateKeyHex)
}

func TestParsePrivateKey_Rejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"zero", strings.Repeat("0", 64)},
		{"not hex", strings.Repeat("zz", 32)},
		{"too long", strings.Repeat("1", 66)},
		// secp256k1 曲线阶，越界标量
		{"curve order", "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrivateKey(tt.key)
			assert.ErrorIs(t, err, ErrBadPrivateKey)
		})
	}
}

func TestNormalizePrivateKeyHex(t *testing.T) {
	normalized, err := NormalizePrivateKeyHex("0xABC")
	require.NoError(t, err)
	assert.Len(t, normalized, 64)
	assert.True(t, strings.HasSuffix(normalized, "abc"))
}
