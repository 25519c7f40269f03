package tron

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// PrivateKeyLength 私钥字节数
	PrivateKeyLength = 32
	// privateKeyHexLength 私钥 hex 字符数
	privateKeyHexLength = 64
)

var (
	// ErrBadPrivateKey 私钥格式错误
	ErrBadPrivateKey = errors.New("tron key: bad private key")
)

// Keypair 生成的 TRON 身份
type Keypair struct {
	// PrivateKeyHex 64 字符私钥 hex，保留前导零
	PrivateKeyHex string
	// Address 21 字节地址
	Address []byte
	// Base58Address Base58Check 地址
	Base58Address string
	// HexAddress 42 字符 hex 地址
	HexAddress string
}

// GenerateKeypair 生成新的 TRON 身份
// 私钥来自进程级加密随机源，保证在 [1, n) 区间内
func GenerateKeypair() (*Keypair, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return keypairFromECDSA(priv)
}

// KeypairFromHex 由 hex 私钥恢复 TRON 身份
// 不足 64 字符时左补零；绝不截断前导零字节
func KeypairFromHex(privHex string) (*Keypair, error) {
	priv, err := ParsePrivateKey(privHex)
	if err != nil {
		return nil, err
	}
	return keypairFromECDSA(priv)
}

// ParsePrivateKey 解析 hex 私钥为 ECDSA 私钥
// 归一化到恰好 32 字节 (左补零)，校验区间
func ParsePrivateKey(privHex string) (*ecdsa.PrivateKey, error) {
	privHex = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(privHex)), "0x")
	if privHex == "" || len(privHex) > privateKeyHexLength {
		return nil, ErrBadPrivateKey
	}
	// 左补零到 64 字符: 前导零字节是私钥的一部分
	if len(privHex) < privateKeyHexLength {
		privHex = strings.Repeat("0", privateKeyHexLength-len(privHex)) + privHex
	}
	raw, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, ErrBadPrivateKey
	}
	// ToECDSA 拒绝零值和越界标量
	priv, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, ErrBadPrivateKey
	}
	return priv, nil
}

// NormalizePrivateKeyHex 归一化 hex 私钥为 64 字符小写
func NormalizePrivateKeyHex(privHex string) (string, error) {
	priv, err := ParsePrivateKey(privHex)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(crypto.FromECDSA(priv)), nil
}

// keypairFromECDSA 由 ECDSA 私钥派生完整身份
func keypairFromECDSA(priv *ecdsa.PrivateKey) (*Keypair, error) {
	addr := DeriveAddress(&priv.PublicKey)

	base58Addr, err := EncodeBase58(addr)
	if err != nil {
		return nil, err
	}
	hexAddr, err := EncodeHex(addr)
	if err != nil {
		return nil, err
	}

	// FromECDSA 始终输出 32 字节，前导零保留
	return &Keypair{
		PrivateKeyHex: hex.EncodeToString(crypto.FromECDSA(priv)),
		Address:       addr,
		Base58Address: base58Addr,
		HexAddress:    hexAddr,
	}, nil
}

// DeriveAddress 由公钥派生 21 字节 TRON 地址
// Keccak256 作用于未压缩公钥去掉 0x04 前缀后的 64 字节
func DeriveAddress(pub *ecdsa.PublicKey) []byte {
	pubBytes := crypto.FromECDSAPub(pub)
	hash := crypto.Keccak256(pubBytes[1:])
	addr := make([]byte, 0, AddressLength)
	addr = append(addr, AddressPrefix)
	addr = append(addr, hash[12:]...)
	return addr
}
