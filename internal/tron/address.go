// Package tron 提供 TRON 地址编解码、密钥生成、交易构造与签名
// 全部为纯本地计算，不依赖任何 RPC
package tron

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	// AddressPrefix TRON 地址前缀字节
	AddressPrefix = 0x41
	// AddressLength 地址字节数 (前缀 + 20 字节哈希)
	AddressLength = 21
	// Base58AddressLength Base58Check 地址字符数
	Base58AddressLength = 34
	// checksumLength Base58Check 校验和字节数
	checksumLength = 4
)

var (
	// ErrBadLength 地址长度错误
	ErrBadLength = errors.New("tron address: bad length")
	// ErrBadPrefix 地址前缀不是 0x41
	ErrBadPrefix = errors.New("tron address: bad prefix")
	// ErrBadChecksum Base58Check 校验和不匹配
	ErrBadChecksum = errors.New("tron address: bad checksum")
	// ErrBadCharset 包含非法字符
	ErrBadCharset = errors.New("tron address: bad charset")
)

// checksum 返回 SHA256(SHA256(data)) 的前 4 字节
func checksum(data []byte) []byte {
	h1 := sha256.Sum256(data)
	h2 := sha256.Sum256(h1[:])
	return h2[:checksumLength]
}

// EncodeBase58 将 21 字节地址编码为 Base58Check 字符串
func EncodeBase58(addr []byte) (string, error) {
	if len(addr) != AddressLength {
		return "", ErrBadLength
	}
	if addr[0] != AddressPrefix {
		return "", ErrBadPrefix
	}
	payload := make([]byte, 0, AddressLength+checksumLength)
	payload = append(payload, addr...)
	payload = append(payload, checksum(addr)...)
	return base58.Encode(payload), nil
}

// DecodeBase58 解码 Base58Check 地址并校验前缀和校验和
func DecodeBase58(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrBadLength
	}
	decoded := base58.Decode(s)
	if len(decoded) == 0 {
		// base58 遇到非法字符时返回空
		return nil, ErrBadCharset
	}
	if len(decoded) != AddressLength+checksumLength {
		return nil, ErrBadLength
	}
	addr, sum := decoded[:AddressLength], decoded[AddressLength:]
	if addr[0] != AddressPrefix {
		return nil, ErrBadPrefix
	}
	if !bytes.Equal(sum, checksum(addr)) {
		return nil, ErrBadChecksum
	}
	out := make([]byte, AddressLength)
	copy(out, addr)
	return out, nil
}

// EncodeHex 将 21 字节地址编码为 42 字符小写 hex
func EncodeHex(addr []byte) (string, error) {
	if len(addr) != AddressLength {
		return "", ErrBadLength
	}
	if addr[0] != AddressPrefix {
		return "", ErrBadPrefix
	}
	return hex.EncodeToString(addr), nil
}

// DecodeHex 解码 hex 地址
// 接受 42 字符 (带 41 前缀) 或 40 字符 (裸 20 字节，自动补前缀)，可带 0x
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrBadCharset
	}
	switch len(raw) {
	case AddressLength:
		if raw[0] != AddressPrefix {
			return nil, ErrBadPrefix
		}
		return raw, nil
	case AddressLength - 1:
		addr := make([]byte, 0, AddressLength)
		addr = append(addr, AddressPrefix)
		addr = append(addr, raw...)
		return addr, nil
	default:
		return nil, ErrBadLength
	}
}

// Base58ToHex Base58Check 地址转 42 字符 hex
func Base58ToHex(s string) (string, error) {
	addr, err := DecodeBase58(s)
	if err != nil {
		return "", err
	}
	return EncodeHex(addr)
}

// HexToBase58 hex 地址转 Base58Check
func HexToBase58(s string) (string, error) {
	addr, err := DecodeHex(s)
	if err != nil {
		return "", err
	}
	return EncodeBase58(addr)
}

// ValidateBase58 校验 Base58Check 地址
func ValidateBase58(s string) error {
	_, err := DecodeBase58(s)
	return err
}
