package tron

import (
	"crypto/sha256"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrKeyMismatch 私钥派生出的地址与存储地址不一致
	ErrKeyMismatch = errors.New("tron signer: derived address does not match stored address")
)

// SignatureLength 签名字节数 (r ‖ s ‖ v)
const SignatureLength = 65

// TxID 计算交易 id: SHA256(raw_data 字节)
func TxID(rawData []byte) [32]byte {
	return sha256.Sum256(rawData)
}

// SignRawData 对 raw_data 签名
// 返回 65 字节签名 r(32) ‖ s(32) ‖ v(1)，v ∈ {0,1}，low-S 规范化由 secp256k1 保证
func SignRawData(rawData []byte, privHex string) ([]byte, [32]byte, error) {
	priv, err := ParsePrivateKey(privHex)
	if err != nil {
		return nil, [32]byte{}, err
	}

	txid := TxID(rawData)
	sig, err := crypto.Sign(txid[:], priv)
	if err != nil {
		return nil, [32]byte{}, err
	}
	return sig, txid, nil
}

// SignForAddress 校验密钥归属后签名
// 签名前由私钥重新派生地址并与存储地址比对，不一致时拒绝签名
// 防止前导零被截断过的私钥对错误地址广播
func SignForAddress(rawData []byte, privHex, base58Address string) ([]byte, [32]byte, error) {
	if err := VerifyKeyAddress(privHex, base58Address); err != nil {
		return nil, [32]byte{}, err
	}
	return SignRawData(rawData, privHex)
}

// VerifyKeyAddress 校验私钥与 Base58 地址的对应关系
func VerifyKeyAddress(privHex, base58Address string) error {
	kp, err := KeypairFromHex(privHex)
	if err != nil {
		return err
	}
	if kp.Base58Address != base58Address {
		return ErrKeyMismatch
	}
	return nil
}
