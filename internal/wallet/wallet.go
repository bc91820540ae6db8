package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer 持有单个账户的私钥，负责派生地址与签署登录挑战。
type Signer struct {
	key *ecdsa.PrivateKey
}

// ParseKey 解析十六进制私钥。私钥格式非法时直接报错，
// 这类错误属于配置问题而非运行期瞬时故障。
func ParseKey(hexKey string) (*Signer, error) {
	trimmed := strings.TrimSpace(hexKey)
	trimmed = strings.TrimPrefix(trimmed, "0x")
	if trimmed == "" {
		return nil, errors.New("私钥不能为空")
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("解析私钥失败: %w", err)
	}
	return &Signer{key: key}, nil
}

// Address 返回私钥对应的以太坊地址。
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// AddressHex 返回 0x 前缀的校验和地址字符串。
func (s *Signer) AddressHex() string {
	return s.Address().Hex()
}

// SignText 对登录 nonce 做 EIP-191 personal_sign 签名，
// 返回 0x 前缀的签名串。恢复标识按链下服务的约定加 27。
func (s *Signer) SignText(message string) (string, error) {
	if s == nil || s.key == nil {
		return "", errors.New("签名器未初始化")
	}
	hash := accounts.TextHash([]byte(message))
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return "", fmt.Errorf("签署消息失败: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// Key 暴露底层私钥，供交易签名器使用。
func (s *Signer) Key() *ecdsa.PrivateKey {
	return s.key
}
