package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	xerrors "OpenFarm-Chain/internal/errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

const defaultGasLimit = 200_000

// registrarABI 覆盖每日任务需要的两个登记方法。
const registrarABI = `[
  {"type":"function","name":"registerAgent","inputs":[{"name":"agentId","type":"string"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"registerRequest","inputs":[{"name":"requestId","type":"string"}],"outputs":[],"stateMutability":"nonpayable"}
]`

// MethodRegisterAgent 与 MethodRegisterRequest 是登记合约的方法名。
const (
	MethodRegisterAgent   = "registerAgent"
	MethodRegisterRequest = "registerRequest"
)

// backend 定义了发送登记交易所需的节点能力子集，便于测试替换。
type backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *coretypes.Transaction) error
}

// Client 负责把服务端返回的标识登记到链上合约。
type Client struct {
	rpcClient *gethrpc.Client
	backend   backend
	registrar common.Address
	chainID   *big.Int
	gasLimit  uint64
	abi       abi.ABI
}

// NewClient 连接链节点并返回可用的客户端。
func NewClient(ctx context.Context, def Definition) (*Client, error) {
	rpcURL := strings.TrimSpace(def.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置链节点 RPC 地址")
	}
	if !common.IsHexAddress(def.Registrar) {
		return nil, fmt.Errorf("登记合约地址非法: %q", def.Registrar)
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接链节点失败: %w", err)
	}
	eth := ethclient.NewClient(rpcClient)

	chainID := big.NewInt(def.ChainID)
	if def.ChainID <= 0 {
		chainID, err = eth.ChainID(ctx)
		if err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("获取链 ID 失败: %w", err)
		}
	}

	client, err := newClient(eth, def, chainID)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}
	client.rpcClient = rpcClient
	return client, nil
}

// NewClientWithBackend 使用注入的后端构造客户端，用于测试。
func NewClientWithBackend(b backend, def Definition, chainID *big.Int) (*Client, error) {
	return newClient(b, def, chainID)
}

func newClient(b backend, def Definition, chainID *big.Int) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(registrarABI))
	if err != nil {
		return nil, fmt.Errorf("解析登记合约 ABI 失败: %w", err)
	}
	gasLimit := def.GasLimit
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}
	return &Client{
		backend:   b,
		registrar: common.HexToAddress(def.Registrar),
		chainID:   new(big.Int).Set(chainID),
		gasLimit:  gasLimit,
		abi:       parsed,
	}, nil
}

// Close 释放客户端持有的网络连接。
func (c *Client) Close() {
	if c == nil || c.rpcClient == nil {
		return
	}
	c.rpcClient.Close()
	c.rpcClient = nil
}

// Register 以指定账户签名并发送一笔登记交易，返回交易哈希。
// 网络层失败约定为可重试，由调用方的重试策略承担退避。
func (c *Client) Register(ctx context.Context, key *ecdsa.PrivateKey, method, id string) (string, error) {
	if c == nil || c.backend == nil {
		return "", xerrors.New(xerrors.CodeConfiguration, "链客户端未初始化")
	}
	if key == nil {
		return "", xerrors.New(xerrors.CodeConfiguration, "未提供交易签名私钥")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", xerrors.New(xerrors.CodeChainFailure, "登记标识不能为空")
	}

	data, err := c.abi.Pack(method, id)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeChainFailure, err, fmt.Sprintf("编码 %s 调用失败", method))
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeChainFailure, err, "查询交易计数失败")
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeChainFailure, err, "查询 gas 价格失败")
	}

	tx := coretypes.NewTransaction(nonce, c.registrar, big.NewInt(0), c.gasLimit, gasPrice, data)
	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(c.chainID), key)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeChainFailure, err, "签署交易失败")
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return "", xerrors.Wrap(xerrors.CodeChainFailure, err, "发送登记交易失败")
	}
	return signed.Hash().Hex(), nil
}
