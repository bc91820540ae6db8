package account

import (
	"log/slog"
	"time"

	xerrors "OpenFarm-Chain/internal/errors"
	"OpenFarm-Chain/internal/wallet"
	"OpenFarm-Chain/pkg/logger"
)

// Account 是一个已配置的凭据。Index 在加载时按行序分配，
// 进程生命周期内不变也不复用。
type Account struct {
	Index  int
	Signer *wallet.Signer
}

// Address 返回账户派生的公开地址。
func (a *Account) Address() string {
	return a.Signer.AddressHex()
}

// Stats 是每个账户的运行统计。只有当前正在处理该账户的
// 工作流会修改它，因此不需要加锁（整个调度器是严格串行的）。
type Stats struct {
	UID        string
	TotalPoint float64
	Days       int

	Agents   uint64
	Requests uint64
	Txs      uint64
	Errors   uint64

	LastRun         time.Time
	StartTime       time.Time
	CooldownSeconds int64
}

// Registry 持有全部账户与它们的统计记录，按固定顺序迭代。
// 每个 Account 恰好对应一条 Stats，在第一个周期开始前创建。
type Registry struct {
	accounts []*Account
	stats    []*Stats
}

// NewRegistry 解析凭据列表并构建注册表。非法私钥会被跳过并告警；
// 没有任何可用凭据时返回 CONFIGURATION 错误。
func NewRegistry(credentials []string, now time.Time) (*Registry, error) {
	reg := &Registry{}
	for i, credential := range credentials {
		signer, err := wallet.ParseKey(credential)
		if err != nil {
			logger.L().Warn("跳过非法私钥",
				slog.Int("line", i+1),
				slog.Any("error", err),
			)
			continue
		}
		reg.accounts = append(reg.accounts, &Account{
			Index:  len(reg.accounts),
			Signer: signer,
		})
		reg.stats = append(reg.stats, &Stats{StartTime: now})
	}
	if len(reg.accounts) == 0 {
		return nil, xerrors.New(xerrors.CodeConfiguration, "没有可用的账户凭据")
	}
	return reg, nil
}

// Len 返回账户数量。
func (r *Registry) Len() int {
	return len(r.accounts)
}

// At 返回指定序号的账户及其统计记录。
func (r *Registry) At(index int) (*Account, *Stats) {
	return r.accounts[index], r.stats[index]
}

// Accounts 返回全部账户的切片（固定顺序）。
func (r *Registry) Accounts() []*Account {
	return r.accounts
}
