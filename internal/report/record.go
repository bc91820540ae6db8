package report

import (
	"time"

	"github.com/google/uuid"
)

// Outcome 表示一个账户在一个周期内的处理结果，是台账与
// 事件发布共用的数据单元。计数都是本周期的增量。
type Outcome struct {
	ID           string    `json:"id"`
	Cycle        uint64    `json:"cycle"`
	AccountIndex int       `json:"account_index"`
	Address      string    `json:"address"`
	Agents       uint64    `json:"agents"`
	Requests     uint64    `json:"requests"`
	Txs          uint64    `json:"txs"`
	Errors       uint64    `json:"errors"`
	TxHashes     []string  `json:"tx_hashes,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// NewOutcome 为结果分配唯一标识并打上完成时间。
func NewOutcome(cycle uint64, accountIndex int, address string) *Outcome {
	return &Outcome{
		ID:           uuid.NewString(),
		Cycle:        cycle,
		AccountIndex: accountIndex,
		Address:      address,
		CompletedAt:  time.Now(),
	}
}
