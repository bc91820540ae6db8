package report

import (
	"context"
	"sync"
)

// Ledger 是只追加的执行台账。写入是尽力而为的观察手段，
// 失败只记录日志，不影响调度。
type Ledger interface {
	Append(ctx context.Context, outcome *Outcome) error
	Close() error
}

// memoryLedgerCap 限制内存台账的长度，旧记录被滚动淘汰。
const memoryLedgerCap = 1024

// MemoryLedger 把结果保留在内存环形缓冲中，是默认驱动。
type MemoryLedger struct {
	mu      sync.Mutex
	entries []*Outcome
}

// NewMemoryLedger 创建内存台账。
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

// Append 记录一条结果。
func (l *MemoryLedger) Append(_ context.Context, outcome *Outcome) error {
	if outcome == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, outcome)
	if len(l.entries) > memoryLedgerCap {
		l.entries = l.entries[len(l.entries)-memoryLedgerCap:]
	}
	return nil
}

// Recent 返回最近的 n 条记录（从旧到新）。
func (l *MemoryLedger) Recent(n int) []*Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]*Outcome, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Close 实现 Ledger 接口。
func (l *MemoryLedger) Close() error { return nil }
