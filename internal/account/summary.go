package account

import "time"

// SummaryLine 是汇总中一行账户的快照。
type SummaryLine struct {
	Index           int
	Address         string
	UID             string
	TotalPoint      float64
	Days            int
	Agents          uint64
	Requests        uint64
	Txs             uint64
	Errors          uint64
	LastRun         time.Time
	CooldownSeconds int64
}

// Summary 是一次全量统计归约的结果：逐账户行加五个全局累计，
// 以及自首个账户初始化以来的运行时长。
type Summary struct {
	Lines         []SummaryLine
	TotalPoints   float64
	TotalAgents   uint64
	TotalRequests uint64
	TotalTxs      uint64
	TotalErrors   uint64
	Elapsed       time.Duration
}

// Summarize 对注册表做一次纯读取归约。它永远不会阻塞或失败，
// 关停路径直接依赖这一点。
func Summarize(reg *Registry, now time.Time) Summary {
	summary := Summary{}
	if reg == nil || reg.Len() == 0 {
		return summary
	}

	start := reg.stats[0].StartTime
	for i := range reg.accounts {
		acct, stats := reg.At(i)
		summary.Lines = append(summary.Lines, SummaryLine{
			Index:           acct.Index,
			Address:         acct.Address(),
			UID:             stats.UID,
			TotalPoint:      stats.TotalPoint,
			Days:            stats.Days,
			Agents:          stats.Agents,
			Requests:        stats.Requests,
			Txs:             stats.Txs,
			Errors:          stats.Errors,
			LastRun:         stats.LastRun,
			CooldownSeconds: stats.CooldownSeconds,
		})
		summary.TotalPoints += stats.TotalPoint
		summary.TotalAgents += stats.Agents
		summary.TotalRequests += stats.Requests
		summary.TotalTxs += stats.Txs
		summary.TotalErrors += stats.Errors
		if stats.StartTime.Before(start) {
			start = stats.StartTime
		}
	}
	if !start.IsZero() && now.After(start) {
		summary.Elapsed = now.Sub(start)
	}
	return summary
}
