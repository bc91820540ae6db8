package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"OpenFarm-Chain/internal/account"
)

// Console 把周期汇总与关停报告渲染到终端。
// 渲染是纯输出，永远不会阻塞或失败调度与关停路径。
type Console struct {
	out io.Writer
}

// NewConsole 创建终端渲染器，out 为 nil 时写到标准输出。
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

// RenderSummary 输出一个周期结束后的统计汇总。
func (c *Console) RenderSummary(cycle uint64, summary account.Summary) {
	fmt.Fprintf(c.out, "\n===== 第 %d 轮统计 =====\n", cycle)
	c.renderBody(summary)
}

// RenderShutdown 输出关停时刻的最终报告。
func (c *Console) RenderShutdown(summary account.Summary) {
	fmt.Fprintf(c.out, "\n===== 运行结束报告 =====\n")
	c.renderBody(summary)
}

// RenderProgress 在周期间冷却等待中输出剩余时长。
func (c *Console) RenderProgress(remaining time.Duration, nextCycle uint64) {
	fmt.Fprintf(c.out, "冷却中... 距第 %d 轮还有 %s\n", nextCycle, formatDuration(remaining))
}

func (c *Console) renderBody(summary account.Summary) {
	for _, line := range summary.Lines {
		uid := line.UID
		if uid == "" {
			uid = "-"
		}
		fmt.Fprintf(c.out, "[#%d] %s uid=%s 积分=%.1f 天数=%d agent=%d request=%d tx=%d 错误=%d",
			line.Index,
			shortAddress(line.Address),
			uid,
			line.TotalPoint,
			line.Days,
			line.Agents,
			line.Requests,
			line.Txs,
			line.Errors,
		)
		if line.CooldownSeconds > 0 {
			fmt.Fprintf(c.out, " 下一窗口=%s", formatDuration(time.Duration(line.CooldownSeconds)*time.Second))
		}
		fmt.Fprintln(c.out)
	}
	fmt.Fprintf(c.out, "合计: 积分=%.1f agent=%d request=%d tx=%d 错误=%d 运行时长=%s\n",
		summary.TotalPoints,
		summary.TotalAgents,
		summary.TotalRequests,
		summary.TotalTxs,
		summary.TotalErrors,
		formatDuration(summary.Elapsed),
	)
}

func shortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:8] + "..." + address[len(address)-4:]
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
