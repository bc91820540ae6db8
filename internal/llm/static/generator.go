package static

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"OpenFarm-Chain/internal/llm"
)

// Generator 在未配置大模型密钥时提供确定性的本地内容模板。
// 名称带随机后缀，避免服务端的重名拒绝。
type Generator struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewGenerator 创建本地内容生成器。
func NewGenerator(seed int64) *Generator {
	return &Generator{rand: rand.New(rand.NewSource(seed))}
}

var agentNames = []string{
	"Ledger Scout",
	"Gas Oracle",
	"Block Curator",
	"Mempool Watcher",
	"Yield Cartographer",
	"Bridge Sentry",
}

var agentDescriptions = []string{
	"Monitors wallet activity and summarises notable transfers.",
	"Estimates gas trends and suggests cheap execution windows.",
	"Curates newly deployed contracts worth following.",
	"Watches the mempool for large pending swaps.",
	"Maps stablecoin yields across lending markets.",
	"Keeps an eye on cross-chain bridge liquidity.",
}

var requestTitles = []string{
	"Summarise my last week on-chain",
	"Find the cheapest route for a swap",
	"Audit this token approval list",
	"Track a whale wallet for me",
	"Compare staking yields",
	"Explain this failed transaction",
}

var requestDescriptions = []string{
	"Produce a short digest of the transactions from the given address.",
	"Given a token pair, compare routes and report the lowest total cost.",
	"Review the approvals on my wallet and flag risky allowances.",
	"Notify me when the target wallet moves more than a set threshold.",
	"Compare current staking yields across the major liquid protocols.",
	"Break down why the referenced transaction reverted.",
}

// Generate 返回指定类型的内容模板。
func (g *Generator) Generate(_ context.Context, kind llm.Kind) (*llm.Content, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	suffix := g.rand.Intn(9000) + 1000
	switch kind {
	case llm.KindAgent:
		i := g.rand.Intn(len(agentNames))
		return &llm.Content{
			Name:        fmt.Sprintf("%s %d", agentNames[i], suffix),
			Description: agentDescriptions[i],
		}, nil
	default:
		i := g.rand.Intn(len(requestTitles))
		return &llm.Content{
			Title:       requestTitles[i],
			Description: requestDescriptions[i],
		}, nil
	}
}
