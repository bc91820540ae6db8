package task

import (
	"context"
	"crypto/ecdsa"
	"log/slog"
	"time"

	"OpenFarm-Chain/internal/account"
	"OpenFarm-Chain/internal/auth"
	"OpenFarm-Chain/internal/chain"
	xerrors "OpenFarm-Chain/internal/errors"
	"OpenFarm-Chain/internal/llm"
	"OpenFarm-Chain/internal/quest"
	"OpenFarm-Chain/internal/report"
	"OpenFarm-Chain/internal/retry"
	"OpenFarm-Chain/pkg/logger"
)

// dayWindow 是每日任务窗口的长度。
const dayWindow = 86400

// QuestClient 定义了每日任务工作流所需的远程服务能力。
type QuestClient interface {
	TaskStatus(ctx context.Context, token, address string) (*quest.TaskStatus, error)
	CreateAgent(ctx context.Context, token string, payload quest.AgentPayload) (string, error)
	CreateRequest(ctx context.Context, token string, payload quest.RequestPayload) (string, error)
}

// ChainClient 定义了链上登记所需的能力。
type ChainClient interface {
	Register(ctx context.Context, key *ecdsa.PrivateKey, method, id string) (string, error)
}

// Orchestrator 驱动单个账户的每日任务工作流：查询完成状态，
// 按需创建 agent 与 request 并逐一登记上链，所有步骤级失败都在
// 账户边界内吞掉，只累加错误计数。
type Orchestrator struct {
	quest     QuestClient
	chain     ChainClient
	generator llm.Client
	retry     retry.Policy
	log       *slog.Logger
	now       func() time.Time
}

// NewOrchestrator 构造每日任务工作流。
func NewOrchestrator(questClient QuestClient, chainClient ChainClient, generator llm.Client, policy retry.Policy) *Orchestrator {
	return &Orchestrator{
		quest:     questClient,
		chain:     chainClient,
		generator: generator,
		retry:     policy,
		log:       logger.Named("task"),
		now:       time.Now,
	}
}

// RunDaily 执行一次完整的账户工作流并返回本周期的结果增量。
// 状态查询失败时返回错误（该账户本周期被跳过，除错误计数外
// 没有任何部分变更）；其余步骤失败只累加错误计数，不上抛。
func (o *Orchestrator) RunDaily(ctx context.Context, acct *account.Account, stats *account.Stats, token *auth.Token, cycle uint64) (*report.Outcome, error) {
	outcome := report.NewOutcome(cycle, acct.Index, acct.Address())

	var status *quest.TaskStatus
	var badStatus error
	err := o.retry.Do(ctx, func(ctx context.Context) error {
		s, fetchErr := o.quest.TaskStatus(ctx, token.Token, acct.Address())
		if fetchErr != nil {
			// 不完整的响应不是瞬时故障，不消耗重试预算。
			if xerrors.CodeOf(fetchErr) == xerrors.CodeInvalidTask {
				badStatus = fetchErr
				return nil
			}
			return fetchErr
		}
		status = s
		return nil
	})
	if err == nil {
		err = badStatus
	}
	if err != nil {
		stats.Errors++
		outcome.Errors++
		return outcome, xerrors.Wrap(xerrors.CodeWorkflowFailure, err, "查询每日任务状态失败",
			xerrors.WithMetadata("stage", "task_status"))
	}

	// 冷却窗口无论走哪个分支都要重算。
	now := o.now()
	cooldown := int64(0)
	if !status.FinishTime.IsZero() {
		cooldown = status.FinishTime.Unix() + dayWindow - now.Unix()
		if cooldown < 0 {
			cooldown = 0
		}
	}
	stats.CooldownSeconds = cooldown

	if status.AgentDone && status.RequestDone {
		o.log.Info("今日任务已全部完成",
			slog.Int("account", acct.Index),
			slog.Int64("next_window_seconds", cooldown),
		)
		stats.LastRun = now
		return outcome, nil
	}

	if !status.AgentDone {
		o.runCreation(ctx, acct, stats, outcome, token, llm.KindAgent)
	}
	if !status.RequestDone {
		o.runCreation(ctx, acct, stats, outcome, token, llm.KindRequest)
	}

	stats.LastRun = o.now()
	return outcome, nil
}

// runCreation 执行一侧任务：生成内容、创建对象、登记上链。
// 任一步失败只跳过这一侧，不影响另一侧。
func (o *Orchestrator) runCreation(ctx context.Context, acct *account.Account, stats *account.Stats, outcome *report.Outcome, token *auth.Token, kind llm.Kind) {
	content, err := o.generator.Generate(ctx, kind)
	if err == nil {
		err = llm.Validate(kind, content)
	}
	if err != nil {
		stats.Errors++
		outcome.Errors++
		o.log.Warn("内容生成不可用",
			slog.Int("account", acct.Index),
			slog.String("kind", string(kind)),
			slog.Any("error", err),
		)
		return
	}

	var id string
	var method string
	err = o.retry.Do(ctx, func(ctx context.Context) error {
		var createErr error
		switch kind {
		case llm.KindAgent:
			id, createErr = o.quest.CreateAgent(ctx, token.Token, quest.AgentPayload{
				Name:        content.Name,
				Description: content.Description,
			})
		default:
			id, createErr = o.quest.CreateRequest(ctx, token.Token, quest.RequestPayload{
				Title:       content.Title,
				Description: content.Description,
			})
		}
		return createErr
	})
	if err != nil {
		stats.Errors++
		outcome.Errors++
		o.log.Warn("创建任务对象失败",
			slog.Int("account", acct.Index),
			slog.String("kind", string(kind)),
			slog.Any("error", err),
		)
		return
	}

	switch kind {
	case llm.KindAgent:
		method = chain.MethodRegisterAgent
	default:
		method = chain.MethodRegisterRequest
	}

	var txHash string
	err = o.retry.Do(ctx, func(ctx context.Context) error {
		var regErr error
		txHash, regErr = o.chain.Register(ctx, acct.Signer.Key(), method, id)
		return regErr
	})
	if err != nil {
		stats.Errors++
		outcome.Errors++
		o.log.Warn("链上登记失败",
			slog.Int("account", acct.Index),
			slog.String("kind", string(kind)),
			slog.String("id", id),
			slog.Any("error", err),
		)
		return
	}

	// 交易成功后才计数：txs 永远不会超过 agents+requests。
	switch kind {
	case llm.KindAgent:
		stats.Agents++
		outcome.Agents++
	default:
		stats.Requests++
		outcome.Requests++
	}
	stats.Txs++
	outcome.Txs++
	outcome.TxHashes = append(outcome.TxHashes, txHash)

	o.log.Info("每日任务完成一项",
		slog.Int("account", acct.Index),
		slog.String("kind", string(kind)),
		slog.String("id", id),
		slog.String("tx", txHash),
	)
}
