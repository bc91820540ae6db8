package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"OpenFarm-Chain/internal/account"
	"OpenFarm-Chain/internal/auth"
	xerrors "OpenFarm-Chain/internal/errors"
	"OpenFarm-Chain/internal/observability/alerting"
	"OpenFarm-Chain/internal/quest"
	"OpenFarm-Chain/internal/report"
	"OpenFarm-Chain/pkg/logger"
)

// criticalPause 是周期循环本身出错后的恢复等待时间。
const criticalPause = 5 * time.Minute

// Runner 是调度器眼中的每日工作流。
type Runner interface {
	RunDaily(ctx context.Context, acct *account.Account, stats *account.Stats, token *auth.Token, cycle uint64) (*report.Outcome, error)
}

// SessionManager 是调度器眼中的认证状态机。
type SessionManager interface {
	Acquire(ctx context.Context, acct *account.Account) (*auth.Token, error)
	Restore(ctx context.Context, acct *account.Account) *auth.Token
}

// ProfileClient 提供周期末尾的档案刷新。
type ProfileClient interface {
	Profile(ctx context.Context, token string) (*quest.Profile, error)
}

// Scheduler 驱动无限的周期循环：按固定顺序串行处理每个账户，
// 周期之间按冷却时间休眠。单个账户的失败被隔离在账户边界内，
// 循环本身的失败触发短暂停顿后重来。
type Scheduler struct {
	registry  *account.Registry
	auth      SessionManager
	runner    Runner
	profiles  ProfileClient
	ledger    report.Ledger
	publisher report.Publisher
	console   *report.Console
	alerter   alerting.Dispatcher

	cooldown         time.Duration
	interDelay       time.Duration
	progressInterval time.Duration
	maxCycles        uint64

	// 会话按账户序号整体携带到下一个周期，失效时整体替换。
	sessions []*auth.Token
	cycle    uint64

	log   *slog.Logger
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// SchedulerOption 调整调度器的可注入行为。
type SchedulerOption func(*Scheduler)

// WithClock 替换时钟来源。
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// WithSleeper 替换休眠实现。
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) SchedulerOption {
	return func(s *Scheduler) { s.sleep = sleep }
}

// WithMaxCycles 让调度器在指定周期数后正常返回，0 表示不限。
func WithMaxCycles(n uint64) SchedulerOption {
	return func(s *Scheduler) { s.maxCycles = n }
}

// SchedulerConfig 聚合调度器的时间参数。
type SchedulerConfig struct {
	Cooldown         time.Duration
	InterAccountWait time.Duration
	ProgressInterval time.Duration
}

// NewScheduler 构造周期调度器。ledger、publisher、alerter 都可以为 nil。
func NewScheduler(reg *account.Registry, sessions SessionManager, runner Runner, profiles ProfileClient,
	ledger report.Ledger, publisher report.Publisher, console *report.Console, alerter alerting.Dispatcher,
	cfg SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		registry:         reg,
		auth:             sessions,
		runner:           runner,
		profiles:         profiles,
		ledger:           ledger,
		publisher:        publisher,
		console:          console,
		alerter:          alerter,
		cooldown:         cfg.Cooldown,
		interDelay:       cfg.InterAccountWait,
		progressInterval: cfg.ProgressInterval,
		sessions:         make([]*auth.Token, reg.Len()),
		log:              logger.Named("scheduler"),
		now:              time.Now,
		sleep:            sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run 执行周期循环直到 ctx 取消。取消是唯一的正常退出路径
//（除非配置了 WithMaxCycles）。
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.guardedCycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			// 周期序号不回退：中断的周期算作已消耗的一次尝试。
			s.log.Error("周期循环失败，短暂停顿后恢复",
				slog.Uint64("cycle", s.cycle),
				slog.Any("error", err),
			)
			s.dispatchAlert(ctx, -1, err)
			if err := s.sleep(ctx, criticalPause); err != nil {
				return err
			}
			continue
		}

		if s.maxCycles > 0 && s.cycle >= s.maxCycles {
			return nil
		}

		if err := s.cooldownWait(ctx); err != nil {
			return err
		}
	}
}

// guardedCycle 把周期循环中逃逸的 panic 转换为 CRITICAL_LOOP 错误，
// 让 Run 的恢复路径统一处理。
func (s *Scheduler) guardedCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.New(xerrors.CodeCriticalLoop, fmt.Sprintf("周期循环 panic: %v", r))
		}
	}()
	return s.runCycle(ctx)
}

// runCycle 处理一个完整的周期：按注册顺序逐个账户执行。
func (s *Scheduler) runCycle(ctx context.Context) error {
	s.cycle++
	s.log.Info("周期开始",
		slog.Uint64("cycle", s.cycle),
		slog.Int("accounts", s.registry.Len()),
	)

	for i := 0; i < s.registry.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		acct, stats := s.registry.At(i)
		s.processAccount(ctx, acct, stats, i)

		// 最后一个账户之后不再等待。
		if i < s.registry.Len()-1 && s.interDelay > 0 {
			if err := s.sleep(ctx, s.interDelay); err != nil {
				return err
			}
		}
	}

	summary := account.Summarize(s.registry, s.now())
	if s.console != nil {
		s.console.RenderSummary(s.cycle, summary)
	}
	logger.Report().Info("cycle_summary",
		slog.Uint64("cycle", s.cycle),
		slog.Uint64("agents", summary.TotalAgents),
		slog.Uint64("requests", summary.TotalRequests),
		slog.Uint64("txs", summary.TotalTxs),
		slog.Uint64("errors", summary.TotalErrors),
	)
	return nil
}

// processAccount 在账户边界内执行会话获取与每日工作流，
// 任何失败都不会越过这个边界。
func (s *Scheduler) processAccount(ctx context.Context, acct *account.Account, stats *account.Stats, index int) {
	token := s.sessions[index]
	if token == nil {
		// 冷启动时先尝试缓存里的会话。
		token = s.auth.Restore(ctx, acct)
	}
	if !token.Valid(s.now()) {
		fresh, err := s.auth.Acquire(ctx, acct)
		if err != nil {
			// 认证失败不动任何统计，留到下个周期自动重试。
			s.log.Warn("会话获取失败，跳过该账户",
				slog.Int("account", index),
				slog.Any("error", err),
			)
			s.dispatchAlert(ctx, index, err)
			return
		}
		token = fresh
	}
	s.sessions[index] = token

	outcome, runErr := s.runGuarded(ctx, acct, stats, token)
	if runErr != nil {
		// 任务失败不作废会话：令牌只因过期被替换。
		s.log.Warn("每日工作流失败",
			slog.Int("account", index),
			slog.Any("error", runErr),
		)
		s.dispatchAlert(ctx, index, runErr)
	} else if s.profiles != nil {
		s.refreshProfile(ctx, stats, token, index)
	}

	if outcome != nil {
		s.record(ctx, outcome)
	}
}

// runGuarded 把单账户工作流中逃逸的 panic 收敛为 WORKFLOW_FAILURE。
func (s *Scheduler) runGuarded(ctx context.Context, acct *account.Account, stats *account.Stats, token *auth.Token) (outcome *report.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			stats.Errors++
			err = xerrors.New(xerrors.CodeWorkflowFailure, fmt.Sprintf("账户工作流 panic: %v", r))
		}
	}()
	return s.runner.RunDaily(ctx, acct, stats, token, s.cycle)
}

// refreshProfile 在任务成功后尽力刷新账户档案，失败只记录。
func (s *Scheduler) refreshProfile(ctx context.Context, stats *account.Stats, token *auth.Token, index int) {
	profile, err := s.profiles.Profile(ctx, token.Token)
	if err != nil {
		s.log.Debug("档案刷新失败",
			slog.Int("account", index),
			slog.Any("error", err),
		)
		return
	}
	stats.UID = profile.UID
	stats.TotalPoint = profile.TotalPoint
	stats.Days = profile.Days
}

// record 把周期结果写入台账并发布事件，两者都是尽力而为。
func (s *Scheduler) record(ctx context.Context, outcome *report.Outcome) {
	if s.ledger != nil {
		if err := s.ledger.Append(ctx, outcome); err != nil {
			s.log.Warn("写入周期台账失败",
				slog.String("outcome", outcome.ID),
				slog.Any("error", err),
			)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, outcome); err != nil {
			s.log.Warn("发布周期事件失败",
				slog.String("outcome", outcome.ID),
				slog.Any("error", err),
			)
		}
	}
}

// dispatchAlert 把错误转换为告警事件分发出去。
func (s *Scheduler) dispatchAlert(ctx context.Context, accountIndex int, cause error) {
	if s.alerter == nil {
		return
	}
	event := alerting.FromError(s.cycle, accountIndex, cause)
	if err := s.alerter.Notify(ctx, event); err != nil {
		s.log.Debug("告警分发失败", slog.Any("error", err))
	}
}

// cooldownWait 在周期之间休眠，每隔 progressInterval 输出一次剩余时间。
func (s *Scheduler) cooldownWait(ctx context.Context) error {
	if s.cooldown <= 0 {
		return nil
	}
	deadline := s.now().Add(s.cooldown)
	for {
		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			return nil
		}
		step := remaining
		if s.progressInterval > 0 && step > s.progressInterval {
			step = s.progressInterval
		}
		if err := s.sleep(ctx, step); err != nil {
			return err
		}
		if remaining = deadline.Sub(s.now()); remaining > 0 && s.console != nil {
			s.console.RenderProgress(remaining, s.cycle+1)
		}
	}
}

// Cycle 返回当前已开始的周期序号。
func (s *Scheduler) Cycle() uint64 {
	return s.cycle
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
