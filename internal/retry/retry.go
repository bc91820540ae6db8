package retry

import (
	"context"
	"time"
)

// DefaultMaxAttempts 是单个远程调用的默认尝试次数。
const DefaultMaxAttempts = 3

// DefaultBaseDelay 是首次重试前的默认等待时长。
const DefaultBaseDelay = 5 * time.Second

// Policy 将一次可能失败的远程调用包装为有界的指数退避重试。
// 第 i 次失败后（i 从 0 开始计），在下一次尝试前等待 BaseDelay * 2^i。
// 最后一次尝试失败时原样返回该错误，不做任何包装或吞没。
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// sleep 仅用于测试注入，为 nil 时使用可取消的真实等待。
	sleep func(ctx context.Context, d time.Duration) error
}

// New 创建一个重试策略，非法参数回落到默认值。
func New(maxAttempts int, baseDelay time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return Policy{MaxAttempts: maxAttempts, BaseDelay: baseDelay}
}

// Do 依据策略执行 op。任意一次成功立即返回，不再继续尝试。
// 上下文取消会中断退避等待并返回 ctx.Err()。
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = DefaultBaseDelay
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		if err := p.wait(ctx, delay<<uint(i)); err != nil {
			return err
		}
	}
	return lastErr
}

func (p Policy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
