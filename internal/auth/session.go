package auth

import (
	"context"
	"log/slog"
	"time"

	"OpenFarm-Chain/internal/account"
	xerrors "OpenFarm-Chain/internal/errors"
	"OpenFarm-Chain/internal/quest"
	"OpenFarm-Chain/pkg/logger"
)

// Token 是按账户派生的会话凭据。失效时整体替换，从不就地修改。
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Address   string    `json:"address"`
}

// Valid 判断令牌在 now 时刻是否仍然可用。
// now >= ExpiresAt 视为过期，需要重新获取。
func (t *Token) Valid(now time.Time) bool {
	if t == nil || t.Token == "" {
		return false
	}
	return now.Before(t.ExpiresAt)
}

// QuestClient 是会话获取所需的远程服务能力子集。
type QuestClient interface {
	Nonce(ctx context.Context, address string) (string, error)
	Login(ctx context.Context, address, signature, nonce string) (*quest.Session, error)
	RegisterInviter(ctx context.Context, token string) error
}

// Cache 是可选的会话缓存。会话令牌是唯一允许跨进程重启
// 复用的状态，缓存的读写都是尽力而为。
type Cache interface {
	Load(ctx context.Context, address string) (*Token, error)
	Save(ctx context.Context, token *Token) error
}

// Manager 驱动单账户的认证状态机：
// 未认证 → 认证中 → 已认证，过期后回到认证中。
// 握手路径不做重试；一次失败意味着该账户本周期没有会话。
type Manager struct {
	client QuestClient
	cache  Cache
	log    *slog.Logger
	now    func() time.Time
}

// NewManager 构造会话管理器。cache 可以为 nil。
func NewManager(client QuestClient, cache Cache) *Manager {
	return &Manager{
		client: client,
		cache:  cache,
		log:    logger.Named("auth"),
		now:    time.Now,
	}
}

// Acquire 执行 nonce → 签名 → 登录 交换，返回完整的会话令牌。
// 任一步拿不到可用数据即返回 AUTH_FAILURE。
func (m *Manager) Acquire(ctx context.Context, acct *account.Account) (*Token, error) {
	address := acct.Address()

	nonce, err := m.client.Nonce(ctx, address)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeAuthFailure, err, "获取 nonce 失败",
			xerrors.WithMetadata("stage", "nonce"))
	}

	signature, err := acct.Signer.SignText(nonce)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeAuthFailure, err, "签署 nonce 失败",
			xerrors.WithMetadata("stage", "sign"))
	}

	session, err := m.client.Login(ctx, address, signature, nonce)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeAuthFailure, err, "登录失败",
			xerrors.WithMetadata("stage", "login"))
	}

	token := &Token{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Address:   address,
	}

	// 邀请登记是尽力而为的一步，失败只记录。
	if err := m.client.RegisterInviter(ctx, token.Token); err != nil {
		m.log.Warn("邀请登记失败",
			slog.Int("account", acct.Index),
			slog.Any("error", err),
		)
	}

	m.store(ctx, acct.Index, token)
	return token, nil
}

// Restore 尝试从缓存恢复仍然有效的会话，没有命中时返回 nil。
func (m *Manager) Restore(ctx context.Context, acct *account.Account) *Token {
	if m.cache == nil {
		return nil
	}
	token, err := m.cache.Load(ctx, acct.Address())
	if err != nil {
		m.log.Debug("读取会话缓存失败",
			slog.Int("account", acct.Index),
			slog.Any("error", err),
		)
		return nil
	}
	if !token.Valid(m.now()) {
		return nil
	}
	return token
}

func (m *Manager) store(ctx context.Context, index int, token *Token) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Save(ctx, token); err != nil {
		m.log.Debug("写入会话缓存失败",
			slog.Int("account", index),
			slog.Any("error", err),
		)
	}
}
