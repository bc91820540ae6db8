package quest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	xerrors "OpenFarm-Chain/internal/errors"

	"github.com/google/uuid"
)

const defaultTimeout = 30 * time.Second

// defaultSessionTTL 在服务端未返回过期时间时兜底，按一天计。
const defaultSessionTTL = 86400

// Config 描述远程任务服务的接入参数。
type Config struct {
	BaseURL      string
	ReferralCode string
	Timeout      time.Duration
}

// Client 通过 HTTP 调用远程任务服务。
// 每个请求都携带唯一的 X-Request-ID 以便服务端排查。
type Client struct {
	baseURL    string
	referral   string
	httpClient *http.Client
}

// Session 是一次登录交换的结果。
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// TaskStatus 是每个周期按账户拉取的每日任务完成情况。
type TaskStatus struct {
	AgentDone   bool
	RequestDone bool
	FinishTime  time.Time
}

// Profile 汇总账户在服务端的档案数据。
type Profile struct {
	UID        string
	TotalPoint float64
	Days       int
}

// AgentPayload 是创建 agent 所需的字段。
type AgentPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RequestPayload 是创建 request 所需的字段。
type RequestPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// NewClient 根据配置创建任务服务客户端。
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "未配置任务服务地址")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:  baseURL,
		referral: strings.TrimSpace(cfg.ReferralCode),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Nonce 按地址申请一次性登录挑战。响应缺少 nonce 视为握手失败。
func (c *Client) Nonce(ctx context.Context, address string) (string, error) {
	endpoint := c.baseURL + "/v1/auth/nonce?address=" + url.QueryEscape(address)

	var decoded struct {
		Data struct {
			Nonce string `json:"nonce"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, "", nil, &decoded); err != nil {
		return "", err
	}
	nonce := strings.TrimSpace(decoded.Data.Nonce)
	if nonce == "" {
		return "", xerrors.New(xerrors.CodeAuthFailure, "响应中缺少 nonce")
	}
	return nonce, nil
}

// Login 提交地址、签名与 nonce 换取会话令牌。缺少令牌视为握手失败。
func (c *Client) Login(ctx context.Context, address, signature, nonce string) (*Session, error) {
	body := map[string]string{
		"address":   address,
		"signature": signature,
		"nonce":     nonce,
	}

	var decoded struct {
		Data struct {
			Token     string `json:"token"`
			ExpiresIn int64  `json:"expires_in"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v1/auth/login", "", body, &decoded); err != nil {
		return nil, err
	}

	token := strings.TrimSpace(decoded.Data.Token)
	if token == "" {
		return nil, xerrors.New(xerrors.CodeAuthFailure, "响应中缺少会话令牌")
	}
	ttl := decoded.Data.ExpiresIn
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Session{
		Token:     token,
		ExpiresAt: time.Now().Add(time.Duration(ttl) * time.Second),
	}, nil
}

// RegisterInviter 登记邀请码。调用方把它当作尽力而为的一步，
// 返回的错误只记录不上抛。
func (c *Client) RegisterInviter(ctx context.Context, token string) error {
	if c.referral == "" {
		return nil
	}
	body := map[string]string{"inviter_code": c.referral}
	return c.do(ctx, http.MethodPost, c.baseURL+"/v1/referral/register", token, body, nil)
}

// TaskStatus 拉取当日任务完成情况。两个完成标志缺一不可，
// 缺失时返回 INVALID_TASK_RESPONSE。
func (c *Client) TaskStatus(ctx context.Context, token, address string) (*TaskStatus, error) {
	endpoint := c.baseURL + "/v1/tasks/daily?address=" + url.QueryEscape(address)

	var decoded struct {
		Data struct {
			AgentDone   *bool `json:"agent_done"`
			RequestDone *bool `json:"request_done"`
			FinishTime  int64 `json:"finish_time"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, token, nil, &decoded); err != nil {
		return nil, err
	}
	if decoded.Data.AgentDone == nil || decoded.Data.RequestDone == nil {
		return nil, xerrors.New(xerrors.CodeInvalidTask, "任务状态响应缺少完成标志")
	}

	status := &TaskStatus{
		AgentDone:   *decoded.Data.AgentDone,
		RequestDone: *decoded.Data.RequestDone,
	}
	if decoded.Data.FinishTime > 0 {
		status.FinishTime = time.Unix(decoded.Data.FinishTime, 0)
	}
	return status, nil
}

// CreateAgent 创建一个 agent 并返回服务端分配的标识。
func (c *Client) CreateAgent(ctx context.Context, token string, payload AgentPayload) (string, error) {
	return c.create(ctx, c.baseURL+"/v1/agents", token, payload)
}

// CreateRequest 创建一个 request 并返回服务端分配的标识。
func (c *Client) CreateRequest(ctx context.Context, token string, payload RequestPayload) (string, error) {
	return c.create(ctx, c.baseURL+"/v1/requests", token, payload)
}

func (c *Client) create(ctx context.Context, endpoint, token string, payload any) (string, error) {
	var decoded struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, endpoint, token, payload, &decoded); err != nil {
		return "", err
	}
	id := strings.TrimSpace(decoded.Data.ID)
	if id == "" {
		return "", xerrors.New(xerrors.CodeTransientRemote, "创建响应中缺少标识")
	}
	return id, nil
}

// Profile 拉取账户档案（uid、积分、天数）。
func (c *Client) Profile(ctx context.Context, token string) (*Profile, error) {
	var decoded struct {
		Data struct {
			UID        string  `json:"uid"`
			TotalPoint float64 `json:"total_point"`
			Days       int     `json:"days"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v1/profile", token, nil, &decoded); err != nil {
		return nil, err
	}
	return &Profile{
		UID:        decoded.Data.UID,
		TotalPoint: decoded.Data.TotalPoint,
		Days:       decoded.Data.Days,
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求失败: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return xerrors.Wrap(xerrors.CodeTransientRemote, err, "请求任务服务失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return xerrors.New(xerrors.CodeTransientRemote,
			fmt.Sprintf("任务服务返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return xerrors.Wrap(xerrors.CodeTransientRemote, err, "解析任务服务响应失败")
	}
	return nil
}
