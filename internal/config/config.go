package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	xerrors "OpenFarm-Chain/internal/errors"
)

// Config 描述 openfarmd 在启动阶段需要加载的全部配置。
// 配置只在启动时加载一次，不支持热更新。
type Config struct {
	Accounts  AccountsConfig  `json:"accounts"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Retry     RetryConfig     `json:"retry"`
	Quest     QuestConfig     `json:"quest"`
	LLM       LLMConfig       `json:"llm"`
	Chain     ChainConfig     `json:"chain"`
	Session   SessionConfig   `json:"session_cache"`
	Ledger    LedgerConfig    `json:"ledger"`
	Events    EventsConfig    `json:"events"`
	Alerting  AlertingConfig  `json:"alerting"`
	Log       LogConfig       `json:"log"`
}

// AccountsConfig 指向凭据清单文件：每行一个十六进制私钥，
// 空行与 # 注释行会被忽略。
type AccountsConfig struct {
	File string `json:"file"`
}

// SchedulerConfig 控制轮询节奏。
type SchedulerConfig struct {
	CooldownHours            int `json:"cooldown_hours"`
	InterAccountDelaySeconds int `json:"inter_account_delay_seconds"`
	ProgressIntervalMinutes  int `json:"progress_interval_minutes"`
}

// RetryConfig 控制瞬时远程失败的重试预算。
type RetryConfig struct {
	MaxAttempts int `json:"max_attempts"`
	BaseDelayMS int `json:"base_delay_ms"`
}

// QuestConfig 描述远程任务服务的接入参数。
type QuestConfig struct {
	BaseURL        string `json:"base_url"`
	ReferralCode   string `json:"referral_code"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// LLMConfig 用于配置内容生成的调用方式。
type LLMConfig struct {
	Provider string       `json:"provider"`
	OpenAI   OpenAIConfig `json:"openai"`
}

// OpenAIConfig 描述通过 OpenAI 生成内容时所需的信息。
type OpenAIConfig struct {
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回 OpenAI 调用超时。
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ChainConfig 指向链定义文件（configs/chain.yaml）并选择默认链。
type ChainConfig struct {
	DefinitionsFile string `json:"definitions_file"`
	Default         string `json:"default"`
}

// SessionConfig 描述可选的 Redis 会话缓存。
// 会话令牌是唯一允许跨进程重启复用的状态。
type SessionConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

// LedgerConfig 描述可选的执行台账存储。
type LedgerConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// EventsConfig 描述可选的周期事件发布。
type EventsConfig struct {
	Driver string `json:"driver"`
	URL    string `json:"url"`
	Queue  string `json:"queue"`
}

// AlertingConfig 描述告警 webhook。
type AlertingConfig struct {
	WebhookURL     string `json:"webhook_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// LogConfig 控制日志输出。
type LogConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	ReportPath string `json:"report_path"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "读取配置文件失败")
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "解析配置失败")
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Accounts.File == "" {
		c.Accounts.File = filepath.Join(baseDir, "accounts.keys")
	} else if !filepath.IsAbs(c.Accounts.File) {
		c.Accounts.File = filepath.Join(baseDir, c.Accounts.File)
	}

	if c.Scheduler.CooldownHours <= 0 {
		c.Scheduler.CooldownHours = 12
	}
	if c.Scheduler.InterAccountDelaySeconds <= 0 {
		c.Scheduler.InterAccountDelaySeconds = 3
	}
	if c.Scheduler.ProgressIntervalMinutes <= 0 {
		c.Scheduler.ProgressIntervalMinutes = 30
	}

	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelayMS <= 0 {
		c.Retry.BaseDelayMS = 5000
	}

	if c.Quest.TimeoutSeconds <= 0 {
		c.Quest.TimeoutSeconds = 30
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "static"
	}

	if c.Chain.DefinitionsFile == "" {
		c.Chain.DefinitionsFile = filepath.Join(baseDir, "chain.yaml")
	} else if !filepath.IsAbs(c.Chain.DefinitionsFile) {
		c.Chain.DefinitionsFile = filepath.Join(baseDir, c.Chain.DefinitionsFile)
	}

	if c.Session.Prefix == "" {
		c.Session.Prefix = "openfarm:session:"
	}

	if c.Ledger.Driver == "" {
		c.Ledger.Driver = "memory"
	}
	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}
	if c.Events.Queue == "" {
		c.Events.Queue = "openfarm.cycles"
	}
	if c.Alerting.TimeoutSeconds <= 0 {
		c.Alerting.TimeoutSeconds = 10
	}
}

// CooldownDuration 返回周期间冷却时长。
func (c *Config) CooldownDuration() time.Duration {
	return time.Duration(c.Scheduler.CooldownHours) * time.Hour
}

// InterAccountDelay 返回账户间的固定间隔。
func (c *Config) InterAccountDelay() time.Duration {
	return time.Duration(c.Scheduler.InterAccountDelaySeconds) * time.Second
}

// ProgressInterval 返回冷却期间的进度播报间隔。
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Scheduler.ProgressIntervalMinutes) * time.Minute
}

// RetryBaseDelay 返回重试的基础退避时长。
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMS) * time.Millisecond
}

// LoadCredentials 读取凭据清单并返回按行序排列的私钥列表。
// 核心逻辑不接触原始配置文本；这里是唯一的解析入口。
func LoadCredentials(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "打开凭据文件失败")
	}
	defer file.Close()

	var keys []string
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		keys = append(keys, text)
	}
	if err := scanner.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, fmt.Sprintf("读取凭据文件失败（第 %d 行附近）", line))
	}
	if len(keys) == 0 {
		return nil, xerrors.New(xerrors.CodeConfiguration, "凭据文件中没有可用的私钥")
	}
	return keys, nil
}
