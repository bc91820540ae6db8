package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"OpenFarm-Chain/internal/account"
	"OpenFarm-Chain/internal/auth"
	"OpenFarm-Chain/internal/chain"
	"OpenFarm-Chain/internal/config"
	"OpenFarm-Chain/internal/llm"
	"OpenFarm-Chain/internal/llm/openai"
	"OpenFarm-Chain/internal/llm/static"
	"OpenFarm-Chain/internal/observability/alerting"
	"OpenFarm-Chain/internal/quest"
	"OpenFarm-Chain/internal/report"
	"OpenFarm-Chain/internal/retry"
	storageredis "OpenFarm-Chain/internal/storage/redis"
	"OpenFarm-Chain/internal/task"
	"OpenFarm-Chain/pkg/logger"
)

// main 是 OpenFarm 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("openfarmd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("OPENFARM_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "openfarm.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Report: logger.ReportConfig{
			Enabled: cfg.Log.ReportPath != "",
			Path:    cfg.Log.ReportPath,
		},
	}); err != nil {
		return err
	}
	defer logger.Sync()

	credentials, err := config.LoadCredentials(cfg.Accounts.File)
	if err != nil {
		return err
	}
	registry, err := account.NewRegistry(credentials, time.Now())
	if err != nil {
		return err
	}

	questClient, err := quest.NewClient(quest.Config{
		BaseURL:      cfg.Quest.BaseURL,
		ReferralCode: cfg.Quest.ReferralCode,
		Timeout:      time.Duration(cfg.Quest.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return err
	}

	definitions, err := chain.LoadDefinitions(cfg.Chain.DefinitionsFile)
	if err != nil {
		return err
	}
	definition, err := definitions.Select(cfg.Chain.Default)
	if err != nil {
		return err
	}
	chainClient, err := chain.NewClient(ctx, definition)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	generator, err := createGenerator(cfg)
	if err != nil {
		return err
	}

	var sessionCache auth.Cache
	if cfg.Session.Enabled {
		cache, err := storageredis.NewSessionCache(storageredis.Config{
			Address:  cfg.Session.Address,
			Password: cfg.Session.Password,
			DB:       cfg.Session.DB,
			Prefix:   cfg.Session.Prefix,
		})
		if err != nil {
			return err
		}
		defer cache.Close()
		sessionCache = cache
	}
	sessions := auth.NewManager(questClient, sessionCache)

	ledger, err := createLedger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			log.Printf("关闭周期台账失败: %v", err)
		}
	}()

	publisher, err := createPublisher(cfg)
	if err != nil {
		return err
	}
	if publisher != nil {
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Printf("关闭事件发布器失败: %v", err)
			}
		}()
	}

	alerter, err := createAlerter(cfg)
	if err != nil {
		return err
	}

	policy := retry.New(cfg.Retry.MaxAttempts, cfg.RetryBaseDelay())
	orchestrator := task.NewOrchestrator(questClient, chainClient, generator, policy)
	console := report.NewConsole(os.Stdout)

	scheduler := task.NewScheduler(registry, sessions, orchestrator, questClient,
		ledger, publisher, console, alerter,
		task.SchedulerConfig{
			Cooldown:         cfg.CooldownDuration(),
			InterAccountWait: cfg.InterAccountDelay(),
			ProgressInterval: cfg.ProgressInterval(),
		},
	)

	err = scheduler.Run(ctx)

	// 收到退出信号后同步输出最终统计，再返回。
	console.RenderShutdown(account.Summarize(registry, time.Now()))

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func createGenerator(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "static":
		return static.NewGenerator(time.Now().UnixNano()), nil
	case "openai":
		apiKey := strings.TrimSpace(cfg.LLM.OpenAI.APIKey)
		if apiKey == "" && cfg.LLM.OpenAI.APIKeyEnv != "" {
			apiKey = strings.TrimSpace(os.Getenv(cfg.LLM.OpenAI.APIKeyEnv))
		}
		if apiKey == "" {
			return nil, errors.New("OpenAI provider 需要配置 api_key 或 api_key_env")
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
			Timeout: cfg.LLM.OpenAI.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的内容生成 provider: %s", cfg.LLM.Provider)
	}
}

func createLedger(cfg *config.Config) (report.Ledger, error) {
	switch cfg.Ledger.Driver {
	case "", "memory":
		return report.NewMemoryLedger(), nil
	case "mysql":
		return report.NewMySQLLedger(cfg.Ledger.DSN)
	default:
		return nil, fmt.Errorf("未知的台账驱动: %s", cfg.Ledger.Driver)
	}
}

func createPublisher(cfg *config.Config) (report.Publisher, error) {
	switch cfg.Events.Driver {
	case "", "none":
		return nil, nil
	case "memory":
		return report.NewMemoryPublisher(), nil
	case "rabbitmq":
		return report.NewRabbitMQPublisher(report.RabbitMQConfig{
			URL:   cfg.Events.URL,
			Queue: cfg.Events.Queue,
		})
	default:
		return nil, fmt.Errorf("未知的事件驱动: %s", cfg.Events.Driver)
	}
}

func createAlerter(cfg *config.Config) (alerting.Dispatcher, error) {
	notifiers := []alerting.Notifier{alerting.LogNotifier{}}
	if cfg.Alerting.WebhookURL != "" {
		webhook, err := alerting.NewWebhookNotifier(cfg.Alerting.WebhookURL,
			time.Duration(cfg.Alerting.TimeoutSeconds)*time.Second)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, webhook)
	}
	return alerting.NewFanout(notifiers...), nil
}
