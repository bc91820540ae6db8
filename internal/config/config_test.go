package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	xerrors "OpenFarm-Chain/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "openfarm.json", `{"quest":{"base_url":"https://quest.example"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Scheduler.CooldownHours != 12 {
		t.Fatalf("unexpected cooldown: %d", cfg.Scheduler.CooldownHours)
	}
	if cfg.Scheduler.InterAccountDelaySeconds != 3 {
		t.Fatalf("unexpected inter-account delay: %d", cfg.Scheduler.InterAccountDelaySeconds)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelayMS != 5000 {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.RetryBaseDelay() != 5*time.Second {
		t.Fatalf("unexpected base delay: %v", cfg.RetryBaseDelay())
	}
	if cfg.Accounts.File != filepath.Join(dir, "accounts.keys") {
		t.Fatalf("accounts file not resolved against config dir: %s", cfg.Accounts.File)
	}
	if cfg.LLM.Provider != "static" {
		t.Fatalf("unexpected llm provider: %s", cfg.LLM.Provider)
	}
	if cfg.Ledger.Driver != "memory" || cfg.Events.Driver != "none" {
		t.Fatalf("unexpected storage defaults: %+v %+v", cfg.Ledger, cfg.Events)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("expected error")
	}
	if xerrors.CodeOf(err) != xerrors.CodeConfiguration {
		t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
	}
}

func TestLoadCredentialsSkipsCommentsAndBlanks(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "accounts.keys", "# 主账户\n0xabc123\n\n  def456  \n# 备用\n")

	keys, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "0xabc123" || keys[1] != "def456" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestLoadCredentialsEmptyFileFails(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "accounts.keys", "# 只有注释\n\n")

	_, err := LoadCredentials(path)
	if err == nil {
		t.Fatal("expected error for empty credential list")
	}
	var appErr *xerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != xerrors.CodeConfiguration {
		t.Fatalf("unexpected error: %v", err)
	}
}
