package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"OpenFarm-Chain/internal/account"
)

func TestMemoryLedgerKeepsRecent(t *testing.T) {
	ledger := NewMemoryLedger()
	for i := 0; i < 5; i++ {
		outcome := NewOutcome(uint64(i), 0, "0xabc")
		if err := ledger.Append(context.Background(), outcome); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	recent := ledger.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(recent))
	}
	if recent[2].Cycle != 4 {
		t.Fatalf("unexpected ordering: %+v", recent)
	}
}

func TestMemoryPublisherCollectsEvents(t *testing.T) {
	publisher := NewMemoryPublisher()
	outcome := NewOutcome(1, 2, "0xabc")
	outcome.Agents = 1
	if err := publisher.Publish(context.Background(), outcome); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := publisher.Events()
	if len(events) != 1 || events[0].AccountIndex != 2 {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].ID == "" {
		t.Fatal("outcome must carry a unique id")
	}
}

func TestConsoleRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(&buf)

	summary := account.Summary{
		Lines: []account.SummaryLine{
			{
				Index:           0,
				Address:         "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
				UID:             "u-1",
				TotalPoint:      42,
				Agents:          1,
				Requests:        1,
				Txs:             2,
				CooldownSeconds: 82800,
			},
		},
		TotalPoints: 42,
		TotalAgents: 1, TotalRequests: 1, TotalTxs: 2,
		Elapsed: 90 * time.Minute,
	}
	console.RenderSummary(3, summary)

	out := buf.String()
	if !strings.Contains(out, "第 3 轮统计") {
		t.Fatalf("missing cycle header: %s", out)
	}
	if !strings.Contains(out, "0xf39Fd6...2266") {
		t.Fatalf("address not shortened: %s", out)
	}
	if !strings.Contains(out, "23h00m00s") {
		t.Fatalf("cooldown not rendered: %s", out)
	}
	if !strings.Contains(out, "运行时长=1h30m00s") {
		t.Fatalf("elapsed not rendered: %s", out)
	}
}

func TestConsoleRenderProgress(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(&buf)
	console.RenderProgress(45*time.Second, 2)
	if !strings.Contains(buf.String(), "45s") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}
