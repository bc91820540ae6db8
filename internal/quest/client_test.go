package quest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	xerrors "OpenFarm-Chain/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Config{BaseURL: server.URL, ReferralCode: "FARM123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return client
}

func TestNonceMissingDataIsAuthFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{}}`))
	})

	_, err := client.Nonce(context.Background(), "0xabc")
	if xerrors.CodeOf(err) != xerrors.CodeAuthFailure {
		t.Fatalf("expected AUTH_FAILURE, got %v", err)
	}
}

func TestLoginReturnsSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing request id header")
		}
		w.Write([]byte(`{"data":{"token":"tok-1","expires_in":3600}}`))
	})

	session, err := client.Login(context.Background(), "0xabc", "0xsig", "nonce-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Token != "tok-1" {
		t.Fatalf("unexpected token: %s", session.Token)
	}
	if session.ExpiresAt.IsZero() {
		t.Fatal("expiry must be set")
	}
}

func TestLoginMissingTokenIsAuthFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"expires_in":3600}}`))
	})

	_, err := client.Login(context.Background(), "0xabc", "0xsig", "nonce-1")
	if xerrors.CodeOf(err) != xerrors.CodeAuthFailure {
		t.Fatalf("expected AUTH_FAILURE, got %v", err)
	}
}

func TestTaskStatusMissingFlagsIsInvalid(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"agent_done":true}}`))
	})

	_, err := client.TaskStatus(context.Background(), "tok", "0xabc")
	if xerrors.CodeOf(err) != xerrors.CodeInvalidTask {
		t.Fatalf("expected INVALID_TASK_RESPONSE, got %v", err)
	}
}

func TestTaskStatusDecodesFlags(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		w.Write([]byte(`{"data":{"agent_done":true,"request_done":false,"finish_time":1700000000}}`))
	})

	status, err := client.TaskStatus(context.Background(), "tok", "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.AgentDone || status.RequestDone {
		t.Fatalf("unexpected flags: %+v", status)
	}
	if status.FinishTime.Unix() != 1700000000 {
		t.Fatalf("unexpected finish time: %v", status.FinishTime)
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.CreateAgent(context.Background(), "tok", AgentPayload{Name: "a", Description: "b"})
	if xerrors.CodeOf(err) != xerrors.CodeTransientRemote {
		t.Fatalf("expected TRANSIENT_REMOTE, got %v", err)
	}
	if !xerrors.RetryableError(err) {
		t.Fatal("transient remote errors must be retryable")
	}
}

func TestCreateReturnsIdentifier(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":"agent-42"}}`))
	})

	id, err := client.CreateAgent(context.Background(), "tok", AgentPayload{Name: "n", Description: "d"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "agent-42" {
		t.Fatalf("unexpected id: %s", id)
	}
}

func TestProfileDecodes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"uid":"u-7","total_point":128.5,"days":9}}`))
	})

	profile, err := client.Profile(context.Background(), "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.UID != "u-7" || profile.TotalPoint != 128.5 || profile.Days != 9 {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}
