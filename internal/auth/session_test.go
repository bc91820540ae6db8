package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"OpenFarm-Chain/internal/account"
	xerrors "OpenFarm-Chain/internal/errors"
	"OpenFarm-Chain/internal/quest"
)

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type stubQuest struct {
	nonce      string
	nonceErr   error
	session    *quest.Session
	loginErr   error
	inviterErr error

	nonceCalls   int
	loginCalls   int
	inviterCalls int
	seenSig      string
}

func (s *stubQuest) Nonce(ctx context.Context, address string) (string, error) {
	s.nonceCalls++
	return s.nonce, s.nonceErr
}

func (s *stubQuest) Login(ctx context.Context, address, signature, nonce string) (*quest.Session, error) {
	s.loginCalls++
	s.seenSig = signature
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return s.session, nil
}

func (s *stubQuest) RegisterInviter(ctx context.Context, token string) error {
	s.inviterCalls++
	return s.inviterErr
}

func testAccount(t *testing.T) *account.Account {
	t.Helper()
	reg, err := account.NewRegistry([]string{testKey}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	acct, _ := reg.At(0)
	return acct
}

func TestAcquireSuccess(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	client := &stubQuest{
		nonce:   "challenge-1",
		session: &quest.Session{Token: "tok-1", ExpiresAt: expires},
	}
	manager := NewManager(client, nil)
	acct := testAccount(t)

	token, err := manager.Acquire(context.Background(), acct)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.Token != "tok-1" || !token.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected token: %+v", token)
	}
	if token.Address != acct.Address() {
		t.Fatalf("token must carry the derived address, got %s", token.Address)
	}
	if client.seenSig == "" {
		t.Fatal("login must receive the nonce signature")
	}
	if client.inviterCalls != 1 {
		t.Fatal("inviter registration must be attempted")
	}
}

func TestAcquireInviterFailureIsSwallowed(t *testing.T) {
	client := &stubQuest{
		nonce:      "challenge-1",
		session:    &quest.Session{Token: "tok-1", ExpiresAt: time.Now().Add(time.Hour)},
		inviterErr: errors.New("already registered"),
	}
	manager := NewManager(client, nil)

	if _, err := manager.Acquire(context.Background(), testAccount(t)); err != nil {
		t.Fatalf("inviter failure must not fail acquisition: %v", err)
	}
}

func TestAcquireNonceFailure(t *testing.T) {
	client := &stubQuest{nonceErr: errors.New("no data")}
	manager := NewManager(client, nil)

	_, err := manager.Acquire(context.Background(), testAccount(t))
	if xerrors.CodeOf(err) != xerrors.CodeAuthFailure {
		t.Fatalf("expected AUTH_FAILURE, got %v", err)
	}
	if client.loginCalls != 0 {
		t.Fatal("login must not be attempted without a nonce")
	}
}

func TestAcquireLoginFailure(t *testing.T) {
	client := &stubQuest{nonce: "challenge-1", loginErr: errors.New("missing token")}
	manager := NewManager(client, nil)

	_, err := manager.Acquire(context.Background(), testAccount(t))
	if xerrors.CodeOf(err) != xerrors.CodeAuthFailure {
		t.Fatalf("expected AUTH_FAILURE, got %v", err)
	}
}

func TestTokenValidity(t *testing.T) {
	now := time.Now()
	token := &Token{Token: "tok", ExpiresAt: now.Add(time.Minute)}
	if !token.Valid(now) {
		t.Fatal("token expiring in the future must be valid")
	}
	// now >= ExpiresAt 即过期。
	if token.Valid(now.Add(time.Minute)) {
		t.Fatal("token at expiry instant must be invalid")
	}
	if (&Token{}).Valid(now) {
		t.Fatal("empty token must be invalid")
	}
	var nilToken *Token
	if nilToken.Valid(now) {
		t.Fatal("nil token must be invalid")
	}
}

type stubCache struct {
	stored map[string]*Token
}

func (c *stubCache) Load(ctx context.Context, address string) (*Token, error) {
	return c.stored[address], nil
}

func (c *stubCache) Save(ctx context.Context, token *Token) error {
	if c.stored == nil {
		c.stored = map[string]*Token{}
	}
	c.stored[token.Address] = token
	return nil
}

func TestRestoreReturnsOnlyValidTokens(t *testing.T) {
	acct := testAccount(t)
	cache := &stubCache{stored: map[string]*Token{
		acct.Address(): {Token: "tok", Address: acct.Address(), ExpiresAt: time.Now().Add(time.Hour)},
	}}
	manager := NewManager(&stubQuest{}, cache)

	if token := manager.Restore(context.Background(), acct); token == nil {
		t.Fatal("expected cached token")
	}

	cache.stored[acct.Address()].ExpiresAt = time.Now().Add(-time.Minute)
	if token := manager.Restore(context.Background(), acct); token != nil {
		t.Fatal("expired cached token must be discarded")
	}
}

func TestAcquireStoresTokenInCache(t *testing.T) {
	acct := testAccount(t)
	cache := &stubCache{}
	client := &stubQuest{
		nonce:   "challenge-1",
		session: &quest.Session{Token: "tok-1", ExpiresAt: time.Now().Add(time.Hour)},
	}
	manager := NewManager(client, cache)

	if _, err := manager.Acquire(context.Background(), acct); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.stored[acct.Address()] == nil {
		t.Fatal("token must be written to the cache")
	}
}
