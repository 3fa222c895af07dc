package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gigwallet/backend/internal/ledger"
	"github.com/gigwallet/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *ledger.Service) {
	t.Helper()
	l := ledger.NewService(memory.New())
	return NewService(NewMemoryRepository(l), "test-secret"), l
}

// ---- Service ----

func TestRegisterLoginValidate(t *testing.T) {
	svc, l := newTestService(t)
	ctx := context.Background()

	acc, token, err := svc.Register(ctx, " Worker@Example.com ", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := l.Balance(ctx, acc.ID); err != nil {
		t.Fatalf("registered account has no wallet: %v", err)
	}
	id, err := svc.ValidateToken(ctx, token)
	if err != nil || id != acc.ID {
		t.Fatalf("ValidateToken = %s, %v; want %s", id, err, acc.ID)
	}

	id, _, err = svc.Login(ctx, "worker@example.com", "hunter2hunter2")
	if err != nil || id != acc.ID {
		t.Fatalf("Login = %s, %v", id, err)
	}
	if _, _, err := svc.Login(ctx, "worker@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "hunter2hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: err = %v", err)
	}
	if _, _, err := svc.Register(ctx, "worker@example.com", "another-password"); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("duplicate: err = %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	if _, _, err := svc.Register(context.Background(), "not-an-email", "hunter2hunter2"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad email: err = %v", err)
	}
	if _, _, err := svc.Register(context.Background(), "a@b.co", "short"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("short password: err = %v", err)
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, token, err := svc.Register(ctx, "a@b.co", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	other := NewService(NewMemoryRepository(ledger.NewService(memory.New())), "other-secret")
	if _, err := other.ValidateToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign secret: err = %v", err)
	}
	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	if _, err := svc.ValidateToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired: err = %v", err)
	}
}

// ---- Handler ----

func TestHandler_RegisterThenLogin(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc, nil)

	body, _ := json.Marshal(CredentialsRequest{Email: "w@example.com", Password: "hunter2hunter2"})
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body)))
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	var resp TokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Token == "" {
		t.Errorf("login response = %+v, %v", resp, err)
	}

	bad, _ := json.Marshal(CredentialsRequest{Email: "w@example.com", Password: "nope-nope-nope"})
	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(bad)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d", rec.Code)
	}
}
