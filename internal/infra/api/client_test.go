package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/poupafin/poupafin-go/internal/domain"
	"github.com/poupafin/poupafin-go/internal/infra/api"
	"github.com/poupafin/poupafin-go/internal/infra/credstore"

	"go.uber.org/zap"
)

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	creds := credstore.NewMemStore()
	_ = creds.Save(domain.Credentials{AuthToken: "T"})

	c := api.NewClient(server.Client(), server.URL, creds, zap.NewNop())
	if err := c.Get(context.Background(), "/metas", nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotAuth != "Bearer T" {
		t.Errorf("expected 'Bearer T', got '%s'", gotAuth)
	}
}

func TestClient_NoAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := api.NewClient(server.Client(), server.URL, credstore.NewMemStore(), zap.NewNop())
	if err := c.Get(context.Background(), "/metas", nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotAuth != "" {
		t.Errorf("expected no Authorization header, got '%s'", gotAuth)
	}
}

func TestClient_SetsRequestID(t *testing.T) {
	var gotID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Request-ID")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := api.NewClient(server.Client(), server.URL, credstore.NewMemStore(), zap.NewNop())
	_ = c.Get(context.Background(), "/metas", nil)
	if gotID == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestClient_ParsesJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"valor_alvo deve ser positivo"}`))
	}))
	defer server.Close()

	c := api.NewClient(server.Client(), server.URL, credstore.NewMemStore(), zap.NewNop())
	err := c.Post(context.Background(), "/metas", map[string]any{}, nil)

	var apiErr *domain.ErrAPIStatus
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected ErrAPIStatus, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", apiErr.Status)
	}
	if apiErr.Message != "valor_alvo deve ser positivo" {
		t.Errorf("unexpected message: %s", apiErr.Message)
	}
}

func TestClient_FallsBackToStatusText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	c := api.NewClient(server.Client(), server.URL, credstore.NewMemStore(), zap.NewNop())
	err := c.Get(context.Background(), "/metas", nil)

	var apiErr *domain.ErrAPIStatus
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected ErrAPIStatus, got %v", err)
	}
	if apiErr.Message != http.StatusText(http.StatusInternalServerError) {
		t.Errorf("expected status text fallback, got '%s'", apiErr.Message)
	}
}

func TestClient_UnauthorizedClearsCredentialsAndRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	creds := credstore.NewMemStore()
	_ = creds.Save(domain.Credentials{AuthToken: "T", UserID: 42, SessionID: 7})

	var navigated bool
	c := api.NewClient(server.Client(), server.URL, creds, zap.NewNop(),
		api.WithUnauthorizedHook(func() { navigated = true }),
	)

	err := c.Get(context.Background(), "/metas", nil)
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if creds.Token() != "" || creds.UserID() != 0 || creds.SessionID() != 0 {
		t.Error("expected all credentials to be cleared after 401")
	}
	if !navigated {
		t.Error("expected unauthorized hook to fire")
	}
}

func TestClient_UnauthorizedOnMutationPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	creds := credstore.NewMemStore()
	_ = creds.Save(domain.Credentials{AuthToken: "T"})

	var navigated bool
	c := api.NewClient(server.Client(), server.URL, creds, zap.NewNop(),
		api.WithUnauthorizedHook(func() { navigated = true }),
	)

	err := c.Patch(context.Background(), "/pessoas/42", map[string]any{"nome": "x"}, nil)
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if creds.Token() != "" {
		t.Error("expected token cleared after 401 on mutation")
	}
	if !navigated {
		t.Error("expected unauthorized hook to fire on mutation")
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := api.NewClient(server.Client(), server.URL, credstore.NewMemStore(), zap.NewNop())
	err := c.Get(context.Background(), "/metas", nil, api.WithRequestTimeout(20*time.Millisecond))

	var timeoutErr *domain.ErrTimeout
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestClient_DecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id_sessao":7,"fk_pessoa_id_pessoa":42,"token":"T"}`))
	}))
	defer server.Close()

	c := api.NewClient(server.Client(), server.URL, credstore.NewMemStore(), zap.NewNop())

	var sessao domain.Sessao
	if err := c.Get(context.Background(), "/sessoes/validar", &sessao); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sessao.ID != 7 || sessao.PessoaID != 42 || sessao.Token != "T" {
		t.Errorf("unexpected decode: %+v", sessao)
	}
}
