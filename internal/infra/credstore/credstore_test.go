package credstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poupafin/poupafin-go/internal/domain"
	"github.com/poupafin/poupafin-go/internal/infra/credstore"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	s, err := credstore.NewFileStore(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if s.Token() != "" {
		t.Fatal("expected empty token before save")
	}

	creds := domain.Credentials{AuthToken: "T", UserID: 42, SessionID: 7}
	if err := s.Save(creds); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// A new store over the same file sees the saved values.
	reloaded, err := credstore.NewFileStore(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Token() != "T" {
		t.Errorf("expected token 'T', got '%s'", reloaded.Token())
	}
	if reloaded.UserID() != 42 {
		t.Errorf("expected user id 42, got %d", reloaded.UserID())
	}
	if reloaded.SessionID() != 7 {
		t.Errorf("expected session id 7, got %d", reloaded.SessionID())
	}
}

func TestFileStore_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	s, _ := credstore.NewFileStore(path)
	if err := s.Save(domain.Credentials{AuthToken: "secret"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected file mode 0600, got %o", perm)
	}
}

func TestFileStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	s, _ := credstore.NewFileStore(path)
	_ = s.Save(domain.Credentials{AuthToken: "T", UserID: 1, SessionID: 2})

	s.Clear()

	if s.Token() != "" || s.UserID() != 0 || s.SessionID() != 0 {
		t.Fatal("expected cleared store to be empty")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected credentials file to be removed")
	}
}

func TestFileStore_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := credstore.NewFileStore(path)
	if err != nil {
		t.Fatalf("expected no error for corrupt file, got %v", err)
	}
	if s.Token() != "" {
		t.Fatal("expected empty token for corrupt file")
	}
}
