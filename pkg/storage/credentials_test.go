package storage

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadCredential(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveCredential(Credential{
		PrincipalID: "u-1",
		Email:       "dev@example.com",
		DisplayName: "Dev",
		AccessToken: "tok-abc",
	}); err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}

	cred, err := s.LoadCredential()
	if err != nil {
		t.Fatalf("LoadCredential: %v", err)
	}
	if cred == nil {
		t.Fatal("LoadCredential returned nil after save")
	}
	if cred.PrincipalID != "u-1" || cred.Email != "dev@example.com" || cred.AccessToken != "tok-abc" {
		t.Errorf("loaded credential = %+v", cred)
	}
	if cred.SavedAt.IsZero() {
		t.Error("SavedAt should be stamped")
	}
}

func TestSaveCredential_Upserts(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveCredential(Credential{PrincipalID: "u-1", Email: "a@x.com", AccessToken: "t1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveCredential(Credential{PrincipalID: "u-2", Email: "b@x.com", AccessToken: "t2"}); err != nil {
		t.Fatal(err)
	}

	cred, err := s.LoadCredential()
	if err != nil {
		t.Fatal(err)
	}
	if cred.PrincipalID != "u-2" || cred.AccessToken != "t2" {
		t.Errorf("second save should replace the row, got %+v", cred)
	}
}

func TestLoadCredential_EmptyStore(t *testing.T) {
	s := newTestStore(t)

	cred, err := s.LoadCredential()
	if err != nil {
		t.Fatalf("LoadCredential: %v", err)
	}
	if cred != nil {
		t.Errorf("expected nil credential, got %+v", cred)
	}
}

func TestClearCredential(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveCredential(Credential{PrincipalID: "u-1", Email: "a@x.com", AccessToken: "t1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearCredential(); err != nil {
		t.Fatalf("ClearCredential: %v", err)
	}

	cred, err := s.LoadCredential()
	if err != nil {
		t.Fatal(err)
	}
	if cred != nil {
		t.Errorf("credential should be gone after clear, got %+v", cred)
	}
}

func TestActiveProjectRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if got, err := s.LoadActiveProject(); err != nil || got != "" {
		t.Fatalf("LoadActiveProject on empty store = %q, %v", got, err)
	}

	if err := s.SaveActiveProject("p-7"); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.LoadActiveProject(); got != "p-7" {
		t.Errorf("LoadActiveProject = %q, want p-7", got)
	}

	if err := s.SaveActiveProject(""); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.LoadActiveProject(); got != "" {
		t.Errorf("empty save should clear the slot, got %q", got)
	}
}

func TestNew_PrivateFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions only")
	}

	path := filepath.Join(t.TempDir(), "state.db")
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("database file mode = %o, want 600", perm)
	}
}

func TestClosedStoreGuards(t *testing.T) {
	var s *Store
	if err := s.SaveCredential(Credential{}); err != ErrStoreClosed {
		t.Errorf("nil store SaveCredential = %v, want ErrStoreClosed", err)
	}
	if _, err := s.LoadCredential(); err != ErrStoreClosed {
		t.Errorf("nil store LoadCredential = %v, want ErrStoreClosed", err)
	}
}
