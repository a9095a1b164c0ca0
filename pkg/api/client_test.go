package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	canvaserrors "github.com/odvcencio/codecanvas/pkg/errors"
)

type staticCreds string

func (s staticCreds) Credential() string { return string(s) }

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("email") != "dev@example.com" {
			t.Errorf("email query = %q", r.URL.Query().Get("email"))
		}
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "tok-1", TokenType: "bearer"})
	}))
	defer srv.Close()

	client := New(srv.URL, staticCreds(""))
	tok, err := client.Login(context.Background(), "dev@example.com", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken != "tok-1" {
		t.Errorf("AccessToken = %q", tok.AccessToken)
	}
}

func TestMe_SendsBearerHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-xyz" {
			t.Errorf("Authorization = %q, want Bearer tok-xyz", got)
		}
		json.NewEncoder(w).Encode(UserRecord{ID: "u-1", Email: "dev@example.com", Name: "Dev"})
	}))
	defer srv.Close()

	client := New(srv.URL, staticCreds("tok-xyz"))
	user, err := client.Me(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if user.ID != "u-1" {
		t.Errorf("user = %+v", user)
	}
}

func TestCreateProject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/projects" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req CreateProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Name != "demo" || req.Description != "a demo" {
			t.Errorf("body = %+v", req)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(ProjectRecord{ID: "p-1", Name: req.Name, Description: req.Description})
	}))
	defer srv.Close()

	client := New(srv.URL, staticCreds("t"))
	project, err := client.CreateProject(context.Background(), "demo", "a demo")
	if err != nil {
		t.Fatal(err)
	}
	if project.ID != "p-1" {
		t.Errorf("project = %+v", project)
	}
}

func TestFileOperations(t *testing.T) {
	var gotContent, gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/files/f-1/content":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			gotContent = body["content"]
			json.NewEncoder(w).Encode(FileRecord{ID: "f-1"})
		case r.Method == http.MethodPut && r.URL.Path == "/files/f-1/rename":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			gotName = body["name"]
			json.NewEncoder(w).Encode(FileRecord{ID: "f-1"})
		case r.Method == http.MethodDelete && r.URL.Path == "/files/f-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	client := New(srv.URL, staticCreds("t"))
	ctx := context.Background()

	if err := client.UpdateFileContent(ctx, "f-1", "print('hi')"); err != nil {
		t.Fatal(err)
	}
	if gotContent != "print('hi')" {
		t.Errorf("content = %q", gotContent)
	}

	if err := client.RenameFile(ctx, "f-1", "app.py"); err != nil {
		t.Fatal(err)
	}
	if gotName != "app.py" {
		t.Errorf("name = %q", gotName)
	}

	if err := client.DeleteFile(ctx, "f-1"); err != nil {
		t.Fatal(err)
	}
}

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		detail   string
		wantCode canvaserrors.ErrorCode
	}{
		{"unauthorized", http.StatusUnauthorized, "Not authenticated", canvaserrors.ErrCodeUnauthorized},
		{"forbidden", http.StatusForbidden, "", canvaserrors.ErrCodeUnauthorized},
		{"not found", http.StatusNotFound, "Project not found", canvaserrors.ErrCodeEntityNotFound},
		{"server error", http.StatusInternalServerError, "", canvaserrors.ErrCodeRemoteMutationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]string{"detail": tt.detail})
			}))
			defer srv.Close()

			client := New(srv.URL, staticCreds("t"))
			_, err := client.ListProjects(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if !canvaserrors.IsCode(err, tt.wantCode) {
				t.Errorf("error code = %v, want %v (err: %v)", canvaserrors.GetCode(err), tt.wantCode, err)
			}
		})
	}
}

func TestTransportErrorMapping(t *testing.T) {
	// A closed server produces a transport-level failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := New(srv.URL, staticCreds("t"))
	_, err := client.ListProjects(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !canvaserrors.IsCode(err, canvaserrors.ErrCodeRemoteMutationFailed) {
		t.Errorf("error code = %v, want REMOTE_MUTATION_FAILED", canvaserrors.GetCode(err))
	}
}
