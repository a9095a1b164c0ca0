package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odvcencio/codecanvas/pkg/api"
	"github.com/odvcencio/codecanvas/pkg/logging"
)

type contextKey string

const userIDKey contextKey = "user_id"

// authMiddleware resolves the bearer token to a user id.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		userID, err := s.validateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		s.mu.Lock()
		_, exists := s.users[userID]
		s.mu.Unlock()
		if !exists {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func requestUserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeDetail(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	s.mu.Lock()
	if _, taken := s.byEmail[req.Email]; taken {
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	u := &user{
		ID:       newID(),
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	}
	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID
	s.mu.Unlock()

	s.logger.Info(logging.CategoryAuth, "user_registered", "new user", map[string]any{
		"email": u.Email,
	})
	writeJSON(w, http.StatusCreated, api.UserRecord{ID: u.ID, Email: u.Email, Name: u.Name})
}

// handleLogin is the query-parameter login variant the client uses.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.login(w, r.URL.Query().Get("email"), r.URL.Query().Get("password"))
}

// handleTokenForm is the OAuth2 form-style login kept for parity.
func (s *Server) handleTokenForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid form body")
		return
	}
	s.login(w, r.PostFormValue("username"), r.PostFormValue("password"))
}

func (s *Server) login(w http.ResponseWriter, email, password string) {
	s.mu.Lock()
	id, ok := s.byEmail[email]
	var u *user
	if ok {
		u = s.users[id]
	}
	s.mu.Unlock()

	if u == nil || u.Password != password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	token, err := s.issueToken(u.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, api.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := s.users[requestUserID(r)]
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, api.UserRecord{ID: u.ID, Email: u.Email, Name: u.Name})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	s.mu.Lock()
	var out []*project
	for _, p := range s.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	records := make([]api.ProjectRecord, 0, len(out))
	for _, p := range out {
		records = append(records, projectRecord(p))
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req api.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeDetail(w, http.StatusBadRequest, "Name cannot be empty")
		return
	}

	now := time.Now().UTC()
	p := &project{
		ID:          newID(),
		Name:        req.Name,
		Description: req.Description,
		UserID:      requestUserID(r),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.projects[p.ID] = p
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, projectRecord(p))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p := s.ownedProject(r)
	if p == nil {
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, projectRecord(p))
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	p := s.ownedProject(r)
	if p == nil {
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}

	s.mu.Lock()
	delete(s.projects, p.ID)
	for id, f := range s.files {
		if f.ProjectID == p.ID {
			delete(s.files, id)
		}
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	p := s.ownedProject(r)
	if p == nil {
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}

	s.mu.Lock()
	var out []*file
	for _, f := range s.files {
		if f.ProjectID == p.ID {
			out = append(out, f)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	records := make([]api.FileRecord, 0, len(out))
	for _, f := range out {
		records = append(records, fileRecord(f))
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	p := s.ownedProject(r)
	if p == nil {
		writeDetail(w, http.StatusNotFound, "Project not found")
		return
	}

	var req api.CreateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	for _, f := range s.files {
		if f.ProjectID == p.ID && f.Path == req.Path {
			s.mu.Unlock()
			writeDetail(w, http.StatusBadRequest, "File with this path already exists")
			return
		}
	}
	f := &file{
		ID:          newID(),
		ProjectID:   p.ID,
		Name:        req.Name,
		Path:        req.Path,
		Content:     req.Content,
		IsDirectory: req.IsDirectory,
	}
	s.files[f.ID] = f
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, fileRecord(f))
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f := s.ownedFile(r)
	if f == nil {
		writeDetail(w, http.StatusNotFound, "File not found")
		return
	}
	writeJSON(w, http.StatusOK, fileRecord(f))
}

func (s *Server) handleUpdateFileContent(w http.ResponseWriter, r *http.Request) {
	f := s.ownedFile(r)
	if f == nil {
		writeDetail(w, http.StatusNotFound, "File not found")
		return
	}

	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	f.Content = body["content"]
	rec := fileRecord(f)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	f := s.ownedFile(r)
	if f == nil {
		writeDetail(w, http.StatusNotFound, "File not found")
		return
	}

	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	newName := body["name"]
	if newName == "" {
		writeDetail(w, http.StatusBadRequest, "Name cannot be empty")
		return
	}

	s.mu.Lock()
	parts := strings.Split(f.Path, "/")
	parts[len(parts)-1] = newName
	f.Name = newName
	f.Path = strings.Join(parts, "/")
	rec := fileRecord(f)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	f := s.ownedFile(r)
	if f == nil {
		writeDetail(w, http.StatusNotFound, "File not found")
		return
	}

	s.mu.Lock()
	delete(s.files, f.ID)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// ownedProject resolves the {projectID} route param against the caller's
// projects.
func (s *Server) ownedProject(r *http.Request) *project {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.projects[chi.URLParam(r, "projectID")]
	if p == nil || p.UserID != requestUserID(r) {
		return nil
	}
	return p
}

// ownedFile resolves the {fileID} route param and checks the owning
// project belongs to the caller.
func (s *Server) ownedFile(r *http.Request) *file {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.files[chi.URLParam(r, "fileID")]
	if f == nil {
		return nil
	}
	p := s.projects[f.ProjectID]
	if p == nil || p.UserID != requestUserID(r) {
		return nil
	}
	return f
}

func projectRecord(p *project) api.ProjectRecord {
	return api.ProjectRecord{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		UserID:      p.UserID,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
}

func fileRecord(f *file) api.FileRecord {
	return api.FileRecord{
		ID:          f.ID,
		ProjectID:   f.ProjectID,
		Name:        f.Name,
		Path:        f.Path,
		Content:     f.Content,
		IsDirectory: f.IsDirectory,
	}
}
