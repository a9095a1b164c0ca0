package api

// UserRecord mirrors the backend user schema.
type UserRecord struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// TokenResponse is the auth exchange result.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// ProjectRecord mirrors the backend project schema.
type ProjectRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UserID      string `json:"user_id,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// FileRecord mirrors the backend file schema. File identity is scoped under
// its project's remote path; ProjectID is the relation, not an embedding.
type FileRecord struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id,omitempty"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Content     string `json:"content"`
	IsDirectory bool   `json:"is_directory"`
}

// CreateProjectRequest is the POST /projects body.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateFileRequest is the POST /projects/{id}/files body.
type CreateFileRequest struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Content     string `json:"content"`
	IsDirectory bool   `json:"is_directory"`
}

// RegisterRequest is the POST /auth/register body.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}
