package storage

import (
	"database/sql"
	"strings"
	"time"
)

// Credential is the persisted identity of the signed-in principal.
type Credential struct {
	PrincipalID string
	Email       string
	DisplayName string
	AccessToken string
	SavedAt     time.Time
}

// SaveCredential upserts the single credential row.
func (s *Store) SaveCredential(cred Credential) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(`
        INSERT INTO credentials (slot, principal_id, email, display_name, access_token, saved_at)
        VALUES (1, ?, ?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT (slot) DO UPDATE SET
            principal_id = excluded.principal_id,
            email = excluded.email,
            display_name = excluded.display_name,
            access_token = excluded.access_token,
            saved_at = CURRENT_TIMESTAMP
    `, strings.TrimSpace(cred.PrincipalID), strings.TrimSpace(cred.Email), cred.DisplayName, cred.AccessToken)
	return err
}

// LoadCredential returns the persisted credential, or nil if nobody is
// signed in.
func (s *Store) LoadCredential() (*Credential, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	row := s.db.QueryRow(`
        SELECT principal_id, email, display_name, access_token, saved_at
        FROM credentials WHERE slot = 1
    `)
	var cred Credential
	if err := row.Scan(&cred.PrincipalID, &cred.Email, &cred.DisplayName, &cred.AccessToken, &cred.SavedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

// ClearCredential removes the persisted credential on logout.
func (s *Store) ClearCredential() error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(`DELETE FROM credentials WHERE slot = 1`)
	return err
}

// SaveActiveProject remembers the project the client last had open.
func (s *Store) SaveActiveProject(projectID string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		_, err := s.db.Exec(`DELETE FROM active_project WHERE slot = 1`)
		return err
	}
	_, err := s.db.Exec(`
        INSERT INTO active_project (slot, project_id, saved_at)
        VALUES (1, ?, CURRENT_TIMESTAMP)
        ON CONFLICT (slot) DO UPDATE SET
            project_id = excluded.project_id,
            saved_at = CURRENT_TIMESTAMP
    `, projectID)
	return err
}

// LoadActiveProject returns the remembered project id, or empty if none.
func (s *Store) LoadActiveProject() (string, error) {
	if s == nil || s.db == nil {
		return "", ErrStoreClosed
	}
	var projectID string
	err := s.db.QueryRow(`SELECT project_id FROM active_project WHERE slot = 1`).Scan(&projectID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return projectID, nil
}
