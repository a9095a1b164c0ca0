// Package catalog is the project directory: the set of projects owned by the
// current principal, with local-first mutation against the remote catalog.
// Every mutating operation applies to in-memory state synchronously before
// any remote call is issued; the remote mirror is best-effort and a mirror
// failure never rolls the local state back.
package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/codecanvas/pkg/api"
	canvaserrors "github.com/odvcencio/codecanvas/pkg/errors"
	"github.com/odvcencio/codecanvas/pkg/identity"
	"github.com/odvcencio/codecanvas/pkg/logging"
	"github.com/odvcencio/codecanvas/pkg/metrics"
)

// DefaultMaxRuntimeSeconds caps command execution per project unless the
// backend says otherwise.
const DefaultMaxRuntimeSeconds = 10

// tempIDPrefix marks locally assigned identifiers awaiting the
// backend-assigned replacement.
const tempIDPrefix = "local-"

// Project is a locally held project record.
type Project struct {
	ID                string
	Name              string
	Description       string
	OwnerID           string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	MaxRuntimeSeconds int
}

// IsLocal reports whether the project still carries a temporary local id.
func (p Project) IsLocal() bool {
	return strings.HasPrefix(p.ID, tempIDPrefix)
}

// ProjectAPI is the slice of the backend client the directory mirrors
// through.
type ProjectAPI interface {
	ListProjects(ctx context.Context) ([]api.ProjectRecord, error)
	CreateProject(ctx context.Context, name, description string) (*api.ProjectRecord, error)
	GetProject(ctx context.Context, projectID string) (*api.ProjectRecord, error)
	DeleteProject(ctx context.Context, projectID string) error
}

// PrincipalSource supplies the current principal for ownership filtering.
type PrincipalSource interface {
	CurrentPrincipal() *identity.Principal
}

// Directory holds the principal's projects and the active-project concept.
type Directory struct {
	mu       sync.Mutex
	projects []Project
	activeID string

	api     ProjectAPI
	auth    PrincipalSource
	logger  *logging.Logger
	pending sync.WaitGroup
}

// New constructs a project directory.
func New(apiClient ProjectAPI, auth PrincipalSource, logger *logging.Logger) *Directory {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Directory{
		api:    apiClient,
		auth:   auth,
		logger: logger,
	}
}

// Fetch replaces the local collection with the remote catalog's view.
// Skipped silently when no principal is signed in.
func (d *Directory) Fetch(ctx context.Context) error {
	principal := d.auth.CurrentPrincipal()
	if principal == nil {
		return nil
	}

	records, err := d.api.ListProjects(ctx)
	if err != nil {
		d.reportMirrorFailure("fetch", err)
		return err
	}

	projects := make([]Project, 0, len(records))
	for _, rec := range records {
		projects = append(projects, projectFromRecord(rec, principal.ID))
	}

	d.mu.Lock()
	d.projects = projects
	if d.activeID != "" && d.findIndexLocked(d.activeID) < 0 {
		d.activeID = ""
	}
	d.mu.Unlock()
	return nil
}

// Create inserts a project locally with a temporary id and mirrors the
// create remotely. The local entry is visible immediately; once the backend
// assigns an id the temporary one is swapped in place, preserving position
// and active status.
func (d *Directory) Create(ctx context.Context, name, description string) (*Project, error) {
	principal := d.auth.CurrentPrincipal()
	if principal == nil {
		return nil, canvaserrors.New(canvaserrors.ErrCodeUnauthorized, "no authenticated principal")
	}

	now := time.Now()
	project := Project{
		ID:                tempIDPrefix + strings.ToLower(ulid.Make().String()),
		Name:              name,
		Description:       description,
		OwnerID:           principal.ID,
		CreatedAt:         now,
		UpdatedAt:         now,
		MaxRuntimeSeconds: DefaultMaxRuntimeSeconds,
	}

	d.mu.Lock()
	d.projects = append(d.projects, project)
	d.activeID = project.ID
	d.mu.Unlock()

	tempID := project.ID
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()

		rec, err := d.api.CreateProject(ctx, name, description)
		if err != nil {
			// Local state stays authoritative; the failure only gets logged.
			d.reportMirrorFailure("create", err)
			return
		}
		d.adoptRemoteID(tempID, rec)
	}()

	out := project
	return &out, nil
}

// adoptRemoteID swaps a temporary id for the backend-assigned one, in place.
// A late arrival for a project deleted meanwhile is a no-op.
func (d *Directory) adoptRemoteID(tempID string, rec *api.ProjectRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.findIndexLocked(tempID)
	if idx < 0 {
		return
	}
	d.projects[idx].ID = rec.ID
	if created := parseTime(rec.CreatedAt); !created.IsZero() {
		d.projects[idx].CreatedAt = created
	}
	if updated := parseTime(rec.UpdatedAt); !updated.IsZero() {
		d.projects[idx].UpdatedAt = updated
	}
	if d.activeID == tempID {
		d.activeID = rec.ID
	}
}

// Update applies field changes locally. The remote catalog has no project
// update call, so this mutation is local-only.
func (d *Directory) Update(id string, mutate func(*Project)) error {
	principal := d.auth.CurrentPrincipal()
	if principal == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.findIndexLocked(id)
	if idx < 0 || d.projects[idx].OwnerID != principal.ID {
		return canvaserrors.New(canvaserrors.ErrCodeEntityNotFound, "project not found").WithContext("project_id", id)
	}
	mutate(&d.projects[idx])
	d.projects[idx].UpdatedAt = time.Now()
	return nil
}

// Delete removes the project locally right away and mirrors the delete
// remotely. Deleting the active project selects the first remaining project
// as the new active one.
func (d *Directory) Delete(ctx context.Context, id string) error {
	principal := d.auth.CurrentPrincipal()
	if principal == nil {
		return canvaserrors.New(canvaserrors.ErrCodeUnauthorized, "no authenticated principal")
	}

	d.mu.Lock()
	idx := d.findIndexLocked(id)
	if idx < 0 || d.projects[idx].OwnerID != principal.ID {
		d.mu.Unlock()
		return canvaserrors.New(canvaserrors.ErrCodeEntityNotFound, "project not found").WithContext("project_id", id)
	}
	wasLocal := d.projects[idx].IsLocal()
	d.projects = append(d.projects[:idx], d.projects[idx+1:]...)
	if d.activeID == id {
		if len(d.projects) > 0 {
			d.activeID = d.projects[0].ID
		} else {
			d.activeID = ""
		}
	}
	d.mu.Unlock()

	// A project that never reached the backend has nothing to delete there.
	if wasLocal {
		return nil
	}

	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		if err := d.api.DeleteProject(ctx, id); err != nil {
			d.reportMirrorFailure("delete", err)
		}
	}()
	return nil
}

// Projects returns the principal's projects in collection order.
func (d *Directory) Projects() []Project {
	principal := d.auth.CurrentPrincipal()
	if principal == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Project, 0, len(d.projects))
	for _, p := range d.projects {
		if p.OwnerID == principal.ID {
			out = append(out, p)
		}
	}
	return out
}

// Get returns one project by id, ownership-filtered.
func (d *Directory) Get(id string) (*Project, error) {
	principal := d.auth.CurrentPrincipal()
	if principal == nil {
		return nil, canvaserrors.New(canvaserrors.ErrCodeUnauthorized, "no authenticated principal")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.findIndexLocked(id)
	if idx < 0 || d.projects[idx].OwnerID != principal.ID {
		return nil, canvaserrors.New(canvaserrors.ErrCodeEntityNotFound, "project not found").WithContext("project_id", id)
	}
	out := d.projects[idx]
	return &out, nil
}

// SetActive marks a project as the active one.
func (d *Directory) SetActive(id string) error {
	if _, err := d.Get(id); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.activeID = id
	return nil
}

// ActiveProjectID returns the active project's id, or empty. Implements the
// session manager's scope provider.
func (d *Directory) ActiveProjectID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeID
}

// Active returns the active project, or nil.
func (d *Directory) Active() *Project {
	d.mu.Lock()
	id := d.activeID
	d.mu.Unlock()

	if id == "" {
		return nil
	}
	p, err := d.Get(id)
	if err != nil {
		return nil
	}
	return p
}

// Wait blocks until all in-flight remote mirrors have settled.
func (d *Directory) Wait() {
	d.pending.Wait()
}

func (d *Directory) findIndexLocked(id string) int {
	for i, p := range d.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (d *Directory) reportMirrorFailure(operation string, err error) {
	metrics.RemoteMutationFailures.WithLabelValues("catalog", operation).Inc()
	d.logger.Error(logging.CategoryCatalog, "mirror_failed", err.Error(), map[string]any{
		"operation": operation,
	})
}

func projectFromRecord(rec api.ProjectRecord, ownerID string) Project {
	return Project{
		ID:                rec.ID,
		Name:              rec.Name,
		Description:       rec.Description,
		OwnerID:           ownerID,
		CreatedAt:         parseTime(rec.CreatedAt),
		UpdatedAt:         parseTime(rec.UpdatedAt),
		MaxRuntimeSeconds: DefaultMaxRuntimeSeconds,
	}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
