package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/odvcencio/codecanvas/pkg/api"
	canvaserrors "github.com/odvcencio/codecanvas/pkg/errors"
	"github.com/odvcencio/codecanvas/pkg/identity"
)

type fakePrincipal struct {
	principal *identity.Principal
}

func (f *fakePrincipal) CurrentPrincipal() *identity.Principal {
	if f.principal == nil {
		return nil
	}
	out := *f.principal
	return &out
}

type fakeProjectAPI struct {
	listResult   []api.ProjectRecord
	listErr      error
	createResult *api.ProjectRecord
	createErr    error
	deleteErr    error
	deleted      []string
}

func (f *fakeProjectAPI) ListProjects(context.Context) ([]api.ProjectRecord, error) {
	return f.listResult, f.listErr
}

func (f *fakeProjectAPI) CreateProject(_ context.Context, name, description string) (*api.ProjectRecord, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createResult != nil {
		return f.createResult, nil
	}
	return &api.ProjectRecord{ID: "remote-1", Name: name, Description: description}, nil
}

func (f *fakeProjectAPI) GetProject(_ context.Context, id string) (*api.ProjectRecord, error) {
	return &api.ProjectRecord{ID: id}, nil
}

func (f *fakeProjectAPI) DeleteProject(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func newTestDirectory(fakeAPI *fakeProjectAPI) (*Directory, *fakePrincipal) {
	auth := &fakePrincipal{principal: &identity.Principal{ID: "u-1", Email: "dev@example.com"}}
	return New(fakeAPI, auth, nil), auth
}

func TestCreate_LocalFirst(t *testing.T) {
	fakeAPI := &fakeProjectAPI{createResult: &api.ProjectRecord{ID: "remote-9", Name: "demo"}}
	dir, _ := newTestDirectory(fakeAPI)

	project, err := dir.Create(context.Background(), "demo", "desc")
	if err != nil {
		t.Fatal(err)
	}

	// Phase 1 is visible immediately, with a temporary id.
	if !project.IsLocal() {
		t.Errorf("fresh project should carry a temp id, got %q", project.ID)
	}
	if got := dir.Projects(); len(got) != 1 || got[0].Name != "demo" {
		t.Errorf("Projects = %+v", got)
	}
	if dir.ActiveProjectID() != project.ID {
		t.Error("fresh project should become active")
	}

	// Phase 2 swaps the id in place once the backend answers.
	dir.Wait()
	got := dir.Projects()
	if len(got) != 1 || got[0].ID != "remote-9" {
		t.Errorf("after mirror, Projects = %+v", got)
	}
	if dir.ActiveProjectID() != "remote-9" {
		t.Errorf("active id should follow the swap, got %q", dir.ActiveProjectID())
	}
}

func TestCreate_MirrorFailureKeepsLocalState(t *testing.T) {
	fakeAPI := &fakeProjectAPI{createErr: errors.New("backend down")}
	dir, _ := newTestDirectory(fakeAPI)

	project, err := dir.Create(context.Background(), "demo", "")
	if err != nil {
		t.Fatal(err)
	}
	dir.Wait()

	got := dir.Projects()
	if len(got) != 1 {
		t.Fatalf("project should survive mirror failure, got %+v", got)
	}
	if got[0].ID != project.ID {
		t.Errorf("temp id should be unchanged, got %q want %q", got[0].ID, project.ID)
	}
}

func TestCreate_Unauthorized(t *testing.T) {
	dir, auth := newTestDirectory(&fakeProjectAPI{})
	auth.principal = nil

	_, err := dir.Create(context.Background(), "demo", "")
	if !canvaserrors.IsCode(err, canvaserrors.ErrCodeUnauthorized) {
		t.Errorf("err = %v, want UNAUTHORIZED", err)
	}
}

func TestFetch_ReplacesCollection(t *testing.T) {
	fakeAPI := &fakeProjectAPI{listResult: []api.ProjectRecord{
		{ID: "p-1", Name: "one", CreatedAt: "2024-03-01T10:00:00Z"},
		{ID: "p-2", Name: "two"},
	}}
	dir, _ := newTestDirectory(fakeAPI)

	// Seed something that the fetch must replace.
	if _, err := dir.Create(context.Background(), "stale", ""); err != nil {
		t.Fatal(err)
	}
	dir.Wait()

	if err := dir.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := dir.Projects()
	if len(got) != 2 || got[0].ID != "p-1" || got[1].ID != "p-2" {
		t.Errorf("Projects = %+v", got)
	}
	if got[0].OwnerID != "u-1" {
		t.Errorf("fetched projects should be stamped with the principal, got %q", got[0].OwnerID)
	}
	if got[0].CreatedAt != time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) {
		t.Errorf("CreatedAt = %v", got[0].CreatedAt)
	}
	if got[0].MaxRuntimeSeconds != DefaultMaxRuntimeSeconds {
		t.Errorf("MaxRuntimeSeconds = %d", got[0].MaxRuntimeSeconds)
	}
}

func TestFetch_SkippedWhenUnauthenticated(t *testing.T) {
	fakeAPI := &fakeProjectAPI{listErr: errors.New("should not be called")}
	dir, auth := newTestDirectory(fakeAPI)
	auth.principal = nil

	if err := dir.Fetch(context.Background()); err != nil {
		t.Errorf("fetch without principal should be a silent no-op, got %v", err)
	}
}

func TestDelete_SelectsFirstRemainingAsActive(t *testing.T) {
	fakeAPI := &fakeProjectAPI{listResult: []api.ProjectRecord{
		{ID: "p-1"}, {ID: "p-2"}, {ID: "p-3"},
	}}
	dir, _ := newTestDirectory(fakeAPI)
	if err := dir.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := dir.SetActive("p-2"); err != nil {
		t.Fatal(err)
	}

	if err := dir.Delete(context.Background(), "p-2"); err != nil {
		t.Fatal(err)
	}
	dir.Wait()

	if got := dir.ActiveProjectID(); got != "p-1" {
		t.Errorf("active = %q, want first remaining p-1", got)
	}
	if len(fakeAPI.deleted) != 1 || fakeAPI.deleted[0] != "p-2" {
		t.Errorf("remote deletes = %v", fakeAPI.deleted)
	}
}

func TestDelete_LastProjectClearsActive(t *testing.T) {
	fakeAPI := &fakeProjectAPI{listResult: []api.ProjectRecord{{ID: "p-1"}}}
	dir, _ := newTestDirectory(fakeAPI)
	if err := dir.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := dir.SetActive("p-1"); err != nil {
		t.Fatal(err)
	}

	if err := dir.Delete(context.Background(), "p-1"); err != nil {
		t.Fatal(err)
	}
	dir.Wait()

	if got := dir.ActiveProjectID(); got != "" {
		t.Errorf("active = %q, want empty", got)
	}
}

func TestDelete_LocalOnlyProjectSkipsRemote(t *testing.T) {
	fakeAPI := &fakeProjectAPI{createErr: errors.New("backend down")}
	dir, _ := newTestDirectory(fakeAPI)

	project, err := dir.Create(context.Background(), "demo", "")
	if err != nil {
		t.Fatal(err)
	}
	dir.Wait()

	if err := dir.Delete(context.Background(), project.ID); err != nil {
		t.Fatal(err)
	}
	dir.Wait()

	if len(fakeAPI.deleted) != 0 {
		t.Errorf("local-only project should not hit the remote catalog, deletes = %v", fakeAPI.deleted)
	}
}

func TestOwnershipFiltering(t *testing.T) {
	fakeAPI := &fakeProjectAPI{listResult: []api.ProjectRecord{{ID: "p-1", Name: "mine"}}}
	dir, auth := newTestDirectory(fakeAPI)
	if err := dir.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A different principal sees nothing, even though rows coexist locally.
	auth.principal = &identity.Principal{ID: "u-2"}

	if got := dir.Projects(); len(got) != 0 {
		t.Errorf("cross-principal read returned %+v", got)
	}
	if _, err := dir.Get("p-1"); !canvaserrors.IsCode(err, canvaserrors.ErrCodeEntityNotFound) {
		t.Errorf("Get across principals = %v, want ENTITY_NOT_FOUND", err)
	}
}

func TestUpdate_TouchesUpdatedAt(t *testing.T) {
	fakeAPI := &fakeProjectAPI{listResult: []api.ProjectRecord{{ID: "p-1", Name: "old"}}}
	dir, _ := newTestDirectory(fakeAPI)
	if err := dir.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}

	before, _ := dir.Get("p-1")
	if err := dir.Update("p-1", func(p *Project) { p.Name = "new" }); err != nil {
		t.Fatal(err)
	}

	after, _ := dir.Get("p-1")
	if after.Name != "new" {
		t.Errorf("Name = %q", after.Name)
	}
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Error("UpdatedAt should move forward")
	}
}

func TestGet_NotFound(t *testing.T) {
	dir, _ := newTestDirectory(&fakeProjectAPI{})

	_, err := dir.Get("missing")
	if !canvaserrors.IsCode(err, canvaserrors.ErrCodeEntityNotFound) {
		t.Errorf("err = %v, want ENTITY_NOT_FOUND", err)
	}
}
