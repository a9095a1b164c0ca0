package main

import (
	"path/filepath"

	"github.com/odvcencio/codecanvas/pkg/api"
	"github.com/odvcencio/codecanvas/pkg/catalog"
	"github.com/odvcencio/codecanvas/pkg/config"
	"github.com/odvcencio/codecanvas/pkg/identity"
	"github.com/odvcencio/codecanvas/pkg/logging"
	"github.com/odvcencio/codecanvas/pkg/storage"
	"github.com/odvcencio/codecanvas/pkg/workspace"
)

// app assembles the client's service graph. Construction order matters:
// the api client reads the credential back through the identity context.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	store    *storage.Store
	idctx    *identity.Context
	client   *api.Client
	projects *catalog.Directory
	files    *workspace.Collection
}

func newApp(path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(filepath.Join(cfg.StateDir, "logs"))
	if err != nil {
		return nil, err
	}
	logger.SetMinLevel(logging.Level(cfg.Logging.Level))

	store, err := storage.New(filepath.Join(cfg.StateDir, "canvas.db"))
	if err != nil {
		logger.Close()
		return nil, err
	}

	idctx := identity.New(store, logger)
	client := api.New(cfg.Server.URL, idctx, api.WithTimeout(cfg.Server.RequestTimeout))
	idctx.UseAPI(client)
	if err := idctx.Load(); err != nil {
		logger.Error(logging.CategoryAuth, "credential_load_failed", err.Error(), nil)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		idctx:    idctx,
		client:   client,
		projects: catalog.New(client, idctx, logger),
		files: workspace.New(client, logger,
			workspace.WithSaveDebounce(cfg.Workspace.SaveDebounce)),
	}, nil
}

func (a *app) Close() {
	a.files.Wait()
	a.projects.Wait()
	a.store.Close()
	a.logger.Close()
}

// restoreActiveProject re-selects the project remembered from the last run,
// if it still exists in the fetched catalog.
func (a *app) restoreActiveProject() {
	id, err := a.store.LoadActiveProject()
	if err != nil || id == "" {
		return
	}
	if err := a.projects.SetActive(id); err != nil {
		// Deleted or owned by someone else now; fall back silently.
		a.store.SaveActiveProject("")
	}
}

// rememberActiveProject persists the active project for the next run.
func (a *app) rememberActiveProject() {
	if err := a.store.SaveActiveProject(a.projects.ActiveProjectID()); err != nil {
		a.logger.Error(logging.CategoryCatalog, "active_project_persist_failed", err.Error(), nil)
	}
}
