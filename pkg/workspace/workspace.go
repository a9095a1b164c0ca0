// Package workspace is the file collection for the active project. Mutations
// follow the same local-first shape as the project catalog: in-memory state
// changes synchronously and unconditionally, the remote mirror is issued
// afterward and its failure is logged, never surfaced, never rolled back.
package workspace

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/codecanvas/pkg/api"
	"github.com/odvcencio/codecanvas/pkg/clock"
	canvaserrors "github.com/odvcencio/codecanvas/pkg/errors"
	"github.com/odvcencio/codecanvas/pkg/logging"
	"github.com/odvcencio/codecanvas/pkg/metrics"
)

const tempIDPrefix = "local-"

// DefaultFileName is synthesized when a project opens with no files.
const DefaultFileName = "main.py"

// DefaultFileContent is the sample program a fresh project starts with.
const DefaultFileContent = `# Welcome to CodeCanvas
# Try running this sample code

def greet(name):
    return f"Hello, {name}!"

# Test the function
message = greet("World")
print(message)

# Try more advanced features
for i in range(5):
    print(f"Count: {i}")
`

// File is a locally held source file.
type File struct {
	ID       string
	Name     string
	Language string
	Content  string
}

// IsLocal reports whether the file still carries a temporary local id.
func (f File) IsLocal() bool {
	return strings.HasPrefix(f.ID, tempIDPrefix)
}

// FileAPI is the slice of the backend client the collection mirrors through.
type FileAPI interface {
	ListFiles(ctx context.Context, projectID string) ([]api.FileRecord, error)
	CreateFile(ctx context.Context, projectID string, req api.CreateFileRequest) (*api.FileRecord, error)
	UpdateFileContent(ctx context.Context, fileID, content string) error
	RenameFile(ctx context.Context, fileID, name string) error
	DeleteFile(ctx context.Context, fileID string) error
}

// Collection holds the open file set for one project.
type Collection struct {
	mu        sync.Mutex
	projectID string
	files     []File
	activeID  string
	dirty     map[string]bool
	saveTimer clock.Timer

	api          FileAPI
	logger       *logging.Logger
	clk          clock.Clock
	saveDebounce time.Duration
	pending      sync.WaitGroup
}

// Option configures a Collection.
type Option func(*Collection)

// WithClock overrides the timer source, letting tests drive the debounce.
func WithClock(clk clock.Clock) Option {
	return func(c *Collection) {
		c.clk = clk
	}
}

// WithSaveDebounce sets the background-save quiet period.
func WithSaveDebounce(d time.Duration) Option {
	return func(c *Collection) {
		c.saveDebounce = d
	}
}

// New constructs an empty collection.
func New(apiClient FileAPI, logger *logging.Logger, opts ...Option) *Collection {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	c := &Collection{
		api:          apiClient,
		logger:       logger,
		clk:          clock.New(),
		saveDebounce: 2 * time.Second,
		dirty:        make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadProject replaces the collection with the remote file set for the given
// project. A project must always open with at least one file: when the
// remote store reports none, a default file is synthesized locally without a
// corresponding remote create.
func (c *Collection) LoadProject(ctx context.Context, projectID string) error {
	records, err := c.api.ListFiles(ctx, projectID)
	if err != nil {
		c.reportMirrorFailure("fetch", err)
		records = nil
	}

	files := make([]File, 0, len(records))
	for _, rec := range records {
		if rec.IsDirectory {
			continue
		}
		files = append(files, File{
			ID:       rec.ID,
			Name:     rec.Name,
			Language: LanguageForName(rec.Name),
			Content:  rec.Content,
		})
	}

	if len(files) == 0 {
		files = append(files, File{
			ID:       tempIDPrefix + strings.ToLower(ulid.Make().String()),
			Name:     DefaultFileName,
			Language: LanguageForName(DefaultFileName),
			Content:  DefaultFileContent,
		})
	}

	c.mu.Lock()
	c.projectID = projectID
	c.files = files
	c.activeID = files[0].ID
	c.dirty = make(map[string]bool)
	if c.saveTimer != nil {
		c.saveTimer.Stop()
		c.saveTimer = nil
	}
	c.mu.Unlock()

	if err != nil {
		return err
	}
	return nil
}

// ProjectID returns the project this collection is loaded for.
func (c *Collection) ProjectID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectID
}

// Add inserts a file locally with a temporary id, makes it active, and
// mirrors the create remotely. Once the backend assigns an id, the
// temporary one is swapped in place.
func (c *Collection) Add(ctx context.Context, name, content string) (*File, error) {
	c.mu.Lock()
	if c.projectID == "" {
		c.mu.Unlock()
		return nil, canvaserrors.New(canvaserrors.ErrCodeInvalidInput, "no project loaded")
	}
	projectID := c.projectID
	file := File{
		ID:       tempIDPrefix + strings.ToLower(ulid.Make().String()),
		Name:     name,
		Language: LanguageForName(name),
		Content:  content,
	}
	c.files = append(c.files, file)
	c.activeID = file.ID
	c.mu.Unlock()

	tempID := file.ID
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()

		rec, err := c.api.CreateFile(ctx, projectID, api.CreateFileRequest{
			Name:    name,
			Path:    name,
			Content: content,
		})
		if err != nil {
			c.reportMirrorFailure("create", err)
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		idx := c.findIndexLocked(tempID)
		if idx < 0 {
			// Deleted locally before the create resolved; nothing to adopt.
			return
		}
		c.files[idx].ID = rec.ID
		if c.activeID == tempID {
			c.activeID = rec.ID
		}
		if c.dirty[tempID] {
			delete(c.dirty, tempID)
			c.dirty[rec.ID] = true
		}
	}()

	out := file
	return &out, nil
}

// UpdateContent applies a content edit locally and arms the debounced
// background save. Called on every keystroke-level change.
func (c *Collection) UpdateContent(id, content string) error {
	c.mu.Lock()
	idx := c.findIndexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return canvaserrors.New(canvaserrors.ErrCodeEntityNotFound, "file not found").WithContext("file_id", id)
	}
	c.files[idx].Content = content
	c.dirty[id] = true

	if c.saveTimer != nil {
		c.saveTimer.Stop()
	}
	c.saveTimer = c.clk.AfterFunc(c.saveDebounce, func() {
		c.mu.Lock()
		c.saveTimer = nil
		c.mu.Unlock()
		c.flushDirty(context.Background())
	})
	c.mu.Unlock()
	return nil
}

// Save mirrors a file's content remotely right away (the explicit save
// action). Files that have not reached the backend yet are skipped: their
// content rides along with the pending create.
func (c *Collection) Save(ctx context.Context, id string) error {
	c.mu.Lock()
	idx := c.findIndexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return canvaserrors.New(canvaserrors.ErrCodeEntityNotFound, "file not found").WithContext("file_id", id)
	}
	file := c.files[idx]
	delete(c.dirty, id)
	c.mu.Unlock()

	if file.IsLocal() {
		return nil
	}

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		if err := c.api.UpdateFileContent(ctx, file.ID, file.Content); err != nil {
			c.reportMirrorFailure("save", err)
		}
	}()
	return nil
}

// Rename changes a file's name locally and mirrors the rename. A new name
// without an extension inherits the old name's extension; a name that
// already contains a dot is used as-is.
func (c *Collection) Rename(ctx context.Context, id, newName string) (*File, error) {
	c.mu.Lock()
	idx := c.findIndexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return nil, canvaserrors.New(canvaserrors.ErrCodeEntityNotFound, "file not found").WithContext("file_id", id)
	}

	finalName := applyExtensionRule(newName, c.files[idx].Name)
	c.files[idx].Name = finalName
	c.files[idx].Language = LanguageForName(finalName)
	file := c.files[idx]
	c.mu.Unlock()

	if !file.IsLocal() {
		c.pending.Add(1)
		go func() {
			defer c.pending.Done()
			if err := c.api.RenameFile(ctx, file.ID, finalName); err != nil {
				c.reportMirrorFailure("rename", err)
			}
		}()
	}

	out := file
	return &out, nil
}

// Delete removes a file locally right away and mirrors the delete. Deleting
// the active file selects the first remaining file; deleting the last file
// leaves the active reference empty.
func (c *Collection) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	idx := c.findIndexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return canvaserrors.New(canvaserrors.ErrCodeEntityNotFound, "file not found").WithContext("file_id", id)
	}
	wasLocal := c.files[idx].IsLocal()
	c.files = append(c.files[:idx], c.files[idx+1:]...)
	delete(c.dirty, id)
	if c.activeID == id {
		if len(c.files) > 0 {
			c.activeID = c.files[0].ID
		} else {
			c.activeID = ""
		}
	}
	c.mu.Unlock()

	if wasLocal {
		return nil
	}

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		if err := c.api.DeleteFile(ctx, id); err != nil {
			c.reportMirrorFailure("delete", err)
		}
	}()
	return nil
}

// Files returns a snapshot of the collection in order.
func (c *Collection) Files() []File {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]File, len(c.files))
	copy(out, c.files)
	return out
}

// Get returns one file by id.
func (c *Collection) Get(id string) (*File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.findIndexLocked(id)
	if idx < 0 {
		return nil, canvaserrors.New(canvaserrors.ErrCodeEntityNotFound, "file not found").WithContext("file_id", id)
	}
	out := c.files[idx]
	return &out, nil
}

// SetActive marks a file as the open one.
func (c *Collection) SetActive(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.findIndexLocked(id) < 0 {
		return canvaserrors.New(canvaserrors.ErrCodeEntityNotFound, "file not found").WithContext("file_id", id)
	}
	c.activeID = id
	return nil
}

// ActiveFileID returns the open file's id, or empty.
func (c *Collection) ActiveFileID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// Active returns the open file, or nil.
func (c *Collection) Active() *File {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.findIndexLocked(c.activeID)
	if idx < 0 {
		return nil
	}
	out := c.files[idx]
	return &out
}

// Flush force-saves every dirty file, bypassing the debounce. Used on
// shutdown and project switches.
func (c *Collection) Flush(ctx context.Context) {
	c.mu.Lock()
	if c.saveTimer != nil {
		c.saveTimer.Stop()
		c.saveTimer = nil
	}
	c.mu.Unlock()
	c.flushDirty(ctx)
}

// Wait blocks until all in-flight remote mirrors have settled.
func (c *Collection) Wait() {
	c.pending.Wait()
}

func (c *Collection) flushDirty(ctx context.Context) {
	c.mu.Lock()
	var toSave []File
	for id := range c.dirty {
		if idx := c.findIndexLocked(id); idx >= 0 && !c.files[idx].IsLocal() {
			toSave = append(toSave, c.files[idx])
		}
		delete(c.dirty, id)
	}
	c.mu.Unlock()

	for _, file := range toSave {
		file := file
		c.pending.Add(1)
		go func() {
			defer c.pending.Done()
			if err := c.api.UpdateFileContent(ctx, file.ID, file.Content); err != nil {
				c.reportMirrorFailure("save", err)
			}
		}()
	}
}

func (c *Collection) findIndexLocked(id string) int {
	for i, f := range c.files {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func (c *Collection) reportMirrorFailure(operation string, err error) {
	metrics.RemoteMutationFailures.WithLabelValues("workspace", operation).Inc()
	c.logger.Error(logging.CategoryWorkspace, "mirror_failed", err.Error(), map[string]any{
		"operation": operation,
	})
}

func applyExtensionRule(newName, oldName string) string {
	if strings.Contains(newName, ".") {
		return newName
	}
	if idx := strings.LastIndex(oldName, "."); idx >= 0 {
		return newName + oldName[idx:]
	}
	return newName
}
