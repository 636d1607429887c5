package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/rmehra06/galleryctl/internal/models"
)

// API is the remote collaborator the manager synchronizes against. A nil
// image list from Delete/SetFeatured/Extract means the server confirmed
// without echoing the updated set.
type API interface {
	FetchSet(ctx context.Context, projectID string) ([]models.ImageRef, error)
	UploadImages(ctx context.Context, projectID string, files []models.FileUpload) ([]models.ImageRef, error)
	DeleteImage(ctx context.Context, projectID string, id models.Identity) ([]models.ImageRef, error)
	ReorderImages(ctx context.Context, projectID string, order []models.Identity) ([]models.ImageRef, error)
	SetFeaturedImage(ctx context.Context, projectID string, id models.Identity) ([]models.ImageRef, error)
	ExtractImages(ctx context.Context, projectID string) (string, []models.ImageRef, error)
}

// Manager keeps one project's image set in lock-step with the server.
// Mutations are serialized per project: while one is in flight the others
// fail fast with ErrBusy. Only Reorder mutates local state before the server
// confirms, and it rolls back on failure; every other operation applies the
// server's answer or leaves the set untouched.
type Manager struct {
	projectID string
	api       API
	log       zerolog.Logger

	// busy is the per-project mutation lock. TryAcquire gives the
	// fail-fast semantics; a plain mutex would queue instead.
	busy *semaphore.Weighted

	mu      sync.Mutex
	items   []models.ImageRef
	version int64
	closed  bool
}

// New fetches the project's current image set and returns a manager bound
// to it.
func New(ctx context.Context, a API, projectID string) (*Manager, error) {
	m := &Manager{
		projectID: projectID,
		api:       a,
		log:       log.With().Str("project_id", projectID).Logger(),
		busy:      semaphore.NewWeighted(1),
	}

	items, err := a.FetchSet(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("fetch image set: %w", err)
	}
	m.items = models.Normalize(items)
	return m, nil
}

// ProjectID returns the identity of the parent project. Immutable.
func (m *Manager) ProjectID() string { return m.projectID }

// Items returns a snapshot copy of the set in display order. Callers must
// not assume it reflects later mutations.
func (m *Manager) Items() []models.ImageRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ImageRef, len(m.items))
	copy(out, m.items)
	return out
}

// Set returns a snapshot of the whole set including the cache-bust version.
func (m *Manager) Set() models.ImageSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]models.ImageRef, len(m.items))
	copy(items, m.items)
	return models.ImageSet{ProjectID: m.projectID, Items: items, Version: m.version}
}

// Featured returns the currently featured image, if any.
func (m *Manager) Featured() (models.ImageRef, bool) {
	return m.Set().Featured()
}

// Version counts applied server confirmations; DisplayURL feeds it into the
// cache-bust query so stale bytes are re-fetched after any mutation.
func (m *Manager) Version() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// DisplayURL renders ref's location with the set's current cache-bust version.
func (m *Manager) DisplayURL(ref models.ImageRef) string {
	return ref.DisplayURL(m.Version())
}

// Close tears the manager down. In-flight responses are discarded and new
// operations fail with ErrClosed. Close does not wait for in-flight calls.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.items = nil
}

// Upload sends files in one multipart batch. The capacity cap is checked
// before any network traffic; local state only changes once the server
// returns the authoritative list.
func (m *Manager) Upload(ctx context.Context, files []models.FileUpload) error {
	release, err := m.begin()
	if err != nil {
		return err
	}
	defer release()

	if len(files) == 0 {
		return nil
	}
	if n := len(m.Items()); n+len(files) > models.MaxImages {
		return fmt.Errorf("%w: have %d, adding %d", ErrCapacityExceeded, n, len(files))
	}

	items, err := m.api.UploadImages(ctx, m.projectID, files)
	if err != nil {
		return fmt.Errorf("upload images: %w", err)
	}

	m.apply(items)
	m.log.Info().Int("count", len(files)).Int("total", len(items)).Msg("images uploaded")
	return nil
}

// Delete removes the image addressed by id. When the deleted image was
// featured and the server response does not designate a successor, the
// first remaining image is promoted.
func (m *Manager) Delete(ctx context.Context, id models.Identity) error {
	release, err := m.begin()
	if err != nil {
		return err
	}
	defer release()

	current := m.Items()
	pos := models.Find(current, id)
	if pos < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	items, err := m.api.DeleteImage(ctx, m.projectID, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}

	if items == nil {
		// Server confirmed without a list; drop locally. Normalize
		// re-indexes and promotes a new featured image if needed.
		items = append(current[:pos], current[pos+1:]...)
	}
	m.apply(items)
	m.log.Info().Stringer("identity", id).Msg("image deleted")
	return nil
}

// Reorder applies the desired sequence locally first (drag feedback must not
// wait on the network), then submits it. On failure the exact pre-reorder
// sequence is restored; on success the server's order wins.
func (m *Manager) Reorder(ctx context.Context, order []models.Identity) error {
	release, err := m.begin()
	if err != nil {
		return err
	}
	defer release()

	prev := m.Items()
	if !models.IsPermutation(prev, order) {
		return ErrBadOrder
	}

	m.install(models.Permute(prev, order))

	items, err := m.api.ReorderImages(ctx, m.projectID, order)
	if err != nil {
		m.install(prev)
		return fmt.Errorf("reorder images: %w", err)
	}

	m.apply(items)
	m.log.Info().Int("count", len(items)).Msg("images reordered")
	return nil
}

// SetFeatured marks the image addressed by id as the project's featured
// image. Exactly that image carries the flag afterwards.
func (m *Manager) SetFeatured(ctx context.Context, id models.Identity) error {
	release, err := m.begin()
	if err != nil {
		return err
	}
	defer release()

	current := m.Items()
	pos := models.Find(current, id)
	if pos < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	items, err := m.api.SetFeaturedImage(ctx, m.projectID, id)
	if err != nil {
		return fmt.Errorf("set featured image: %w", err)
	}

	if items == nil {
		items = make([]models.ImageRef, len(current))
		copy(items, current)
		for i := range items {
			items[i].IsFeatured = i == pos
		}
	}
	m.apply(items)
	m.log.Info().Stringer("identity", id).Msg("featured image set")
	return nil
}

// Refresh re-fetches the authoritative set from the server.
func (m *Manager) Refresh(ctx context.Context) error {
	release, err := m.begin()
	if err != nil {
		return err
	}
	defer release()

	items, err := m.api.FetchSet(ctx, m.projectID)
	if err != nil {
		return fmt.Errorf("fetch image set: %w", err)
	}
	m.apply(items)
	return nil
}

// Extract asks the server to pull images out of the project's associated
// document. The returned message reports extraction status; when the server
// answers with an updated list it is applied, otherwise callers should
// Refresh once extraction is expected to have finished.
func (m *Manager) Extract(ctx context.Context) (string, error) {
	release, err := m.begin()
	if err != nil {
		return "", err
	}
	defer release()

	msg, items, err := m.api.ExtractImages(ctx, m.projectID)
	if err != nil {
		return "", fmt.Errorf("extract images: %w", err)
	}
	if items != nil {
		m.apply(items)
	}
	m.log.Info().Str("message", msg).Msg("image extraction triggered")
	return msg, nil
}

// begin claims the per-project mutation slot. The returned release func must
// be called once the operation (including response handling) is done.
func (m *Manager) begin() (func(), error) {
	if !m.busy.TryAcquire(1) {
		return nil, ErrBusy
	}

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		m.busy.Release(1)
		return nil, ErrClosed
	}

	return func() { m.busy.Release(1) }, nil
}

// apply installs a server-confirmed list, normalized, and bumps the
// cache-bust version. Responses arriving after Close are discarded.
func (m *Manager) apply(items []models.ImageRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.items = models.Normalize(items)
	m.version++
}

// install swaps local state without a version bump. Used for the optimistic
// half of Reorder and its rollback; the version only moves on confirmation.
func (m *Manager) install(items []models.ImageRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.items = items
}
