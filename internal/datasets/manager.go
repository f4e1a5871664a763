// Package datasets manages the lifecycle of in-memory dataset handles:
// loading from disk, TTL-based eviction, capacity gating, and guarded
// read/write access to the rows.
package datasets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/dataloom/config"
	"github.com/loomworks/dataloom/internal/schema"
	"github.com/loomworks/dataloom/internal/table"
)

// Handle represents an in-memory dataset paired with metadata for TTL eviction.
type Handle struct {
	ID        string
	Path      string
	FileType  schema.FileType
	DS        *table.Dataset
	Mapping   schema.Result
	Version   int64
	LoadedAt  time.Time
	ExpiresAt time.Time
	mu        sync.RWMutex
}

// DatasetGate coordinates capacity for open dataset handles (backed by runtime.Controller).
type DatasetGate interface {
	AcquireDataset(ctx context.Context) error
	ReleaseDataset()
}

// PathValidator abstracts filesystem path validation. Implementations should
// return a canonical absolute path if allowed, or an error when denied.
type PathValidator interface {
	ValidateOpenPath(path string) (string, error)
}

// Manager provides lifecycle hooks for opening and closing datasets and a handle cache.
type Manager struct {
	mu           sync.RWMutex
	handles      map[string]*Handle
	ttl          time.Duration
	cleanupEvery time.Duration
	clock        func() time.Time
	gate         DatasetGate
	stopCh       chan struct{}
	cleanupWG    sync.WaitGroup
	validator    PathValidator
	reconciler   *schema.Reconciler
}

// NewManager constructs a lifecycle manager with a TTL-bearing handle cache.
// Pass ttl or cleanupEvery <= 0 to use defaults from config.
// Gate and validator can be nil for tests; clock defaults to time.Now when nil.
func NewManager(ttl, cleanupEvery time.Duration, gate DatasetGate, clock func() time.Time) *Manager {
	if ttl <= 0 {
		ttl = config.DefaultDatasetIdleTTL
	}
	if cleanupEvery <= 0 {
		cleanupEvery = config.DefaultDatasetCleanupPeriod
	}
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		handles:      make(map[string]*Handle),
		ttl:          ttl,
		cleanupEvery: cleanupEvery,
		clock:        clock,
		gate:         gate,
		stopCh:       make(chan struct{}),
		reconciler:   schema.NewReconciler(schema.DefaultRegistry()),
	}
}

// SetPathValidator installs an allow-list validator consulted by Open.
func (m *Manager) SetPathValidator(v PathValidator) { m.validator = v }

// Reconciler exposes the manager's schema reconciler for tools that need
// header alignment outside the open flow.
func (m *Manager) Reconciler() *schema.Reconciler { return m.reconciler }

// Start launches periodic eviction of expired handles.
func (m *Manager) Start() {
	m.cleanupWG.Add(1)
	ticker := time.NewTicker(m.cleanupEvery)
	go func() {
		defer m.cleanupWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.EvictExpired()
			}
		}
	}()
}

// Close stops background cleanup and drops all open handles.
func (m *Manager) Close(ctx context.Context) error {
	// Stop the cleanup loop
	close(m.stopCh)
	done := make(chan struct{})
	go func() { m.cleanupWG.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.handles {
		delete(m.handles, id)
		if m.gate != nil {
			m.gate.ReleaseDataset()
		}
	}
	return nil
}

// ErrHandleNotFound indicates an unknown or expired handle ID.
var ErrHandleNotFound = errors.New("datasets: handle not found")

// Open loads a dataset from the given path, reconciles its headers against
// the required schema for fileType (renaming accepted columns in place),
// registers a TTL-bearing handle, and returns it. Candidate mappings, when
// non-empty, take precedence over local synthesis.
func (m *Manager) Open(ctx context.Context, path string, fileType schema.FileType, candidates []schema.ColumnMapping) (*Handle, error) {
	if !fileType.Valid() {
		return nil, fmt.Errorf("datasets: unknown file type %q", fileType)
	}
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}

	if m.validator != nil {
		canonical, err := m.validator.ValidateOpenPath(path)
		if err != nil {
			m.release()
			return nil, err
		}
		path = canonical
	}

	ds, err := Load(path)
	if err != nil {
		m.release()
		return nil, err
	}

	required, err := m.reconciler.RequiredHeaders(fileType)
	if err != nil {
		m.release()
		return nil, err
	}
	mapping := m.reconciler.Reconcile(ds.Headers, required, candidates)
	RenameHeaders(ds, mapping.Mappings)

	h := &Handle{
		ID:       uuid.NewString(),
		Path:     path,
		FileType: fileType,
		DS:       ds,
		Mapping:  mapping,
	}
	h.LoadedAt = m.clock()
	h.ExpiresAt = h.LoadedAt.Add(m.ttl)

	m.mu.Lock()
	m.handles[h.ID] = h
	m.mu.Unlock()
	return h, nil
}

// Adopt registers an existing dataset as a managed handle. Intended for tests
// and in-memory flows that bypass the filesystem.
func (m *Manager) Adopt(ctx context.Context, ds *table.Dataset, fileType schema.FileType) (*Handle, error) {
	if ds == nil {
		return nil, fmt.Errorf("datasets: nil dataset")
	}
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	h := &Handle{
		ID:       uuid.NewString(),
		FileType: fileType,
		DS:       ds,
	}
	h.LoadedAt = m.clock()
	h.ExpiresAt = h.LoadedAt.Add(m.ttl)
	m.mu.Lock()
	m.handles[h.ID] = h
	m.mu.Unlock()
	return h, nil
}

// Get returns the handle when present and refreshes its TTL.
func (m *Manager) Get(id string) (*Handle, bool) {
	m.mu.RLock()
	h, ok := m.handles[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	// Refresh TTL on access (idle timeout semantics)
	now := m.clock()
	h.mu.Lock()
	h.ExpiresAt = now.Add(m.ttl)
	h.mu.Unlock()
	return h, true
}

// WithRead obtains a shared read lock for the handle and executes fn.
func (m *Manager) WithRead(id string, fn func(*Handle) error) error {
	h, ok := m.Get(id)
	if !ok {
		return ErrHandleNotFound
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return fn(h)
}

// WithWrite obtains an exclusive write lock for the handle and executes fn.
func (m *Manager) WithWrite(id string, fn func(*Handle) error) error {
	h, ok := m.Get(id)
	if !ok {
		return ErrHandleNotFound
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h)
}

// CloseHandle removes a handle by ID, releasing capacity via the gate.
func (m *Manager) CloseHandle(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.handles[id]
	if ok {
		delete(m.handles, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrHandleNotFound
	}
	m.release()
	return nil
}

// EvictExpired scans for expired handles and drops them.
func (m *Manager) EvictExpired() {
	now := m.clock()
	var expiredIDs []string

	m.mu.RLock()
	for id, h := range m.handles {
		h.mu.RLock()
		isExpired := now.After(h.ExpiresAt)
		h.mu.RUnlock()
		if isExpired {
			expiredIDs = append(expiredIDs, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expiredIDs {
		m.mu.Lock()
		delete(m.handles, id)
		m.mu.Unlock()
		m.release()
	}
}

// Count returns the current number of cached handles.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handles)
}

func (m *Manager) acquire(ctx context.Context) error {
	if m.gate == nil {
		return nil
	}
	return m.gate.AcquireDataset(ctx)
}

func (m *Manager) release() {
	if m.gate == nil {
		return
	}
	m.gate.ReleaseDataset()
}

// Expired reports whether the handle has reached its TTL.
func (h *Handle) Expired(now time.Time) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return now.After(h.ExpiresAt)
}
