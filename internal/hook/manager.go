package hook

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ManifestFile is the manifest name looked up in each hook directory.
const ManifestFile = "hook.json"

// ErrHookNotFound is returned when a requested hook does not exist.
var ErrHookNotFound = errors.New("hook not found")

// Manager discovers hooks below a directory.
type Manager struct {
	dir   string
	log   *zap.Logger
	hooks map[string]*Hook
	mu    sync.RWMutex
}

// NewManager creates a Manager for dir.
func NewManager(dir string, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		dir:   dir,
		log:   log,
		hooks: make(map[string]*Hook),
	}
}

// Discover replaces the known hooks with those found in the subdirectories
// of the hook directory. A missing directory yields no hooks; unreadable
// manifests are skipped.
func (m *Manager) Discover() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = make(map[string]*Hook)

	if m.dir == "" {
		return nil
	}
	info, err := os.Stat(m.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		hookPath := filepath.Join(m.dir, entry.Name())
		data, err := os.ReadFile(filepath.Join(hookPath, ManifestFile))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			m.log.Warn("skipping hook", zap.String("dir", hookPath), zap.Error(err))
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			m.log.Warn("skipping hook with invalid manifest", zap.String("dir", hookPath), zap.Error(err))
			continue
		}
		if manifest.Name == "" || manifest.Executable == "" {
			m.log.Warn("skipping hook without name or executable", zap.String("dir", hookPath))
			continue
		}

		m.hooks[manifest.Name] = &Hook{
			Manifest:   manifest,
			Path:       hookPath,
			Executable: filepath.Join(hookPath, manifest.Executable),
		}
	}

	m.log.Info("hooks discovered", zap.Int("count", len(m.hooks)), zap.String("dir", m.dir))
	return nil
}

// Get returns a hook by name.
func (m *Manager) Get(name string) (*Hook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hooks[name]
	if !ok {
		return nil, ErrHookNotFound
	}
	return h, nil
}

// List returns all discovered hooks ordered by name.
func (m *Manager) List() []*Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hooks := make([]*Hook, 0, len(m.hooks))
	for _, h := range m.hooks {
		hooks = append(hooks, h)
	}
	sort.Slice(hooks, func(i, j int) bool { return hooks[i].Manifest.Name < hooks[j].Manifest.Name })
	return hooks
}

// Subscribed returns the hooks subscribed to an event kind, ordered by name.
func (m *Manager) Subscribed(event string) []*Hook {
	var out []*Hook
	for _, h := range m.List() {
		if h.Handles(event) {
			out = append(out, h)
		}
	}
	return out
}

// Dir returns the hook directory.
func (m *Manager) Dir() string {
	return m.dir
}
