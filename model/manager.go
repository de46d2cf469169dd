package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Manager answers availability questions against the local model cache.
// All methods are cheap filesystem probes, safe to call on every UI refresh.
type Manager struct {
	dir string
}

func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// DefaultDir resolves the model cache directory: $VOICE_ASSISTANT_MODEL_PATH
// if set, otherwise an OS cache subdirectory.
func DefaultDir() (string, error) {
	if env := os.Getenv("VOICE_ASSISTANT_MODEL_PATH"); env != "" {
		return env, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving cache dir: %w", err)
	}
	return filepath.Join(cache, "voice-assistant", "models"), nil
}

func (m *Manager) Dir() string { return m.dir }

// Path returns where a model's artifact lives (or would live) in the cache.
func (m *Manager) Path(d Descriptor) string {
	return filepath.Join(m.dir, d.FileName)
}

// IsDownloaded reports whether the model artifact is fully present. A
// zero-length file counts as absent; partial downloads use a .part suffix
// and are never visible here.
func (m *Manager) IsDownloaded(d Descriptor) bool {
	info, err := os.Stat(m.Path(d))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// Downloaded lists the catalog entries present in the cache.
func (m *Manager) Downloaded() []Descriptor {
	var out []Descriptor
	for _, d := range Catalog() {
		if m.IsDownloaded(d) {
			out = append(out, d)
		}
	}
	return out
}

// Availability is the per-model cache state as the orchestrator tracks it.
type Availability int

const (
	NotDownloaded Availability = iota
	Downloading
	Ready
)

func (a Availability) String() string {
	switch a {
	case Downloading:
		return "downloading"
	case Ready:
		return "ready"
	default:
		return "not downloaded"
	}
}

// State maps model id -> Availability. Download workers write completion
// state while the coordination loop reads it, so access is mutex-guarded.
type State struct {
	mu sync.Mutex
	m  map[string]Availability
}

// NewState probes the cache once and seeds availability for the catalog.
func NewState(mgr *Manager) *State {
	s := &State{m: make(map[string]Availability)}
	for _, d := range Catalog() {
		if mgr.IsDownloaded(d) {
			s.m[d.ID] = Ready
		} else {
			s.m[d.ID] = NotDownloaded
		}
	}
	return s
}

func (s *State) Get(id string) Availability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[id]
}

func (s *State) Set(id string, a Availability) {
	s.mu.Lock()
	s.m[id] = a
	s.mu.Unlock()
}

// Snapshot returns a copy for surface updates.
func (s *State) Snapshot() map[string]Availability {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Availability, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}
