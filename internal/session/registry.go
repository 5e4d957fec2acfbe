package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/streamgate/streamgate/internal/models"
)

// idBytes is the length of the random session id in raw bytes; hex-encoded
// it yields the 8-character identifier.
const idBytes = 4

// Registry is the process-wide session table.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	baseDir  string
}

// NewRegistry creates a registry whose session folders live under baseDir.
func NewRegistry(baseDir string) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		baseDir:  baseDir,
	}
}

// Create allocates a new session: a fresh 8-hex id, its exclusive folder on
// disk, and a record in state Pending.
func (r *Registry) Create(kind Kind) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.newIDLocked()
	if err != nil {
		return nil, err
	}

	folder := filepath.Join(r.baseDir, id)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, models.WrapStreamError(models.KindStorageError,
			fmt.Errorf("creating session folder %s: %w", folder, err))
	}

	s := &Session{
		ID:        id,
		Kind:      kind,
		CreatedAt: time.Now(),
		Folder:    folder,
		state:     StatePending,
	}
	r.sessions[id] = s
	return s, nil
}

// newIDLocked draws random ids until one is unused. Collisions on 4 random
// bytes are vanishingly rare at realistic session counts, so the loop is
// effectively a single iteration.
func (r *Registry) newIDLocked() (string, error) {
	for range 16 {
		buf := make([]byte, idBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating session id: %w", err)
		}
		id := hex.EncodeToString(buf)
		if _, exists := r.sessions[id]; !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("exhausted session id attempts")
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return s, nil
}

// ActiveCount returns the number of sessions that are neither Failed nor
// Closed. The tuning policy uses this as its load input.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.sessions {
		switch s.State() {
		case StateFailed, StateClosed:
		default:
			n++
		}
	}
	return n
}

// List returns a snapshot of all sessions.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Remove closes the session and deletes it from the table. When deleteFolder
// is true the session folder and everything in it is removed from disk.
func (r *Registry) Remove(id string, deleteFolder bool) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return models.ErrSessionNotFound
	}

	s.Close()
	if deleteFolder {
		if err := os.RemoveAll(s.Folder); err != nil {
			return models.WrapStreamError(models.KindStorageError,
				fmt.Errorf("removing session folder %s: %w", s.Folder, err))
		}
	}
	return nil
}

// CloseAll closes every session. Used during graceful shutdown; folders are
// left on disk for the startup sweep of the next run.
func (r *Registry) CloseAll() {
	for _, s := range r.List() {
		s.Close()
	}
}
