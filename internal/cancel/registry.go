// Package cancel provides cooperative cancellation of in-flight statement
// processing. A user requests cancellation out of band (typically from a
// second HTTP request) and the processing loop polls the registry between
// transactions.
package cancel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Registry tracks per-user cancellation requests. Implementations must be
// safe for concurrent use: the request arrives on a different goroutine
// than the poll.
type Registry interface {
	// RequestCancellation marks the user's current processing run for
	// cancellation.
	RequestCancellation(userID string) error
	// IsCancelled reports whether a cancellation request is pending for
	// the user.
	IsCancelled(userID string) bool
	// Clear removes any pending cancellation request for the user.
	// Clearing when no request is pending is not an error.
	Clear(userID string) error
}

// FileRegistry signals cancellation through marker files in a shared
// directory, which lets separate processes (an API server and a CLI, or two
// server replicas on one host) observe each other's requests.
type FileRegistry struct {
	dir string
}

// NewFileRegistry creates a registry backed by marker files under dir.
// An empty dir falls back to the system temp directory.
func NewFileRegistry(dir string) (*FileRegistry, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cancellation directory: %w", err)
	}
	return &FileRegistry{dir: dir}, nil
}

func (r *FileRegistry) markerPath(userID string) string {
	return filepath.Join(r.dir, "cancel_"+sanitizeUserID(userID))
}

// RequestCancellation creates the user's marker file.
func (r *FileRegistry) RequestCancellation(userID string) error {
	if err := os.WriteFile(r.markerPath(userID), nil, 0o600); err != nil {
		return fmt.Errorf("failed to write cancellation marker: %w", err)
	}
	return nil
}

// IsCancelled reports whether the user's marker file exists.
func (r *FileRegistry) IsCancelled(userID string) bool {
	_, err := os.Stat(r.markerPath(userID))
	return err == nil
}

// Clear removes the user's marker file if present.
func (r *FileRegistry) Clear(userID string) error {
	if err := os.Remove(r.markerPath(userID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cancellation marker: %w", err)
	}
	return nil
}

// sanitizeUserID keeps marker names to a safe character set so a user ID
// can never escape the marker directory.
func sanitizeUserID(userID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, userID)
}

// MemoryRegistry is an in-process registry used in tests and single-process
// deployments.
type MemoryRegistry struct {
	cancelled sync.Map
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{}
}

// RequestCancellation marks the user as cancelled.
func (r *MemoryRegistry) RequestCancellation(userID string) error {
	r.cancelled.Store(userID, struct{}{})
	return nil
}

// IsCancelled reports whether the user is marked as cancelled.
func (r *MemoryRegistry) IsCancelled(userID string) bool {
	_, ok := r.cancelled.Load(userID)
	return ok
}

// Clear removes the user's cancellation mark.
func (r *MemoryRegistry) Clear(userID string) error {
	r.cancelled.Delete(userID)
	return nil
}
