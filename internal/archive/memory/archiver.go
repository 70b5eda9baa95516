// Package memory provides an in-memory archiver for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Archiver stores archived payloads keyed by path.
type Archiver struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// New creates an empty Archiver.
func New() *Archiver {
	return &Archiver{blobs: make(map[string][]byte)}
}

// Archive records the payload and returns a mem:// URI.
func (a *Archiver) Archive(_ context.Context, path string, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	a.mu.Lock()
	a.blobs[path] = buf
	a.mu.Unlock()
	return "mem://" + path, nil
}

// Get returns a stored payload.
func (a *Archiver) Get(path string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.blobs[path]
	return data, ok
}

// Len reports how many payloads have been archived.
func (a *Archiver) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.blobs)
}
