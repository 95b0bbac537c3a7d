package wishlib

import "sync"

// FileNameHints maps a wish URI to the local file name learned for it
// out-of-band, so an interrupted wish that is queued again resumes into the
// same file. Hints live in memory only.
type FileNameHints struct {
	kv map[string]string
	mu sync.RWMutex
}

// NewFileNameHints creates an empty hint map.
func NewFileNameHints() *FileNameHints {
	return &FileNameHints{kv: make(map[string]string)}
}

// Set records name for uri. An empty name removes the hint.
func (h *FileNameHints) Set(uri, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if name == "" {
		delete(h.kv, uri)
		return
	}
	h.kv[uri] = name
}

// Get returns the hint for uri.
func (h *FileNameHints) Get(uri string) (name string, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	name, ok = h.kv[uri]
	return
}

// Delete removes the hint for uri. Deleting a missing hint is a no-op.
func (h *FileNameHints) Delete(uri string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.kv, uri)
}

// Len returns the number of hints.
func (h *FileNameHints) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.kv)
}

// Clear drops every hint.
func (h *FileNameHints) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.kv = make(map[string]string)
}
