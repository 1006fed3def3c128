package loader

import (
	"sort"
	"sync"
	"time"

	"consentry/internal/consent/models"
)

// Element is one inserted <script> tag.
type Element struct {
	Src        string
	Category   models.Category
	Async      bool
	Defer      bool
	Attributes map[string]string
}

// Handle references a loaded element. Every LoadOnce for the same URL
// returns the same *Handle.
type Handle struct {
	Element  *Element
	LoadedAt time.Time
}

// Registry is the process-wide set of loaded script URLs.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Get returns the handle for src if it is loaded.
func (r *Registry) Get(src string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[src]
	return h, ok
}

func (r *Registry) put(h *Handle) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.Element.Src] = h
	return len(r.handles)
}

// Handles returns every loaded handle ordered by URL.
func (r *Registry) Handles() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Element.Src < out[j].Element.Src })
	return out
}

// Len returns the number of loaded URLs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
