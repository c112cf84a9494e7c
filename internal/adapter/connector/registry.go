// internal/adapter/connector/registry.go

package connector

import (
	"sync"

	"trendwire/internal/domain/content"
)

// Registry maps users to their configured source connectors.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string][]content.Connector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string][]content.Connector)}
}

// Add registers a connector for a user.
func (r *Registry) Add(userID string, c content.Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connectors[userID] = append(r.connectors[userID], c)
}

// Connectors returns the user's configured connectors.
func (r *Registry) Connectors(userID string) []content.Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]content.Connector(nil), r.connectors[userID]...)
}
